package search

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// operatorFunc implements one comparison operator.
type operatorFunc func(fieldValue, compareValue any) (bool, error)

// Evaluator applies predicates to field maps. It is stateless apart from
// the compiled-regex cache and safe for concurrent use.
type Evaluator struct {
	operators map[string]operatorFunc

	regexMu    sync.RWMutex
	regexCache map[string]*regexp.Regexp
}

// NewEvaluator creates an evaluator with all supported operators
// registered.
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		operators:  make(map[string]operatorFunc),
		regexCache: make(map[string]*regexp.Regexp),
	}

	e.operators[OpEqual] = operatorEqual
	e.operators[OpNotEqual] = operatorNotEqual
	e.operators[OpLessThan] = compareOperator(func(c int) bool { return c < 0 })
	e.operators[OpLessThanEqual] = compareOperator(func(c int) bool { return c <= 0 })
	e.operators[OpGreaterThan] = compareOperator(func(c int) bool { return c > 0 })
	e.operators[OpGreaterThanEqual] = compareOperator(func(c int) bool { return c >= 0 })
	e.operators[OpContains] = stringOperator(strings.Contains)
	e.operators[OpStartsWith] = stringOperator(strings.HasPrefix)
	e.operators[OpEndsWith] = stringOperator(strings.HasSuffix)
	e.operators[OpRegexMatch] = e.operatorRegex
	e.operators[OpIn] = operatorIn

	return e
}

// Evaluate applies a predicate to one object's field map. Missing fields
// fail their condition rather than erroring, so one sparse object cannot
// abort a namespace-wide scan.
func (e *Evaluator) Evaluate(fields map[string]any, p Predicate) (bool, error) {
	if len(p.Conditions) == 0 {
		return true, nil
	}

	logic := p.Logic
	if logic == "" {
		logic = LogicAnd
	}

	for _, cond := range p.Conditions {
		matched, err := e.evaluateCondition(fields, cond)
		if err != nil {
			return false, err
		}

		if logic == LogicAnd && !matched {
			return false, nil
		}
		if logic == LogicOr && matched {
			return true, nil
		}
	}

	return logic == LogicAnd, nil
}

func (e *Evaluator) evaluateCondition(fields map[string]any, cond Condition) (bool, error) {
	fieldValue, exists := fields[cond.Field]
	if !exists {
		return false, nil
	}

	opFunc, ok := e.operators[cond.Operator]
	if !ok {
		return false, fmt.Errorf("unsupported operator %q", cond.Operator)
	}
	return opFunc(fieldValue, cond.Value)
}

// operatorEqual compares numerically when both sides coerce to numbers,
// falling back to string equality.
func operatorEqual(fieldValue, compareValue any) (bool, error) {
	if fn, fok := toFloat(fieldValue); fok {
		if cn, cok := toFloat(compareValue); cok {
			return fn == cn, nil
		}
	}
	return toString(fieldValue) == toString(compareValue), nil
}

func operatorNotEqual(fieldValue, compareValue any) (bool, error) {
	eq, err := operatorEqual(fieldValue, compareValue)
	return !eq, err
}

// compareOperator builds an ordering operator from a comparison sign test.
func compareOperator(accept func(int) bool) operatorFunc {
	return func(fieldValue, compareValue any) (bool, error) {
		if fn, fok := toFloat(fieldValue); fok {
			if cn, cok := toFloat(compareValue); cok {
				return accept(compareFloats(fn, cn)), nil
			}
		}
		return accept(strings.Compare(toString(fieldValue), toString(compareValue))), nil
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// stringOperator builds an operator from a string relation.
func stringOperator(relation func(s, substr string) bool) operatorFunc {
	return func(fieldValue, compareValue any) (bool, error) {
		return relation(toString(fieldValue), toString(compareValue)), nil
	}
}

// operatorRegex matches the field's string form against a cached compiled
// pattern.
func (e *Evaluator) operatorRegex(fieldValue, compareValue any) (bool, error) {
	pattern := toString(compareValue)

	e.regexMu.RLock()
	re, ok := e.regexCache[pattern]
	e.regexMu.RUnlock()

	if !ok {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("invalid regex %q: %w", pattern, err)
		}
		e.regexMu.Lock()
		e.regexCache[pattern] = re
		e.regexMu.Unlock()
	}

	return re.MatchString(toString(fieldValue)), nil
}

// operatorIn tests membership of the field value in a compare-value list.
func operatorIn(fieldValue, compareValue any) (bool, error) {
	list, ok := compareValue.([]any)
	if !ok {
		return false, fmt.Errorf("operator %q requires a list value", OpIn)
	}
	for _, candidate := range list {
		matched, err := operatorEqual(fieldValue, candidate)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

// toFloat coerces JSON scalar types to float64 for numeric comparison.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// toString renders any scalar for string comparison.
func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
