package search

import (
	"encoding/json"
	"fmt"

	"github.com/radiantone/emerge/errors"
)

// Supported condition operators.
const (
	// Comparison operators; numeric when both sides coerce to numbers,
	// lexicographic otherwise
	OpEqual            = "eq"
	OpNotEqual         = "ne"
	OpLessThan         = "lt"
	OpLessThanEqual    = "lte"
	OpGreaterThan      = "gt"
	OpGreaterThanEqual = "gte"

	// String operators
	OpContains   = "contains"
	OpStartsWith = "starts_with"
	OpEndsWith   = "ends_with"
	OpRegexMatch = "regex"

	// Membership
	OpIn = "in"
)

// Logic combinators.
const (
	LogicAnd = "and"
	LogicOr  = "or"
)

// Condition is a single field/operator/value test against an object's
// fields. The field resolves against the record's metadata (id, path,
// name) first, then the decoded object's payload fields.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Predicate combines conditions with a logic operator. An empty condition
// list matches everything. Logic defaults to "and".
type Predicate struct {
	Logic      string      `json:"logic,omitempty"`
	Conditions []Condition `json:"conditions"`
}

// And builds a conjunction predicate.
func And(conditions ...Condition) Predicate {
	return Predicate{Logic: LogicAnd, Conditions: conditions}
}

// Or builds a disjunction predicate.
func Or(conditions ...Condition) Predicate {
	return Predicate{Logic: LogicOr, Conditions: conditions}
}

// Where builds one condition; the fluent entry point for client code.
func Where(field, operator string, value any) Condition {
	return Condition{Field: field, Operator: operator, Value: value}
}

// Validate checks the predicate's operators and logic before evaluation,
// so a malformed predicate fails the whole call instead of silently
// matching nothing.
func (p Predicate) Validate() error {
	switch p.Logic {
	case "", LogicAnd, LogicOr:
	default:
		return errors.Internal("Predicate", "Validate",
			fmt.Sprintf("unsupported logic operator %q", p.Logic))
	}

	for i, cond := range p.Conditions {
		if cond.Field == "" {
			return errors.Internal("Predicate", "Validate",
				fmt.Sprintf("condition %d has no field", i))
		}
		switch cond.Operator {
		case OpEqual, OpNotEqual, OpLessThan, OpLessThanEqual,
			OpGreaterThan, OpGreaterThanEqual,
			OpContains, OpStartsWith, OpEndsWith, OpRegexMatch, OpIn:
		default:
			return errors.Internal("Predicate", "Validate",
				fmt.Sprintf("condition %d has unsupported operator %q", i, cond.Operator))
		}
	}
	return nil
}

// Marshal serializes the predicate for transport.
func (p Predicate) Marshal() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, errors.WrapKind(errors.KindInternal, err, "Predicate", "Marshal", "predicate marshal")
	}
	return data, nil
}

// UnmarshalPredicate deserializes and validates a predicate received over
// the wire.
func UnmarshalPredicate(data []byte) (Predicate, error) {
	var p Predicate
	if err := json.Unmarshal(data, &p); err != nil {
		return Predicate{}, errors.WrapKind(errors.KindInternal, err,
			"Predicate", "UnmarshalPredicate", "predicate unmarshal")
	}
	if err := p.Validate(); err != nil {
		return Predicate{}, err
	}
	return p, nil
}
