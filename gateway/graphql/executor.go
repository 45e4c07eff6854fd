package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/radiantone/emerge/namespace"
	"github.com/radiantone/emerge/search"
)

// Executor validates and resolves GraphQL documents against the
// namespace. It implements the gateway's GraphQLExecutor interface.
type Executor struct {
	store  *namespace.Store
	search *search.Engine
	logger *slog.Logger
}

// NewExecutor creates an executor over the given store and search
// engine.
func NewExecutor(store *namespace.Store, searchEngine *search.Engine, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, search: searchEngine, logger: logger}
}

// Execute resolves one query document. Validation and resolution
// errors come back in the errors slice alongside whatever data did
// resolve, per GraphQL convention.
func (e *Executor) Execute(ctx context.Context, query string, variables map[string]any) (json.RawMessage, []string) {
	doc, parseErrs := gqlparser.LoadQuery(schema, query)
	if len(parseErrs) > 0 {
		msgs := make([]string, 0, len(parseErrs))
		for _, perr := range parseErrs {
			msgs = append(msgs, perr.Message)
		}
		return nil, msgs
	}
	if len(doc.Operations) == 0 {
		return nil, []string{"document contains no operations"}
	}

	op := doc.Operations[0]
	if op.Operation != ast.Query {
		return nil, []string{"only queries are supported"}
	}

	data := make(map[string]any, len(op.SelectionSet))
	var errs []string
	for _, sel := range op.SelectionSet {
		field, ok := sel.(*ast.Field)
		if !ok {
			continue
		}
		key := field.Alias
		if key == "" {
			key = field.Name
		}

		value, err := e.resolve(ctx, field, variables)
		if err != nil {
			errs = append(errs, err.Error())
			data[key] = nil
			continue
		}
		data[key] = value
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, append(errs, "result encoding failed")
	}
	return raw, errs
}

func (e *Executor) resolve(ctx context.Context, field *ast.Field, vars map[string]any) (any, error) {
	switch field.Name {
	case "__typename":
		return "Query", nil
	case "object":
		return e.resolveObject(field, vars)
	case "objects":
		return e.resolveObjects(field, vars)
	case "search":
		return e.resolveSearch(ctx, field, vars)
	case "stats":
		return e.resolveStats(field), nil
	default:
		return nil, fmt.Errorf("unknown query field %q", field.Name)
	}
}

func (e *Executor) resolveObject(field *ast.Field, vars map[string]any) (any, error) {
	target, err := argString(field, "target", vars)
	if err != nil {
		return nil, err
	}
	rec, _, err := e.store.Get(target)
	if err != nil || rec == nil {
		// Not found resolves to null, not an error.
		return nil, nil
	}
	return project(recordEntry(rec), field.SelectionSet, "Entry"), nil
}

func (e *Executor) resolveObjects(field *ast.Field, vars map[string]any) (any, error) {
	path, err := argString(field, "path", vars)
	if err != nil {
		return nil, err
	}
	entries, err := e.store.List(path, 0, 0)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(entries))
	for _, entry := range entries {
		out = append(out, project(e.listEntry(entry), field.SelectionSet, "Entry"))
	}
	return out, nil
}

func (e *Executor) resolveSearch(ctx context.Context, field *ast.Field, vars map[string]any) (any, error) {
	fieldName, err := argString(field, "field", vars)
	if err != nil {
		return nil, err
	}
	value, err := argString(field, "value", vars)
	if err != nil {
		return nil, err
	}
	operator := "eq"
	if arg := field.Arguments.ForName("operator"); arg != nil {
		operator, err = argString(field, "operator", vars)
		if err != nil {
			return nil, err
		}
	}

	pred := search.Where(fieldName, operator, coerce(value))
	ids, err := e.search.Search(ctx, search.And(pred))
	if err != nil {
		return nil, err
	}

	out := make([]any, 0, len(ids))
	for _, id := range ids {
		rec, _, err := e.store.Get(id)
		if err != nil || rec == nil {
			continue
		}
		out = append(out, project(recordEntry(rec), field.SelectionSet, "Entry"))
	}
	return out, nil
}

func (e *Executor) resolveStats(field *ast.Field) any {
	stats := e.store.Stats()
	return project(map[string]any{
		"objects":     stats.Objects,
		"directories": stats.Directories,
	}, field.SelectionSet, "Stats")
}

// argString reads a required string argument, resolving variables.
func argString(field *ast.Field, name string, vars map[string]any) (string, error) {
	arg := field.Arguments.ForName(name)
	if arg == nil {
		return "", fmt.Errorf("argument %q is required", name)
	}
	v, err := arg.Value.Value(vars)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", name)
	}
	return s, nil
}

// coerce turns a search value string into the most specific JSON type
// so numeric and boolean comparisons behave naturally.
func coerce(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func recordEntry(rec *namespace.Record) map[string]any {
	return map[string]any{
		"id":       rec.ID,
		"name":     rec.Name,
		"path":     rec.FullPath(),
		"kind":     string(namespace.KindObject),
		"type":     rec.Type.Name,
		"version":  rec.Type.Version,
		"size":     rec.Size,
		"perms":    rec.Perms,
		"created":  formatTime(rec.Created),
		"modified": formatTime(rec.Modified),
	}
}

// listEntry upgrades an object listing entry to its full record so
// type and perms resolve; directory entries carry nulls there.
func (e *Executor) listEntry(entry namespace.Entry) map[string]any {
	if entry.Kind == namespace.KindObject {
		if rec, _, err := e.store.Get(entry.ID); err == nil && rec != nil {
			return recordEntry(rec)
		}
	}
	return map[string]any{
		"id":       nil,
		"name":     entry.Name,
		"path":     entry.Path,
		"kind":     string(entry.Kind),
		"type":     nil,
		"version":  nil,
		"size":     entry.Size,
		"perms":    nil,
		"created":  nil,
		"modified": formatTime(entry.Modified),
	}
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// project applies a selection set to a resolved entry, honoring
// aliases.
func project(entry map[string]any, sel ast.SelectionSet, typename string) map[string]any {
	if len(sel) == 0 {
		return entry
	}
	out := make(map[string]any, len(sel))
	for _, s := range sel {
		field, ok := s.(*ast.Field)
		if !ok {
			continue
		}
		key := field.Alias
		if key == "" {
			key = field.Name
		}
		if field.Name == "__typename" {
			out[key] = typename
			continue
		}
		out[key] = entry[field.Name]
	}
	return out
}
