package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/radiantone/emerge/envelope"
	"github.com/radiantone/emerge/errors"
	"github.com/radiantone/emerge/namespace"
)

// Mode selects what happens to object state after a call returns.
type Mode string

const (
	// ModeTransient discards state changed by the call.
	ModeTransient Mode = "transient"
	// ModePersistent writes changed state back to the store.
	ModePersistent Mode = "persistent"
)

// queryMethod is the conventional inspection method invoked by Query.
const queryMethod = "query"

// Config carries engine construction options.
type Config struct {
	// DefaultMode applies when a call does not name a persist mode.
	// Defaults to ModePersistent.
	DefaultMode Mode
	Logger      *slog.Logger
}

// Engine invokes methods on stored objects. Decoding, invocation and
// writeback for one id happen under that id's lock, so two calls
// against the same object never interleave.
type Engine struct {
	store       *namespace.Store
	registry    *envelope.Registry
	locks       *keyedLocks
	defaultMode Mode
	logger      *slog.Logger
}

// New returns an engine over the given store and type registry.
func New(store *namespace.Store, registry *envelope.Registry, cfg Config) *Engine {
	mode := cfg.DefaultMode
	if mode == "" {
		mode = ModePersistent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:       store,
		registry:    registry,
		locks:       newKeyedLocks(),
		defaultMode: mode,
		logger:      logger,
	}
}

// Method describes one remotely invokable method of a stored object.
// Name is the wire name, Arity the number of caller-supplied arguments.
type Method struct {
	Name  string `json:"name"`
	Arity int    `json:"arity"`
}

var (
	errType = reflect.TypeOf((*error)(nil)).Elem()
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// codecMethods are the envelope surface every stored type carries.
// They are not part of an object's remote call surface.
var codecMethods = map[string]bool{
	"Descriptor":    true,
	"Validate":      true,
	"MarshalJSON":   true,
	"UnmarshalJSON": true,
	"Links":         true,
	"SetLink":       true,
}

// Execute invokes method on the object named by id and returns the
// JSON-encoded result. Mode "" means the engine default. A method
// returning an error, or panicking, fails the call with an execution
// fault; the object is never persisted on failure.
func (e *Engine) Execute(ctx context.Context, id, method string, mode Mode) (json.RawMessage, error) {
	switch mode {
	case "":
		mode = e.defaultMode
	case ModeTransient, ModePersistent:
	default:
		return nil, errors.Internal("Engine", "Execute",
			fmt.Sprintf("unsupported persist mode %q", mode))
	}

	release := e.locks.acquire(id)
	defer release()

	if err := ctx.Err(); err != nil {
		return nil, errors.WrapKind(errors.KindInternal, err, "Engine", "Execute", "canceled")
	}

	rec, _, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.InvalidPath("Engine", "Execute",
			fmt.Sprintf("%q names a directory, not an object", id))
	}

	obj, err := envelope.DecodeBytes(rec.Data, e.registry)
	if err != nil {
		return nil, errors.WrapKind(errors.KindOf(err), err, "Engine", "Execute",
			fmt.Sprintf("decode object %s", rec.ID))
	}
	if _, generic := obj.(*envelope.Generic); generic {
		return nil, errors.NoSuchMethod("Engine", "Execute",
			fmt.Sprintf("type %s/%s has no registered implementation, methods unavailable",
				rec.Type.Name, rec.Type.Version))
	}

	fn, err := findMethod(obj, method)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	value, err := call(ctx, fn)
	if err != nil {
		e.logger.Warn("execute failed",
			"id", rec.ID, "method", method, "error", err)
		return nil, err
	}
	e.logger.Debug("execute",
		"id", rec.ID, "method", method, "mode", string(mode),
		"duration", time.Since(start))

	if mode == ModePersistent {
		data, err := envelope.EncodeBytes(obj)
		if err != nil {
			return nil, errors.WrapKind(errors.KindInternal, err, "Engine", "Execute",
				fmt.Sprintf("re-encode object %s", rec.ID))
		}
		// A read-only method leaves the envelope byte-identical; writing
		// it back would bump Modified and emit a spurious store event.
		if !bytes.Equal(data, rec.Data) {
			rec.Data = data
			rec.Size = int64(len(data))
			if err := e.store.Put(rec); err != nil {
				return nil, err
			}
		}
	}

	result, err := json.Marshal(value)
	if err != nil {
		return nil, errors.WrapKind(errors.KindInternal, err, "Engine", "Execute",
			fmt.Sprintf("encode result of %s.%s", rec.ID, method))
	}
	return result, nil
}

// Query resolves path to an object and invokes its query method. Query
// is inspection only, so state is never written back.
func (e *Engine) Query(ctx context.Context, path string) (json.RawMessage, error) {
	rec, _, err := e.store.Get(path)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.InvalidPath("Engine", "Query",
			fmt.Sprintf("%q names a directory, not an object", path))
	}
	return e.Execute(ctx, rec.ID, queryMethod, ModeTransient)
}

// Describe returns the invokable methods of the object named by id,
// sorted by wire name. The client proxy builds its call surface from
// this descriptor.
func (e *Engine) Describe(id string) ([]Method, error) {
	rec, _, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.InvalidPath("Engine", "Describe",
			fmt.Sprintf("%q names a directory, not an object", id))
	}

	obj, err := envelope.DecodeBytes(rec.Data, e.registry)
	if err != nil {
		return nil, errors.WrapKind(errors.KindOf(err), err, "Engine", "Describe",
			fmt.Sprintf("decode object %s", rec.ID))
	}
	if _, generic := obj.(*envelope.Generic); generic {
		return []Method{}, nil
	}

	value := reflect.ValueOf(obj)
	typ := value.Type()
	methods := make([]Method, 0, typ.NumMethod())
	for i := 0; i < typ.NumMethod(); i++ {
		name := typ.Method(i).Name
		if codecMethods[name] || !invokable(value.Method(i).Type()) {
			continue
		}
		methods = append(methods, Method{Name: wireName(name), Arity: 0})
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })
	return methods, nil
}

// findMethod resolves a wire method name against the object's exported
// methods. Matching ignores case and underscores, so "total_cost"
// resolves TotalCost.
func findMethod(obj envelope.Object, name string) (reflect.Value, error) {
	want := canonicalName(name)
	value := reflect.ValueOf(obj)
	typ := value.Type()
	for i := 0; i < typ.NumMethod(); i++ {
		m := typ.Method(i)
		if codecMethods[m.Name] || canonicalName(m.Name) != want {
			continue
		}
		fn := value.Method(i)
		if !invokable(fn.Type()) {
			return reflect.Value{}, errors.NoSuchMethod("Engine", "Execute",
				fmt.Sprintf("method %q exists but is not remotely invokable", name))
		}
		return fn, nil
	}
	return reflect.Value{}, errors.NoSuchMethod("Engine", "Execute",
		fmt.Sprintf("no method %q on type %s", name, typ.Elem().Name()))
}

// invokable reports whether a method signature can be called remotely:
// no arguments beyond an optional leading context.Context, and at most
// one result plus an optional trailing error.
func invokable(t reflect.Type) bool {
	switch t.NumIn() {
	case 0:
	case 1:
		if t.In(0) != ctxType {
			return false
		}
	default:
		return false
	}
	switch t.NumOut() {
	case 0, 1:
		return true
	case 2:
		return t.Out(1) == errType
	default:
		return false
	}
}

// call invokes fn, converting a returned error or a panic into an
// execution fault.
func call(ctx context.Context, fn reflect.Value) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Execution("Engine", "Execute", fmt.Sprintf("panic: %v", r))
		}
	}()

	var args []reflect.Value
	if fn.Type().NumIn() == 1 {
		args = []reflect.Value{reflect.ValueOf(ctx)}
	}
	outs := fn.Call(args)

	if n := len(outs); n > 0 && outs[n-1].Type() == errType {
		if !outs[n-1].IsNil() {
			callErr := outs[n-1].Interface().(error)
			return nil, errors.WrapKind(errors.KindExecution, callErr,
				"Engine", "Execute", "method failed")
		}
		outs = outs[:n-1]
	}
	if len(outs) == 0 {
		return nil, nil
	}
	return outs[0].Interface(), nil
}

// wireName converts a Go method name to its wire form, TotalCost to
// total_cost.
func wireName(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func canonicalName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}
