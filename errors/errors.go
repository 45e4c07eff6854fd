package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a protocol error for handling purposes.
type Kind int

const (
	// KindInternal represents failures not attributable to caller input
	KindInternal Kind = iota
	// KindInvalidPath represents a malformed or non-absolute path
	KindInvalidPath
	// KindNotFound represents a missing id or path
	KindNotFound
	// KindAlreadyExists represents a structural conflict on create
	KindAlreadyExists
	// KindNoSuchParent represents a missing parent directory on store
	KindNoSuchParent
	// KindNoSuchMethod represents a missing method on the execution target
	KindNoSuchMethod
	// KindUnknownType represents a decode-side type resolution failure
	KindUnknownType
	// KindExecution represents a failure raised by a method body during execute
	KindExecution
	// KindBadRequest represents a request body the node could not parse
	KindBadRequest
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidPath:
		return "invalid_path"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindNoSuchParent:
		return "no_such_parent"
	case KindNoSuchMethod:
		return "no_such_method"
	case KindUnknownType:
		return "unknown_type"
	case KindExecution:
		return "execution_error"
	case KindBadRequest:
		return "bad_request"
	case KindInternal:
		return "internal"
	default:
		return "internal"
	}
}

// KindFromString maps a wire name back to its Kind. Unrecognized names map
// to KindInternal so a newer node never crashes an older client.
func KindFromString(s string) Kind {
	switch s {
	case "invalid_path":
		return KindInvalidPath
	case "not_found":
		return KindNotFound
	case "already_exists":
		return KindAlreadyExists
	case "no_such_parent":
		return KindNoSuchParent
	case "no_such_method":
		return KindNoSuchMethod
	case "unknown_type":
		return KindUnknownType
	case "execution_error":
		return KindExecution
	case "bad_request":
		return KindBadRequest
	default:
		return KindInternal
	}
}

// Error is the single structured error value used throughout the protocol.
// Component and Op record where the failure originated on the node side;
// they are folded into the message at the wire boundary.
type Error struct {
	Kind      Kind
	Component string
	Op        string
	Message   string
	Err       error
}

// Error renders "component.op: message: cause".
func (e *Error) Error() string {
	msg := e.Message
	if e.Component != "" && e.Op != "" {
		msg = fmt.Sprintf("%s.%s: %s", e.Component, e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind with origin context.
func New(kind Kind, component, op, message string) *Error {
	return &Error{Kind: kind, Component: component, Op: op, Message: message}
}

// WrapKind wraps an underlying error with a kind and origin context.
// Returns nil if err is nil.
func WrapKind(kind Kind, err error, component, op, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Component: component, Op: op, Message: message, Err: err}
}

// InvalidPath creates a KindInvalidPath error.
func InvalidPath(component, op, message string) *Error {
	return New(KindInvalidPath, component, op, message)
}

// NotFound creates a KindNotFound error.
func NotFound(component, op, message string) *Error {
	return New(KindNotFound, component, op, message)
}

// AlreadyExists creates a KindAlreadyExists error.
func AlreadyExists(component, op, message string) *Error {
	return New(KindAlreadyExists, component, op, message)
}

// NoSuchParent creates a KindNoSuchParent error.
func NoSuchParent(component, op, message string) *Error {
	return New(KindNoSuchParent, component, op, message)
}

// NoSuchMethod creates a KindNoSuchMethod error.
func NoSuchMethod(component, op, message string) *Error {
	return New(KindNoSuchMethod, component, op, message)
}

// UnknownType creates a KindUnknownType error.
func UnknownType(component, op, message string) *Error {
	return New(KindUnknownType, component, op, message)
}

// Execution creates a KindExecution error carrying the message raised by
// the method body.
func Execution(component, op, message string) *Error {
	return New(KindExecution, component, op, message)
}

// BadRequest creates a KindBadRequest error for unparseable caller input.
func BadRequest(component, op, message string) *Error {
	return New(KindBadRequest, component, op, message)
}

// Internal creates a KindInternal error.
func Internal(component, op, message string) *Error {
	return New(KindInternal, component, op, message)
}

// KindOf returns the kind of err, or KindInternal if err carries no kind.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// IsInvalidPath reports whether err is an invalid-path failure.
func IsInvalidPath(err error) bool { return Is(err, KindInvalidPath) }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return Is(err, KindNotFound) }

// IsAlreadyExists reports whether err is an already-exists conflict.
func IsAlreadyExists(err error) bool { return Is(err, KindAlreadyExists) }

// IsNoSuchParent reports whether err is a missing-parent failure.
func IsNoSuchParent(err error) bool { return Is(err, KindNoSuchParent) }

// IsNoSuchMethod reports whether err is a missing-method failure.
func IsNoSuchMethod(err error) bool { return Is(err, KindNoSuchMethod) }

// IsUnknownType reports whether err is a type resolution failure.
func IsUnknownType(err error) bool { return Is(err, KindUnknownType) }

// IsExecution reports whether err was raised by a method body during execute.
func IsExecution(err error) bool { return Is(err, KindExecution) }

// IsBadRequest reports whether err is an unparseable-request failure.
func IsBadRequest(err error) bool { return Is(err, KindBadRequest) }

// WireError is the JSON shape every remote-boundary failure is encoded as.
// The Error field is always true so callers can distinguish fault payloads
// from result payloads without schema knowledge.
type WireError struct {
	Error   bool   `json:"error"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// MarshalWire converts any error into its wire JSON form. Errors without a
// kind are reported as internal; the message is never empty.
func MarshalWire(err error) []byte {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	we := WireError{Error: true, Kind: KindOf(err).String(), Message: msg}
	data, jerr := json.Marshal(we)
	if jerr != nil {
		// WireError contains only strings, so this cannot happen in
		// practice; fall back to a hand-built payload regardless.
		return []byte(`{"error":true,"kind":"internal","message":"error marshal failed"}`)
	}
	return data
}

// UnmarshalWire reconstructs a structured error from its wire form.
// Returns nil if data is not a fault payload.
func UnmarshalWire(data []byte) error {
	var we WireError
	if err := json.Unmarshal(data, &we); err != nil {
		return nil
	}
	if !we.Error {
		return nil
	}
	return &Error{Kind: KindFromString(we.Kind), Message: we.Message}
}

// As is a convenience re-export of the standard library errors.As.
func As(err error, target any) bool { return errors.As(err, target) }
