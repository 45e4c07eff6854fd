// Package errors provides the standardized error taxonomy for the emerge
// protocol. Every failure that crosses the remote boundary is expressed as a
// single structured error value carrying a Kind plus a human-readable message,
// so clients can match on the kind without parsing message text.
//
// # Error Kinds
//
// The protocol defines a closed set of kinds:
//
//   - KindInvalidPath: malformed or non-absolute path
//   - KindNotFound: id or path does not exist
//   - KindAlreadyExists: structural conflict on create
//   - KindNoSuchParent: parent directory missing on store
//   - KindNoSuchMethod: named method absent on the target object
//   - KindUnknownType: decode-side type resolution failure
//   - KindExecution: a method body failed during execute; carries the
//     original message
//   - KindInternal: anything the node cannot attribute to caller input
//
// # Usage
//
// Construct errors with the kind helpers:
//
//	if !strings.HasPrefix(path, "/") {
//	    return errors.InvalidPath("Store", "validate path",
//	        fmt.Sprintf("path %q must be absolute", path))
//	}
//
// Wrap an underlying cause while preserving the kind:
//
//	if err := obj.UnmarshalJSON(data); err != nil {
//	    return errors.WrapKind(errors.KindUnknownType, err, "Codec", "Decode",
//	        "payload unmarshal")
//	}
//
// Check kinds with errors.Is-compatible predicates:
//
//	if errors.IsNotFound(err) {
//	    // render message, do not retry
//	}
//
// # Wire Format
//
// At the RPC boundary an *Error marshals to the wire shape
// {"error": true, "kind": "...", "message": "..."}. Responses that represent
// "absent data" as data (not as a protocol fault) reuse the same shape so
// callers can always distinguish faults from valid empty results.
package errors
