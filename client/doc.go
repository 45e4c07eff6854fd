// Package client is the remote surface of an emerge node. It speaks
// the same operation protocol as the gateway dispatcher, one method
// per operation, over a pluggable Transport.
//
// The usual transport is NATS request/reply via Dial; tests bind a
// client straight to an in-process dispatcher instead. Faults come
// back as typed errors from the errors package, so callers branch with
// errors.IsNotFound and friends exactly as node-side code does.
//
// Proxy gives call-style access to one stored object: it fetches the
// object's method descriptor once, then forwards each Call as an
// execute operation and each Attr as a fresh payload fetch. No object
// state is cached client-side.
package client
