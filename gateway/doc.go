// Package gateway exposes the node's operations over the wire.
//
// The Dispatcher is transport neutral: it maps an operation name and a
// JSON request body to a JSON response body. Faults are returned as
// error payloads in the shape produced by errors.MarshalWire, never as
// transport-level failures. The NATS binding subscribes the dispatcher
// on one request/reply subject per operation; the http subpackage
// serves the same operations over HTTP POST.
//
// Subjects follow the pattern "emerge.rpc.<op>", so a store request is
// a request/reply exchange on "emerge.rpc.store". All node replicas
// join the same queue group, giving per-request load balancing for
// free.
package gateway
