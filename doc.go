// Package emerge is a remote, path-addressed object store. Objects
// live in a filesystem-like namespace, travel as self-describing
// envelopes that preserve shared sub-object identity, and expose their
// exported methods for remote invocation. A node serves the protocol
// over NATS request/reply and HTTP; the client package and the emerge
// command are the front ends.
//
// The top-level package only carries this overview. See the package
// docs of envelope, namespace, search, engine, gateway, client and
// node for the individual subsystems.
package emerge
