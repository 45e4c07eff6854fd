// Package node assembles one emerge node from its subsystems and runs
// it. A Node owns the namespace store, the type registry, the execution
// and search engines, the metrics registry and the gateway bindings;
// Run serves every configured transport until the context is canceled.
package node
