// Package metric provides Prometheus-based metrics for an emerge node.
//
// A Registry owns a private prometheus.Registry carrying the node's
// core metrics: per-operation request counters and latencies, error
// counts by kind, and namespace size gauges. The node exposes the
// registry through the HTTP gateway's /metrics endpoint.
//
// All metrics use the "emerge" namespace:
//
//	emerge_rpc_requests_total{op="store",status="ok"}
//	emerge_rpc_duration_seconds{op="execute"}
//	emerge_errors_total{kind="not_found"}
//	emerge_namespace_objects
//	emerge_namespace_directories
//	emerge_watch_clients
package metric
