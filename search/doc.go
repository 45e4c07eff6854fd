// Package search implements the node-side search engine: predicate scans
// over the namespace and indexed field queries.
//
// # Predicates
//
// A search predicate is a serialized boolean expression, not executable
// code: a list of field/operator/value conditions combined with "and" or
// "or". Clients build the expression locally, ship it as JSON, and the node
// evaluates it against every record reachable from the scan root:
//
//	{"logic": "and", "conditions": [
//	  {"field": "path", "operator": "eq", "value": "/inventory"},
//	  {"field": "unit_price", "operator": "lt", "value": 10}
//	]}
//
// Search decodes every candidate before evaluating, making it O(n) in
// namespace size by design; it is a full scan, not an indexed query.
// Matching ids come back sorted so results are deterministic per call.
//
// # Field Queries
//
// SearchText resolves a (field, value) query against the namespace store's
// maintained field index and never decodes candidates. Matching is exact on
// the indexed canonical value.
package search
