// Package graphql answers GraphQL queries against the namespace.
//
// The schema exposes read-only entry points: object lookup by id or
// path, directory listings, predicate search, and namespace stats.
// Documents are validated against the schema with gqlparser and
// resolved directly over the store; mutations go through the regular
// RPC operations instead.
//
// A gqlgen playground handler is available for interactive use; the
// HTTP gateway mounts it on GET /graphql.
package graphql
