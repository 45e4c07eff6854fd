// Package config loads the two configuration surfaces of emerge.
//
// A node reads a YAML file describing its identity, transports and
// policies; environment references like ${NATS_URL} are expanded
// before parsing. The CLI reads a small INI file, emerge.ini, that
// points it at a node. Both loaders validate before returning, so a
// bad file fails at startup rather than mid-request.
package config
