// Package envelope implements the serialization contract that moves objects
// across the network boundary between a node and its clients.
//
// # Philosophy
//
// Client and node are independent processes with independently evolving type
// registries, so an envelope must carry enough information for the receiving
// side to reconstruct an object it has never seen the type of. Instead of
// shipping source text, the contract is explicit and versioned: every object
// crossing the boundary implements the Object interface (a typed descriptor,
// validation, and deterministic JSON serialization), and the descriptor ships
// a JSON Schema describing the payload. A peer that has the type registered
// decodes into the concrete type; a peer that does not falls back to a
// schema-validated Generic object that still supports field access.
//
// # Object Graphs
//
// Objects may reference other objects. Types expose those references through
// the Linker interface, and the codec flattens the reachable graph into a
// single object table, one entry per distinct object. An object referenced
// from two places is encoded once and rewired to the same decoded instance on
// the other side, so shared sub-objects are never duplicated or detached.
// Cycles are handled the same way: instances are allocated before links are
// wired.
//
// # Wire Shape
//
//	{
//	  "version": 1,
//	  "root": 0,
//	  "objects": [
//	    {"type": {"name": "inventory-item", "version": "v1", "schema": {...}},
//	     "payload": {...},
//	     "links": {"supplier": 1}},
//	    ...
//	  ]
//	}
//
// Decoding an envelope whose type cannot be resolved (unregistered and no
// usable schema) fails with an UnknownType error.
package envelope
