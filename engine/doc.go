// Package engine executes methods on namespace objects in place at
// the node. A call names an object by id, decodes the stored envelope
// into its registered Go type, invokes the requested method through
// reflection and returns the JSON-encoded result. Calls to the same
// id are serialized; calls to different ids run concurrently.
//
// Mutating methods change the decoded value only. Whether the changed
// state is written back to the store is controlled by the persist
// mode of the call, Transient or Persistent.
package engine
