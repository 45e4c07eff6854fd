// Package namespace implements the hierarchical path-to-record mapping owned
// by one node: a tree of directories holding object records, addressable by
// absolute slash-delimited paths or by node-wide unique object ids.
//
// # Model
//
//   - Paths are absolute (`/inventory`, `/classes/myclass`), never carry a
//     trailing slash except the root, and always resolve through existing
//     directory entries.
//   - Object records carry the object's versioned type descriptor plus its
//     encoded envelope; the store never needs to decode an object to manage
//     it.
//   - Object ids are unique node-wide: re-storing an id under a new path
//     moves the record, it never duplicates it.
//   - `/` and `/registry` are reserved: they always exist, cannot be
//     removed, and `/registry` is excluded from default listings of its
//     parent.
//
// # Concurrency
//
// The tree is a shared resource guarded by a reader/writer discipline:
// lookups and listings proceed in parallel with each other, structural
// mutations (Mkdir, Store, Remove) are exclusive. Records handed out by the
// store are treated as immutable; a Store call replaces the record rather
// than mutating it in place.
//
// # Policies
//
// Two behaviors the protocol leaves open are explicit store policies:
// whether Mkdir creates missing parents implicitly (default: yes), and
// whether removing a non-empty directory cascades or fails (default:
// fails). Both defaults are documented here and exercised by tests.
//
// # Field Index
//
// The store maintains a side-table mapping field name → value → object ids,
// fed from each record's root payload on every Store and Remove. SearchText
// resolves against this index without decoding candidate objects.
package namespace
