// Package engine implements the authoritative tables of the store: entities,
// properties, aliases with their three lookup indexes, relationships, the
// tree and names, all composed from the vtable versioned-record primitives.
//
// A single store-level RWMutex is the atomic unit of work: every mutation
// runs under the write lock, so multi-row units (an alias plus its three
// index rows, the two directions of a relationship, a replace) are never
// observable half-done. Reads run under the read lock and see the committed
// live set. Conflicts surface as constraint errors for the caller's
// read-modify-write retry loop; the engine never retries on its own.
package engine
