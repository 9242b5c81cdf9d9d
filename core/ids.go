package core

// ID is the globally unique 64-bit identifier for an entity or tree node.
// IDs are minted by a sequence.Allocator and are never reused, even when the
// row they anchor has been tombstoned.
type ID int64

// Ctx is the namespace discriminator. Every uniqueness and lookup scope in
// the store is implicitly partitioned by Ctx.
type Ctx uint16

// Flags is an opaque 16-bit bitset carried on every row. The store never
// interprets it; semantics belong entirely to callers.
type Flags uint16

// Pos is a zero-based position within an ordered row group (aliases, names,
// relationship lists, tree children).
type Pos int32

// AppendPos instructs list inserts to place the new row after the current
// last live position of its group.
const AppendPos Pos = -1
