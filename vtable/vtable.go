// Package vtable implements the versioned record primitive every table in
// the store is built from: append-only row arenas where the only permitted
// mutation is the single tombstone transition (removed: nil -> timestamp).
//
// "Current state" is an index structure mapping a logical key to its live
// arena slot; history is the full per-key slot sequence in creation order.
// Live-uniqueness is enforced by that index, so a second concurrent live
// insert for an occupied key fails with ErrConstraintViolation.
//
// Tables are not self-locking. The engine's store lock is the atomic unit of
// work: callers must hold it in write mode for any mutation and in read mode
// for queries.
package vtable

import "errors"

var (
	// ErrConstraintViolation is returned when a live row already occupies
	// the uniqueness key of an insert or when a replace lost the race to a
	// concurrent writer.
	ErrConstraintViolation = errors.New("vtable: live uniqueness constraint violated")

	// ErrAlreadyRemoved is returned when tombstoning a row whose tombstone
	// is already set.
	ErrAlreadyRemoved = errors.New("vtable: row already tombstoned")
)

// Ref identifies a row slot within one table's arena. Refs remain valid for
// the lifetime of the table; tombstoning never invalidates them.
type Ref struct {
	slot uint32
}

func refOf(slot int) Ref { return Ref{slot: uint32(slot)} }

// Slot exposes the arena position, which doubles as the row's creation rank.
func (r Ref) Slot() uint32 { return r.slot }
