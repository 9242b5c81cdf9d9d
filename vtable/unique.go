package vtable

import (
	"iter"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

type uniqueRow[K comparable, R any] struct {
	key     K
	payload R
	removed *time.Time
}

// Unique is a versioned table holding at most one live row per key.
// Entities, properties, tree nodes and the alias hash lookup are instances.
type Unique[K comparable, R any] struct {
	rows    []uniqueRow[K, R]
	live    map[K]uint32
	history map[K][]uint32
	liveSet *roaring.Bitmap
}

// NewUnique creates an empty table.
func NewUnique[K comparable, R any]() *Unique[K, R] {
	return &Unique[K, R]{
		live:    make(map[K]uint32),
		history: make(map[K][]uint32),
		liveSet: roaring.New(),
	}
}

// InsertLive appends a live row for key. It fails with ErrConstraintViolation
// if a live row already occupies the key.
func (t *Unique[K, R]) InsertLive(key K, payload R) (Ref, error) {
	if _, ok := t.live[key]; ok {
		return Ref{}, ErrConstraintViolation
	}
	slot := uint32(len(t.rows))
	t.rows = append(t.rows, uniqueRow[K, R]{key: key, payload: payload})
	t.live[key] = slot
	t.history[key] = append(t.history[key], slot)
	t.liveSet.Add(slot)
	return Ref{slot: slot}, nil
}

// Tombstone sets the removal timestamp on a live row.
func (t *Unique[K, R]) Tombstone(ref Ref, at time.Time) error {
	row := &t.rows[ref.slot]
	if row.removed != nil {
		return ErrAlreadyRemoved
	}
	ts := at
	row.removed = &ts
	delete(t.live, row.key)
	t.liveSet.Remove(ref.slot)
	return nil
}

// Replace atomically tombstones old and inserts payload as the new live row
// for the same key. If old is no longer the live row for its key (a
// concurrent writer got there first) it fails with ErrConstraintViolation
// and nothing is changed.
func (t *Unique[K, R]) Replace(old Ref, payload R, at time.Time) (Ref, error) {
	row := &t.rows[old.slot]
	cur, ok := t.live[row.key]
	if !ok || cur != old.slot {
		return Ref{}, ErrConstraintViolation
	}
	if err := t.Tombstone(old, at); err != nil {
		return Ref{}, err
	}
	return t.InsertLive(row.key, payload)
}

// QueryLive returns the unique live row ref for key, if any.
func (t *Unique[K, R]) QueryLive(key K) (Ref, bool) {
	slot, ok := t.live[key]
	return Ref{slot: slot}, ok
}

// Get returns the payload stored at ref.
func (t *Unique[K, R]) Get(ref Ref) R { return t.rows[ref.slot].payload }

// Key returns the uniqueness key of the row at ref.
func (t *Unique[K, R]) Key(ref Ref) K { return t.rows[ref.slot].key }

// RemovedAt returns the tombstone timestamp of the row at ref, or nil if the
// row is live.
func (t *Unique[K, R]) RemovedAt(ref Ref) *time.Time {
	if ts := t.rows[ref.slot].removed; ts != nil {
		c := *ts
		return &c
	}
	return nil
}

// QueryHistory yields all row refs for key, live and tombstoned, in creation
// order. The sequence is lazy and restartable.
func (t *Unique[K, R]) QueryHistory(key K) iter.Seq[Ref] {
	return func(yield func(Ref) bool) {
		for _, slot := range t.history[key] {
			if !yield(Ref{slot: slot}) {
				return
			}
		}
	}
}

// LiveRefs yields the refs of all live rows in creation order.
func (t *Unique[K, R]) LiveRefs() iter.Seq[Ref] {
	return func(yield func(Ref) bool) {
		it := t.liveSet.Iterator()
		for it.HasNext() {
			if !yield(Ref{slot: it.Next()}) {
				return
			}
		}
	}
}

// LiveCount returns the number of live rows.
func (t *Unique[K, R]) LiveCount() int { return int(t.liveSet.GetCardinality()) }

// Len returns the total number of rows ever written, live and tombstoned.
func (t *Unique[K, R]) Len() int { return len(t.rows) }

// UniqueRecord is the serialized form of one arena row.
type UniqueRecord[K comparable, R any] struct {
	Key     K          `json:"key"`
	Payload R          `json:"payload"`
	Removed *time.Time `json:"removed,omitempty"`
}

// Dump exports all rows in arena order for snapshotting.
func (t *Unique[K, R]) Dump() []UniqueRecord[K, R] {
	out := make([]UniqueRecord[K, R], len(t.rows))
	for i, r := range t.rows {
		out[i] = UniqueRecord[K, R]{Key: r.key, Payload: r.payload, Removed: r.removed}
	}
	return out
}

// Load replaces the table contents with previously dumped rows.
func (t *Unique[K, R]) Load(records []UniqueRecord[K, R]) {
	t.rows = make([]uniqueRow[K, R], len(records))
	t.live = make(map[K]uint32, len(records))
	t.history = make(map[K][]uint32)
	t.liveSet = roaring.New()
	for i, rec := range records {
		t.rows[i] = uniqueRow[K, R]{key: rec.Key, payload: rec.Payload, removed: rec.Removed}
		slot := uint32(i)
		t.history[rec.Key] = append(t.history[rec.Key], slot)
		if rec.Removed == nil {
			t.live[rec.Key] = slot
			t.liveSet.Add(slot)
		}
	}
}
