package vtable

import (
	"iter"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/strata/core"
)

type listRow[K, E comparable, R any] struct {
	group      K
	elem       E
	payload    R
	createdPos core.Pos
	removed    *time.Time
}

// List is a versioned table of ordered row groups. Aliases, names and the
// two relationship directions are instances.
//
// The current ordering of a group is index state, not row state: rows record
// the position they were created at, while dense current positions follow
// from each row's index in the group's live ordering. Shifting neighbours on
// insert or removal therefore never rewrites committed rows.
type List[K, E comparable, R any] struct {
	rows       []listRow[K, E, R]
	order      map[K][]uint32     // live slots in list order
	byElem     map[K]map[E]uint32 // live slot per element key
	history    map[K][]uint32     // every slot of the group, creation order
	liveSet    *roaring.Bitmap
	uniqueElem bool
}

// NewList creates an empty table. If uniqueElem is set, at most one live row
// per (group, element) is admitted; otherwise element keys only identify
// rows for removal and reordering.
func NewList[K, E comparable, R any](uniqueElem bool) *List[K, E, R] {
	return &List[K, E, R]{
		order:      make(map[K][]uint32),
		byElem:     make(map[K]map[E]uint32),
		history:    make(map[K][]uint32),
		liveSet:    roaring.New(),
		uniqueElem: uniqueElem,
	}
}

// Insert appends a live row to the group at pos. core.AppendPos (or any
// position past the end) attaches it after the last live row; otherwise
// rows at pos and beyond shift one position up.
func (t *List[K, E, R]) Insert(group K, elem E, payload R, pos core.Pos) (Ref, error) {
	if t.uniqueElem {
		if _, ok := t.byElem[group][elem]; ok {
			return Ref{}, ErrConstraintViolation
		}
	}

	ord := t.order[group]
	idx := len(ord)
	if pos != core.AppendPos && int(pos) < idx {
		if pos < 0 {
			pos = 0
		}
		idx = int(pos)
	}

	slot := uint32(len(t.rows))
	t.rows = append(t.rows, listRow[K, E, R]{
		group:      group,
		elem:       elem,
		payload:    payload,
		createdPos: core.Pos(idx),
	})
	t.order[group] = slices.Insert(ord, idx, slot)
	em := t.byElem[group]
	if em == nil {
		em = make(map[E]uint32)
		t.byElem[group] = em
	}
	em[elem] = slot
	t.history[group] = append(t.history[group], slot)
	t.liveSet.Add(slot)
	return Ref{slot: slot}, nil
}

// Elem returns the live row for (group, element), if any.
func (t *List[K, E, R]) Elem(group K, elem E) (Ref, bool) {
	slot, ok := t.byElem[group][elem]
	return Ref{slot: slot}, ok
}

// Remove tombstones the live row for (group, element) and shifts higher
// positions down. It reports whether such a row existed.
func (t *List[K, E, R]) Remove(group K, elem E, at time.Time) (Ref, bool) {
	slot, ok := t.byElem[group][elem]
	if !ok {
		return Ref{}, false
	}
	t.tombstoneSlot(slot, at)
	return Ref{slot: slot}, true
}

// Tombstone sets the removal timestamp on the row at ref and detaches it
// from its group's live ordering.
func (t *List[K, E, R]) Tombstone(ref Ref, at time.Time) error {
	if t.rows[ref.slot].removed != nil {
		return ErrAlreadyRemoved
	}
	t.tombstoneSlot(ref.slot, at)
	return nil
}

func (t *List[K, E, R]) tombstoneSlot(slot uint32, at time.Time) {
	row := &t.rows[slot]
	ts := at
	row.removed = &ts
	ord := t.order[row.group]
	if i := slices.Index(ord, slot); i >= 0 {
		t.order[row.group] = slices.Delete(ord, i, i+1)
	}
	if em := t.byElem[row.group]; em != nil && em[row.elem] == slot {
		delete(em, row.elem)
		// Without element uniqueness the group may hold further live rows
		// under the same key; keep them addressable by Remove and Reorder.
		for _, s := range t.order[row.group] {
			if t.rows[s].elem == row.elem {
				em[row.elem] = s
				break
			}
		}
	}
	t.liveSet.Remove(slot)
}

// Reorder moves the live row for (group, element) to pos, shifting the rows
// in between. It reports whether the row existed.
func (t *List[K, E, R]) Reorder(group K, elem E, pos core.Pos) bool {
	slot, ok := t.byElem[group][elem]
	if !ok {
		return false
	}
	ord := t.order[group]
	from := slices.Index(ord, slot)
	if from < 0 {
		return false
	}
	to := int(pos)
	if to < 0 {
		to = 0
	}
	if to >= len(ord) {
		to = len(ord) - 1
	}
	ord = slices.Delete(ord, from, from+1)
	t.order[group] = slices.Insert(ord, to, slot)
	return true
}

// Scan returns up to limit live refs of the group starting at fromPos, in
// list order. limit <= 0 means no limit.
func (t *List[K, E, R]) Scan(group K, fromPos core.Pos, limit int) []Ref {
	ord := t.order[group]
	if fromPos < 0 {
		fromPos = 0
	}
	if int(fromPos) >= len(ord) {
		return nil
	}
	ord = ord[fromPos:]
	if limit > 0 && limit < len(ord) {
		ord = ord[:limit]
	}
	refs := make([]Ref, len(ord))
	for i, slot := range ord {
		refs[i] = Ref{slot: slot}
	}
	return refs
}

// PosOf returns the current dense position of a live row within its group.
func (t *List[K, E, R]) PosOf(ref Ref) (core.Pos, bool) {
	row := t.rows[ref.slot]
	if row.removed != nil {
		return 0, false
	}
	if i := slices.Index(t.order[row.group], ref.slot); i >= 0 {
		return core.Pos(i), true
	}
	return 0, false
}

// History yields every row of the group, live and tombstoned, in creation
// order.
func (t *List[K, E, R]) History(group K) iter.Seq[Ref] {
	return func(yield func(Ref) bool) {
		for _, slot := range t.history[group] {
			if !yield(Ref{slot: slot}) {
				return
			}
		}
	}
}

// HistoryElem yields the history of one (group, element) slot.
func (t *List[K, E, R]) HistoryElem(group K, elem E) iter.Seq[Ref] {
	return func(yield func(Ref) bool) {
		for _, slot := range t.history[group] {
			if t.rows[slot].elem != elem {
				continue
			}
			if !yield(Ref{slot: slot}) {
				return
			}
		}
	}
}

// LiveRefs yields the refs of all live rows across all groups in creation
// order.
func (t *List[K, E, R]) LiveRefs() iter.Seq[Ref] {
	return func(yield func(Ref) bool) {
		it := t.liveSet.Iterator()
		for it.HasNext() {
			if !yield(Ref{slot: it.Next()}) {
				return
			}
		}
	}
}

// Get returns the payload stored at ref.
func (t *List[K, E, R]) Get(ref Ref) R { return t.rows[ref.slot].payload }

// GroupOf returns the group key of the row at ref.
func (t *List[K, E, R]) GroupOf(ref Ref) K { return t.rows[ref.slot].group }

// ElemOf returns the element key of the row at ref.
func (t *List[K, E, R]) ElemOf(ref Ref) E { return t.rows[ref.slot].elem }

// CreatedPos returns the position the row was created at.
func (t *List[K, E, R]) CreatedPos(ref Ref) core.Pos { return t.rows[ref.slot].createdPos }

// RemovedAt returns the tombstone timestamp of the row at ref, or nil.
func (t *List[K, E, R]) RemovedAt(ref Ref) *time.Time {
	if ts := t.rows[ref.slot].removed; ts != nil {
		c := *ts
		return &c
	}
	return nil
}

// GroupLen returns the number of live rows in the group.
func (t *List[K, E, R]) GroupLen(group K) int { return len(t.order[group]) }

// Len returns the total number of rows ever written.
func (t *List[K, E, R]) Len() int { return len(t.rows) }

// ListRecord is the serialized form of one arena row. CurPos is the row's
// dense position at dump time and is only meaningful for live rows.
type ListRecord[K, E comparable, R any] struct {
	Group      K          `json:"group"`
	Elem       E          `json:"elem"`
	Payload    R          `json:"payload"`
	CreatedPos core.Pos   `json:"created_pos"`
	CurPos     core.Pos   `json:"cur_pos"`
	Removed    *time.Time `json:"removed,omitempty"`
}

// Dump exports all rows in arena order for snapshotting.
func (t *List[K, E, R]) Dump() []ListRecord[K, E, R] {
	out := make([]ListRecord[K, E, R], len(t.rows))
	for i, r := range t.rows {
		rec := ListRecord[K, E, R]{
			Group:      r.group,
			Elem:       r.elem,
			Payload:    r.payload,
			CreatedPos: r.createdPos,
			Removed:    r.removed,
		}
		if r.removed == nil {
			if pos, ok := t.PosOf(Ref{slot: uint32(i)}); ok {
				rec.CurPos = pos
			}
		}
		out[i] = rec
	}
	return out
}

// Load replaces the table contents with previously dumped rows, rebuilding
// each group's live ordering from the dumped positions.
func (t *List[K, E, R]) Load(records []ListRecord[K, E, R]) {
	t.rows = make([]listRow[K, E, R], len(records))
	t.order = make(map[K][]uint32)
	t.byElem = make(map[K]map[E]uint32)
	t.history = make(map[K][]uint32)
	t.liveSet = roaring.New()

	type liveEntry struct {
		slot uint32
		pos  core.Pos
	}
	livePerGroup := make(map[K][]liveEntry)

	for i, rec := range records {
		slot := uint32(i)
		t.rows[i] = listRow[K, E, R]{
			group:      rec.Group,
			elem:       rec.Elem,
			payload:    rec.Payload,
			createdPos: rec.CreatedPos,
			removed:    rec.Removed,
		}
		t.history[rec.Group] = append(t.history[rec.Group], slot)
		if rec.Removed == nil {
			livePerGroup[rec.Group] = append(livePerGroup[rec.Group], liveEntry{slot: slot, pos: rec.CurPos})
			em := t.byElem[rec.Group]
			if em == nil {
				em = make(map[E]uint32)
				t.byElem[rec.Group] = em
			}
			em[rec.Elem] = slot
			t.liveSet.Add(slot)
		}
	}

	for group, entries := range livePerGroup {
		slices.SortStableFunc(entries, func(a, b liveEntry) int { return int(a.pos - b.pos) })
		ord := make([]uint32, len(entries))
		for i, e := range entries {
			ord[i] = e.slot
		}
		t.order[group] = ord
	}
}
