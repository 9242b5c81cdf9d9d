package engine

import (
	"fmt"
	"iter"
	"time"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/model"
	"github.com/hupe1980/strata/vtable"
)

// CreateRelationship stores the directed edge base->rel as two live rows,
// one under the forward key (base, ctx, rel) and one under the backward key
// (rel, ctx, base), committed in the same unit of work so readers never see
// the pairing half-done. fwdPos and revPos order the edge independently
// within each endpoint's list.
//
// A live pair for (base, rel, ctx) already existing fails with the vtable
// constraint error; callers re-read and retry.
func (e *Engine) CreateRelationship(base, rel core.ID, ctx core.Ctx, fwdPos, revPos core.Pos, flags core.Flags) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	if err := e.createRelationship(base, rel, ctx, fwdPos, revPos, flags); err != nil {
		return err
	}
	return e.commit(Mutation{Op: OpCreateRelationship, At: at, Base: base, Rel: rel, Ctx: ctx, Pos: fwdPos, Pos2: revPos, Flags: flags})
}

func (e *Engine) createRelationship(base, rel core.ID, ctx core.Ctx, fwdPos, revPos core.Pos, flags core.Flags) error {
	if !e.baseExists(base) {
		return fmt.Errorf("%w: %d", ErrNoObject, base)
	}
	if !e.baseExists(rel) {
		return fmt.Errorf("%w: %d", ErrNoObject, rel)
	}

	fwd := relKey{ID: base, Ctx: ctx, Forward: true}
	bwd := relKey{ID: rel, Ctx: ctx, Forward: false}

	// Check both directions up front so the pair is inserted all-or-nothing.
	if _, ok := e.rels.Elem(fwd, rel); ok {
		return vtable.ErrConstraintViolation
	}
	if _, ok := e.rels.Elem(bwd, base); ok {
		return vtable.ErrConstraintViolation
	}

	if _, err := e.rels.Insert(fwd, rel, relRow{Flags: flags}, fwdPos); err != nil {
		return err
	}
	if _, err := e.rels.Insert(bwd, base, relRow{Flags: flags}, revPos); err != nil {
		return err
	}
	return nil
}

// GetRelationship returns one direction's row of the edge base->rel.
func (e *Engine) GetRelationship(base, rel core.ID, ctx core.Ctx, forward bool) (model.Relationship, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	key, elem := relKey{ID: base, Ctx: ctx, Forward: true}, rel
	if !forward {
		key, elem = relKey{ID: rel, Ctx: ctx, Forward: false}, base
	}
	ref, ok := e.rels.Elem(key, elem)
	if !ok {
		return model.Relationship{}, false
	}
	pos, _ := e.rels.PosOf(ref)
	return model.Relationship{
		BaseID:  base,
		RelID:   rel,
		Ctx:     ctx,
		Flags:   e.rels.Get(ref).Flags,
		Forward: forward,
		Pos:     pos,
	}, true
}

// ListRelationships returns up to limit edges touching id in the given
// direction, ordered by that direction's positions. Forward lists the
// outgoing edges of id; backward lists the incoming ones.
func (e *Engine) ListRelationships(id core.ID, ctx core.Ctx, forward bool, fromPos core.Pos, limit int) []model.Relationship {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if fromPos < 0 {
		fromPos = 0
	}
	key := relKey{ID: id, Ctx: ctx, Forward: forward}
	refs := e.rels.Scan(key, fromPos, limit)
	out := make([]model.Relationship, 0, len(refs))
	for i, ref := range refs {
		other := e.rels.ElemOf(ref)
		r := model.Relationship{
			Ctx:     ctx,
			Flags:   e.rels.Get(ref).Flags,
			Forward: forward,
			Pos:     fromPos + core.Pos(i),
		}
		if forward {
			r.BaseID, r.RelID = id, other
		} else {
			r.BaseID, r.RelID = other, id
		}
		out = append(out, r)
	}
	return out
}

// RelationshipHistory yields every row ever written under one direction's
// key for id, in creation order.
func (e *Engine) RelationshipHistory(id core.ID, ctx core.Ctx, forward bool) iter.Seq[model.Version[model.Relationship]] {
	return func(yield func(model.Version[model.Relationship]) bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		for ref := range e.rels.History(relKey{ID: id, Ctx: ctx, Forward: forward}) {
			other := e.rels.ElemOf(ref)
			r := model.Relationship{
				Ctx:     ctx,
				Flags:   e.rels.Get(ref).Flags,
				Forward: forward,
				Pos:     e.rels.CreatedPos(ref),
			}
			if forward {
				r.BaseID, r.RelID = id, other
			} else {
				r.BaseID, r.RelID = other, id
			}
			v := model.Version[model.Relationship]{Row: r, Removed: e.rels.RemovedAt(ref)}
			if !yield(v) {
				return
			}
		}
	}
}

// RemoveRelationship tombstones both directions of the edge base->rel in one
// unit of work, shifting positions down in each endpoint's list.
func (e *Engine) RemoveRelationship(base, rel core.ID, ctx core.Ctx) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	fwd := relKey{ID: base, Ctx: ctx, Forward: true}
	bwd := relKey{ID: rel, Ctx: ctx, Forward: false}
	if _, ok := e.rels.Elem(fwd, rel); !ok {
		return ErrNotFound
	}
	e.rels.Remove(fwd, rel, at)
	e.rels.Remove(bwd, base, at)
	return e.commit(Mutation{Op: OpRemoveRelationship, At: at, Base: base, Rel: rel, Ctx: ctx})
}

// ReorderRelationship moves the edge to pos within one direction's list; the
// other direction's ordering is untouched.
func (e *Engine) ReorderRelationship(base, rel core.ID, ctx core.Ctx, forward bool, pos core.Pos) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	key, elem := relKey{ID: base, Ctx: ctx, Forward: true}, rel
	if !forward {
		key, elem = relKey{ID: rel, Ctx: ctx, Forward: false}, base
	}
	if !e.rels.Reorder(key, elem, pos) {
		return ErrNotFound
	}
	return e.commit(Mutation{Op: OpReorderRelationship, At: at, Base: base, Rel: rel, Ctx: ctx, Forward: forward, Pos: pos})
}

// SetRelationshipFlags adds and clears flag bits on both directions of the
// edge in one unit of work.
func (e *Engine) SetRelationshipFlags(base, rel core.ID, ctx core.Ctx, add, clear core.Flags) (core.Flags, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	flags, err := e.setRelationshipFlags(base, rel, ctx, add, clear, at)
	if err != nil {
		return 0, err
	}
	return flags, e.commit(Mutation{Op: OpSetRelationshipFlags, At: at, Base: base, Rel: rel, Ctx: ctx, Flags: add, Flags2: clear})
}

func (e *Engine) setRelationshipFlags(base, rel core.ID, ctx core.Ctx, add, clear core.Flags, at time.Time) (core.Flags, error) {
	fwd := relKey{ID: base, Ctx: ctx, Forward: true}
	bwd := relKey{ID: rel, Ctx: ctx, Forward: false}
	fref, ok := e.rels.Elem(fwd, rel)
	if !ok {
		return 0, ErrNotFound
	}
	bref, ok := e.rels.Elem(bwd, base)
	if !ok {
		return 0, ErrNotFound
	}
	flags := applyFlags(e.rels.Get(fref).Flags, add, clear)

	fpos, _ := e.rels.PosOf(fref)
	bpos, _ := e.rels.PosOf(bref)
	_ = e.rels.Tombstone(fref, at)
	_ = e.rels.Tombstone(bref, at)
	if _, err := e.rels.Insert(fwd, rel, relRow{Flags: flags}, fpos); err != nil {
		return 0, err
	}
	if _, err := e.rels.Insert(bwd, base, relRow{Flags: flags}, bpos); err != nil {
		return 0, err
	}
	return flags, nil
}
