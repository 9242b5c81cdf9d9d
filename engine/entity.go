package engine

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/model"
	"github.com/hupe1980/strata/vtable"
)

// CreateEntity mints a fresh id and anchors a live entity row under ctx.
func (e *Engine) CreateEntity(ctx core.Ctx, flags core.Flags) (model.Entity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.entityIDs.Next()
	if err != nil {
		return model.Entity{}, err
	}
	if _, err := e.entities.InsertLive(id, entityRow{Ctx: ctx, Flags: flags}); err != nil {
		// The allocator guarantees fresh ids, so an occupied slot means the
		// id space was misconfigured across engine instances.
		return model.Entity{}, fmt.Errorf("entity %d: %w", id, err)
	}

	ent := model.Entity{ID: id, Ctx: ctx, Flags: flags}
	return ent, e.commit(Mutation{Op: OpCreateEntity, At: e.clock(), Base: id, Ctx: ctx, Flags: flags})
}

// GetEntity returns the live entity row for (id, ctx).
func (e *Engine) GetEntity(id core.ID, ctx core.Ctx) (model.Entity, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ref, ok := e.entities.QueryLive(id)
	if !ok {
		return model.Entity{}, false
	}
	row := e.entities.Get(ref)
	if row.Ctx != ctx {
		return model.Entity{}, false
	}
	return model.Entity{ID: id, Ctx: ctx, Flags: row.Flags}, true
}

// EntityHistory yields every version of the entity slot in creation order.
func (e *Engine) EntityHistory(id core.ID) iter.Seq[model.Version[model.Entity]] {
	return func(yield func(model.Version[model.Entity]) bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		for ref := range e.entities.QueryHistory(id) {
			row := e.entities.Get(ref)
			v := model.Version[model.Entity]{
				Row:     model.Entity{ID: id, Ctx: row.Ctx, Flags: row.Flags},
				Removed: e.entities.RemovedAt(ref),
			}
			if !yield(v) {
				return
			}
		}
	}
}

// SetEntityFlags adds and clears flag bits on the live entity row. Rows are
// immutable, so the update is a replace: the old row is tombstoned and a row
// with the merged flags takes over the slot.
func (e *Engine) SetEntityFlags(id core.ID, ctx core.Ctx, add, clear core.Flags) (core.Flags, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	flags, err := e.setEntityFlags(id, ctx, add, clear, at)
	if err != nil {
		return 0, err
	}
	return flags, e.commit(Mutation{Op: OpSetEntityFlags, At: at, Base: id, Ctx: ctx, Flags: add, Flags2: clear})
}

func (e *Engine) setEntityFlags(id core.ID, ctx core.Ctx, add, clear core.Flags, at time.Time) (core.Flags, error) {
	ref, ok := e.entities.QueryLive(id)
	if !ok {
		return 0, ErrNotFound
	}
	row := e.entities.Get(ref)
	if row.Ctx != ctx {
		return 0, ErrNotFound
	}
	row.Flags = applyFlags(row.Flags, add, clear)
	if _, err := e.entities.Replace(ref, row, at); err != nil {
		return 0, err
	}
	return row.Flags, nil
}

// RemoveEntity tombstones the entity row only. Dependent rows (properties,
// aliases, names, relationships) stay live; use RemoveEntityEstate to
// retract them in the same unit of work.
func (e *Engine) RemoveEntity(id core.ID, ctx core.Ctx) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	if err := e.removeEntity(id, ctx, at); err != nil {
		return err
	}
	return e.commit(Mutation{Op: OpRemoveEntity, At: at, Base: id, Ctx: ctx})
}

func (e *Engine) removeEntity(id core.ID, ctx core.Ctx, at time.Time) error {
	ref, ok := e.entities.QueryLive(id)
	if !ok || e.entities.Get(ref).Ctx != ctx {
		return ErrNotFound
	}
	return e.entities.Tombstone(ref, at)
}

// RemoveEntityEstate tombstones the entity and everything it owns (its
// properties, aliases with all three index rows, names and both directions
// of its relationships) in one atomic unit.
func (e *Engine) RemoveEntityEstate(id core.ID, ctx core.Ctx) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	if err := e.removeEntity(id, ctx, at); err != nil {
		return err
	}
	e.removeEstate(id, at)
	return e.commit(Mutation{Op: OpRemoveEntityEstate, At: at, Base: id, Ctx: ctx})
}

// removeEstate tombstones every dependent row owned by id, in every ctx.
// Callers hold the write lock and have already removed the owner row.
func (e *Engine) removeEstate(id core.ID, at time.Time) {
	// Properties.
	var propRefs []vtable.Ref
	for ref := range e.props.LiveRefs() {
		if e.props.Key(ref).Base == id {
			propRefs = append(propRefs, ref)
		}
	}
	for _, ref := range propRefs {
		_ = e.props.Tombstone(ref, at)
	}

	// Aliases and their three index rows.
	var aliasRefs []vtable.Ref
	for ref := range e.aliases.LiveRefs() {
		if e.aliases.GroupOf(ref).Base == id {
			aliasRefs = append(aliasRefs, ref)
		}
	}
	for _, ref := range aliasRefs {
		group := e.aliases.GroupOf(ref)
		value := e.aliases.ElemOf(ref)
		_ = e.aliases.Tombstone(ref, at)
		e.dropAliasIndexes(group.Base, group.Ctx, value, at)
	}

	// Names.
	var nameRefs []vtable.Ref
	for ref := range e.names.LiveRefs() {
		if e.names.GroupOf(ref).Base == id {
			nameRefs = append(nameRefs, ref)
		}
	}
	for _, ref := range nameRefs {
		_ = e.names.Tombstone(ref, at)
	}

	// Relationships: tombstone each direction's row together with its mirror
	// so the pairing invariant holds after the unit commits.
	type relPair struct {
		base, rel core.ID
		ctx       core.Ctx
	}
	seen := make(map[relPair]struct{})
	for ref := range e.rels.LiveRefs() {
		group := e.rels.GroupOf(ref)
		other := e.rels.ElemOf(ref)
		var p relPair
		if group.Forward {
			p = relPair{base: group.ID, rel: other, ctx: group.Ctx}
		} else {
			p = relPair{base: other, rel: group.ID, ctx: group.Ctx}
		}
		if p.base != id && p.rel != id {
			continue
		}
		seen[p] = struct{}{}
	}
	for p := range seen {
		e.rels.Remove(relKey{ID: p.base, Ctx: p.ctx, Forward: true}, p.rel, at)
		e.rels.Remove(relKey{ID: p.rel, Ctx: p.ctx, Forward: false}, p.base, at)
	}
}

// IsConstraint reports whether err is a live-uniqueness conflict that the
// caller should handle with a read-modify-write retry.
func IsConstraint(err error) bool {
	return errors.Is(err, vtable.ErrConstraintViolation)
}
