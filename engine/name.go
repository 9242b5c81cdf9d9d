package engine

import (
	"fmt"
	"iter"
	"time"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/model"
)

// CreateName stores an ordered label on base. Unlike aliases, the literal
// value itself is the uniqueness key: the same owner registering the same
// value twice live in the same ctx fails with the constraint error, while
// different owners may share a value freely. Names carry no lookup indexes.
func (e *Engine) CreateName(base core.ID, ctx core.Ctx, value string, pos core.Pos, flags core.Flags) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	if err := e.createName(base, ctx, value, pos, flags); err != nil {
		return err
	}
	return e.commit(Mutation{Op: OpCreateName, At: at, Base: base, Ctx: ctx, Str: value, Pos: pos, Flags: flags})
}

func (e *Engine) createName(base core.ID, ctx core.Ctx, value string, pos core.Pos, flags core.Flags) error {
	if !e.baseExists(base) {
		return fmt.Errorf("%w: %d", ErrNoObject, base)
	}
	_, err := e.names.Insert(ownerKey{Base: base, Ctx: ctx}, value, nameRow{Flags: flags}, pos)
	return err
}

// ListNames returns up to limit live names of (base, ctx) starting at
// fromPos, in list order.
func (e *Engine) ListNames(base core.ID, ctx core.Ctx, fromPos core.Pos, limit int) []model.Name {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if fromPos < 0 {
		fromPos = 0
	}
	refs := e.names.Scan(ownerKey{Base: base, Ctx: ctx}, fromPos, limit)
	out := make([]model.Name, 0, len(refs))
	for i, ref := range refs {
		out = append(out, model.Name{
			BaseID: base,
			Ctx:    ctx,
			Flags:  e.names.Get(ref).Flags,
			Pos:    fromPos + core.Pos(i),
			Value:  e.names.ElemOf(ref),
		})
	}
	return out
}

// NameHistory yields every name row ever written for (base, ctx) in
// creation order.
func (e *Engine) NameHistory(base core.ID, ctx core.Ctx) iter.Seq[model.Version[model.Name]] {
	return func(yield func(model.Version[model.Name]) bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		for ref := range e.names.History(ownerKey{Base: base, Ctx: ctx}) {
			v := model.Version[model.Name]{
				Row: model.Name{
					BaseID: base,
					Ctx:    ctx,
					Flags:  e.names.Get(ref).Flags,
					Pos:    e.names.CreatedPos(ref),
					Value:  e.names.ElemOf(ref),
				},
				Removed: e.names.RemovedAt(ref),
			}
			if !yield(v) {
				return
			}
		}
	}
}

// RemoveName tombstones the live name row for (base, ctx, value).
func (e *Engine) RemoveName(base core.ID, ctx core.Ctx, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	if _, ok := e.names.Remove(ownerKey{Base: base, Ctx: ctx}, value, at); !ok {
		return ErrNotFound
	}
	return e.commit(Mutation{Op: OpRemoveName, At: at, Base: base, Ctx: ctx, Str: value})
}

// ReorderName moves the live name row for (base, ctx, value) to pos,
// shifting the names in between.
func (e *Engine) ReorderName(base core.ID, ctx core.Ctx, value string, pos core.Pos) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	if !e.names.Reorder(ownerKey{Base: base, Ctx: ctx}, value, pos) {
		return ErrNotFound
	}
	return e.commit(Mutation{Op: OpReorderName, At: at, Base: base, Ctx: ctx, Str: value, Pos: pos})
}

// SetNameFlags adds and clears flag bits on the live name row via replace.
func (e *Engine) SetNameFlags(base core.ID, ctx core.Ctx, value string, add, clear core.Flags) (core.Flags, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	flags, err := e.setNameFlags(base, ctx, value, add, clear, at)
	if err != nil {
		return 0, err
	}
	return flags, e.commit(Mutation{Op: OpSetNameFlags, At: at, Base: base, Ctx: ctx, Str: value, Flags: add, Flags2: clear})
}

func (e *Engine) setNameFlags(base core.ID, ctx core.Ctx, value string, add, clear core.Flags, at time.Time) (core.Flags, error) {
	group := ownerKey{Base: base, Ctx: ctx}
	ref, ok := e.names.Elem(group, value)
	if !ok {
		return 0, ErrNotFound
	}
	flags := applyFlags(e.names.Get(ref).Flags, add, clear)
	pos, _ := e.names.PosOf(ref)
	_ = e.names.Tombstone(ref, at)
	if _, err := e.names.Insert(group, value, nameRow{Flags: flags}, pos); err != nil {
		return 0, err
	}
	return flags, nil
}
