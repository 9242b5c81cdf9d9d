package engine

import (
	"fmt"
	"iter"
	"time"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/model"
)

// SetAlias stores an ordered string label on base inside one compound unit:
// the alias row, its hash-lookup anchor and the prefix and phonetic index
// rows all become visible together or not at all.
//
// The hash lookup enforces namespace-wide value uniqueness across owners. If
// the value is already claimed by another owner the whole unit fails with
// *AliasCollisionError; if base itself already holds it, SetAlias is a no-op
// returning false.
func (e *Engine) SetAlias(base core.ID, ctx core.Ctx, value string, pos core.Pos, flags core.Flags) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	set, err := e.setAlias(base, ctx, value, pos, flags, at)
	if err != nil || !set {
		return false, err
	}
	return true, e.commit(Mutation{Op: OpSetAlias, At: at, Base: base, Ctx: ctx, Str: value, Pos: pos, Flags: flags})
}

func (e *Engine) setAlias(base core.ID, ctx core.Ctx, value string, pos core.Pos, flags core.Flags, at time.Time) (bool, error) {
	if !e.baseExists(base) {
		return false, fmt.Errorf("%w: %d", ErrNoObject, base)
	}

	// The hash row is the uniqueness anchor; claim it first so a collision
	// aborts the unit before any index row exists.
	key := aliasDigest(value, ctx)
	if ref, ok := e.aliasHash.QueryLive(key); ok {
		owner := e.aliasHash.Get(ref).Base
		if owner == base {
			return false, nil
		}
		return false, &AliasCollisionError{Value: value, Ctx: ctx, Owner: owner}
	}
	if _, err := e.aliasHash.InsertLive(key, lookupRow{Base: base, Flags: flags}); err != nil {
		return false, err
	}

	if _, err := e.aliases.Insert(ownerKey{Base: base, Ctx: ctx}, value, aliasRow{Flags: flags}, pos); err != nil {
		// Roll the anchor back; the unit must leave nothing behind.
		if ref, ok := e.aliasHash.QueryLive(key); ok {
			_ = e.aliasHash.Tombstone(ref, at)
		}
		return false, err
	}

	// Secondary search indexes carry no uniqueness contract and never
	// reject the write.
	e.prefixes.insert(ctx, value, base, flags)
	e.phonetics.insert(ctx, e.encoder.Encode(value), value, base, flags)
	return true, nil
}

// LookupAlias resolves an alias value to its owner through the hash index.
func (e *Engine) LookupAlias(value string, ctx core.Ctx) (model.LookupHit, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ref, ok := e.aliasHash.QueryLive(aliasDigest(value, ctx))
	if !ok {
		return model.LookupHit{}, false
	}
	row := e.aliasHash.Get(ref)
	return model.LookupHit{BaseID: row.Base, Ctx: ctx, Flags: row.Flags, Value: value}, true
}

// ListAliases returns up to limit live aliases of (base, ctx) starting at
// fromPos, in list order. limit <= 0 means no limit.
func (e *Engine) ListAliases(base core.ID, ctx core.Ctx, fromPos core.Pos, limit int) []model.Alias {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if fromPos < 0 {
		fromPos = 0
	}
	group := ownerKey{Base: base, Ctx: ctx}
	refs := e.aliases.Scan(group, fromPos, limit)
	out := make([]model.Alias, 0, len(refs))
	for i, ref := range refs {
		row := e.aliases.Get(ref)
		out = append(out, model.Alias{
			BaseID: base,
			Ctx:    ctx,
			Flags:  row.Flags,
			Pos:    fromPos + core.Pos(i),
			Value:  e.aliases.ElemOf(ref),
		})
	}
	return out
}

// AliasHistory yields every alias row ever written for (base, ctx) in
// creation order, live and tombstoned.
func (e *Engine) AliasHistory(base core.ID, ctx core.Ctx) iter.Seq[model.Version[model.Alias]] {
	return func(yield func(model.Version[model.Alias]) bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		for ref := range e.aliases.History(ownerKey{Base: base, Ctx: ctx}) {
			row := e.aliases.Get(ref)
			v := model.Version[model.Alias]{
				Row: model.Alias{
					BaseID: base,
					Ctx:    ctx,
					Flags:  row.Flags,
					Pos:    e.aliases.CreatedPos(ref),
					Value:  e.aliases.ElemOf(ref),
				},
				Removed: e.aliases.RemovedAt(ref),
			}
			if !yield(v) {
				return
			}
		}
	}
}

// RemoveAlias tombstones the alias row and all three index rows in the same
// unit of work; none of them stays visible on its own.
func (e *Engine) RemoveAlias(base core.ID, ctx core.Ctx, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	if _, ok := e.aliases.Remove(ownerKey{Base: base, Ctx: ctx}, value, at); !ok {
		return ErrNotFound
	}
	e.dropAliasIndexes(base, ctx, value, at)
	return e.commit(Mutation{Op: OpRemoveAlias, At: at, Base: base, Ctx: ctx, Str: value})
}

// dropAliasIndexes tombstones the hash, prefix and phonetic rows of one
// alias. Callers hold the write lock and have removed the alias row already.
func (e *Engine) dropAliasIndexes(base core.ID, ctx core.Ctx, value string, at time.Time) {
	if ref, ok := e.aliasHash.QueryLive(aliasDigest(value, ctx)); ok && e.aliasHash.Get(ref).Base == base {
		_ = e.aliasHash.Tombstone(ref, at)
	}
	e.prefixes.remove(ctx, value, base, at)
	e.phonetics.remove(ctx, e.encoder.Encode(value), value, base, at)
}

// ReorderAlias moves the alias to pos within its owner's list.
func (e *Engine) ReorderAlias(base core.ID, ctx core.Ctx, value string, pos core.Pos) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	if !e.aliases.Reorder(ownerKey{Base: base, Ctx: ctx}, value, pos) {
		return ErrNotFound
	}
	return e.commit(Mutation{Op: OpReorderAlias, At: at, Base: base, Ctx: ctx, Str: value, Pos: pos})
}

// SetAliasFlags adds and clears flag bits on the alias row and mirrors the
// merged flags onto all three index rows in the same unit of work.
func (e *Engine) SetAliasFlags(base core.ID, ctx core.Ctx, value string, add, clear core.Flags) (core.Flags, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	flags, err := e.setAliasFlags(base, ctx, value, add, clear, at)
	if err != nil {
		return 0, err
	}
	return flags, e.commit(Mutation{Op: OpSetAliasFlags, At: at, Base: base, Ctx: ctx, Str: value, Flags: add, Flags2: clear})
}

func (e *Engine) setAliasFlags(base core.ID, ctx core.Ctx, value string, add, clear core.Flags, at time.Time) (core.Flags, error) {
	group := ownerKey{Base: base, Ctx: ctx}
	ref, ok := e.aliases.Elem(group, value)
	if !ok {
		return 0, ErrNotFound
	}
	flags := applyFlags(e.aliases.Get(ref).Flags, add, clear)

	// Replace the alias row at its current position.
	pos, _ := e.aliases.PosOf(ref)
	_ = e.aliases.Tombstone(ref, at)
	if _, err := e.aliases.Insert(group, value, aliasRow{Flags: flags}, pos); err != nil {
		return 0, err
	}

	key := aliasDigest(value, ctx)
	if href, ok := e.aliasHash.QueryLive(key); ok && e.aliasHash.Get(href).Base == base {
		if _, err := e.aliasHash.Replace(href, lookupRow{Base: base, Flags: flags}, at); err != nil {
			return 0, err
		}
	}
	e.prefixes.setFlags(ctx, value, base, flags)
	e.phonetics.setFlags(ctx, e.encoder.Encode(value), value, base, flags)
	return flags, nil
}

// SearchPrefix returns live aliases in ctx whose value starts with prefix,
// ordered by value, beginning strictly after startAfter (pass "" for the
// first page and the last returned value to continue).
func (e *Engine) SearchPrefix(prefix string, ctx core.Ctx, limit int, startAfter string) []model.LookupHit {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prefixes.scan(ctx, prefix, startAfter, limit)
}

// SearchPhonetic returns live aliases in ctx whose phonetic code matches the
// code of value. Hits carry the raw stored value so callers can re-rank the
// coarse bucket by literal similarity.
func (e *Engine) SearchPhonetic(value string, ctx core.Ctx, limit int) []model.LookupHit {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phonetics.scan(ctx, e.encoder.Encode(value), limit)
}
