package engine

import (
	"fmt"
	"iter"
	"time"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/model"
)

// SetProperty writes the single scalar slot for (base, ctx), replacing any
// current live row. It reports whether the slot was newly created.
func (e *Engine) SetProperty(base core.ID, ctx core.Ctx, value model.Value, flags core.Flags) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	created, err := e.setProperty(base, ctx, value, flags, at)
	if err != nil {
		return false, err
	}
	return created, e.commit(Mutation{Op: OpSetProperty, At: at, Base: base, Ctx: ctx, Value: &value, Flags: flags})
}

func (e *Engine) setProperty(base core.ID, ctx core.Ctx, value model.Value, flags core.Flags, at time.Time) (bool, error) {
	if err := value.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if !e.baseExists(base) {
		return false, fmt.Errorf("%w: %d", ErrNoObject, base)
	}

	key := ownerKey{Base: base, Ctx: ctx}
	row := propertyRow{Flags: flags, Value: value}
	if ref, ok := e.props.QueryLive(key); ok {
		_, err := e.props.Replace(ref, row, at)
		return false, err
	}
	_, err := e.props.InsertLive(key, row)
	return true, err
}

// GetProperty returns the live property row for (base, ctx).
func (e *Engine) GetProperty(base core.ID, ctx core.Ctx) (model.Property, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ref, ok := e.props.QueryLive(ownerKey{Base: base, Ctx: ctx})
	if !ok {
		return model.Property{}, false
	}
	row := e.props.Get(ref)
	return model.Property{BaseID: base, Ctx: ctx, Flags: row.Flags, Value: row.Value}, true
}

// ListProperties returns the live property rows of base for the given ctxs,
// in argument order. Missing slots yield nil entries.
func (e *Engine) ListProperties(base core.ID, ctxs ...core.Ctx) []*model.Property {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*model.Property, len(ctxs))
	for i, ctx := range ctxs {
		if ref, ok := e.props.QueryLive(ownerKey{Base: base, Ctx: ctx}); ok {
			row := e.props.Get(ref)
			out[i] = &model.Property{BaseID: base, Ctx: ctx, Flags: row.Flags, Value: row.Value}
		}
	}
	return out
}

// PropertyHistory yields every version of the (base, ctx) slot in creation
// order.
func (e *Engine) PropertyHistory(base core.ID, ctx core.Ctx) iter.Seq[model.Version[model.Property]] {
	return func(yield func(model.Version[model.Property]) bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		for ref := range e.props.QueryHistory(ownerKey{Base: base, Ctx: ctx}) {
			row := e.props.Get(ref)
			v := model.Version[model.Property]{
				Row:     model.Property{BaseID: base, Ctx: ctx, Flags: row.Flags, Value: row.Value},
				Removed: e.props.RemovedAt(ref),
			}
			if !yield(v) {
				return
			}
		}
	}
}

// IncrementProperty adjusts a numeric property by delta inside one unit of
// work. If limit is non-nil the result saturates at it (an upper bound for
// positive deltas, a lower bound for negative ones). The slot must exist and
// hold a numeric value.
func (e *Engine) IncrementProperty(base core.ID, ctx core.Ctx, delta int64, limit *int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	num, err := e.incrementProperty(base, ctx, delta, limit, at)
	if err != nil {
		return 0, err
	}
	m := Mutation{Op: OpIncrementProperty, At: at, Base: base, Ctx: ctx, Num: delta}
	if limit != nil {
		l := *limit
		m.Limit = &l
	}
	return num, e.commit(m)
}

func (e *Engine) incrementProperty(base core.ID, ctx core.Ctx, delta int64, limit *int64, at time.Time) (int64, error) {
	ref, ok := e.props.QueryLive(ownerKey{Base: base, Ctx: ctx})
	if !ok {
		return 0, ErrNotFound
	}
	row := e.props.Get(ref)
	if row.Value.Kind != model.KindNum {
		return 0, fmt.Errorf("%w: increment on non-numeric property", ErrInvalidValue)
	}
	next := row.Value.Num + delta
	if limit != nil {
		if delta >= 0 && next > *limit {
			next = *limit
		}
		if delta < 0 && next < *limit {
			next = *limit
		}
	}
	row.Value = model.NumValue(next)
	if _, err := e.props.Replace(ref, row, at); err != nil {
		return 0, err
	}
	return next, nil
}

// RemoveProperty tombstones the live row for (base, ctx) with no
// replacement.
func (e *Engine) RemoveProperty(base core.ID, ctx core.Ctx) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	ref, ok := e.props.QueryLive(ownerKey{Base: base, Ctx: ctx})
	if !ok {
		return ErrNotFound
	}
	if err := e.props.Tombstone(ref, at); err != nil {
		return err
	}
	return e.commit(Mutation{Op: OpRemoveProperty, At: at, Base: base, Ctx: ctx})
}

// SetPropertyFlags adds and clears flag bits on the live property row via
// replace, returning the merged flags.
func (e *Engine) SetPropertyFlags(base core.ID, ctx core.Ctx, add, clear core.Flags) (core.Flags, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	ref, ok := e.props.QueryLive(ownerKey{Base: base, Ctx: ctx})
	if !ok {
		return 0, ErrNotFound
	}
	row := e.props.Get(ref)
	row.Flags = applyFlags(row.Flags, add, clear)
	if _, err := e.props.Replace(ref, row, at); err != nil {
		return 0, err
	}
	return row.Flags, e.commit(Mutation{Op: OpSetPropertyFlags, At: at, Base: base, Ctx: ctx, Flags: add, Flags2: clear})
}
