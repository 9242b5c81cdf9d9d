package engine

import (
	"fmt"
	"iter"
	"time"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/model"
	"github.com/hupe1980/strata/vtable"
)

// CreateNode mints a tree node id from the node sequence (a separate
// identity space from entities), inserts the node row and links it under
// parent at pos, all in one unit of work. parent may be an entity or
// another tree node.
func (e *Engine) CreateNode(parent core.ID, ctx core.Ctx, value model.Value, pos core.Pos, flags core.Flags) (model.TreeNode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	node, err := e.createNode(parent, ctx, value, pos, flags)
	if err != nil {
		return model.TreeNode{}, err
	}
	return node, e.commit(Mutation{Op: OpCreateNode, At: at, Base: parent, Rel: node.ID, Ctx: ctx, Value: &value, Pos: pos, Flags: flags})
}

func (e *Engine) createNode(parent core.ID, ctx core.Ctx, value model.Value, pos core.Pos, flags core.Flags) (model.TreeNode, error) {
	if err := value.Validate(); err != nil {
		return model.TreeNode{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if !e.baseExists(parent) {
		return model.TreeNode{}, fmt.Errorf("%w: %d", ErrNoObject, parent)
	}

	id, err := e.nodeIDs.Next()
	if err != nil {
		return model.TreeNode{}, err
	}
	if _, err := e.nodes.InsertLive(id, nodeRow{Ctx: ctx, Flags: flags, Value: value}); err != nil {
		return model.TreeNode{}, fmt.Errorf("node %d: %w", id, err)
	}
	if _, err := e.edges.Insert(ownerKey{Base: parent, Ctx: ctx}, id, edgeRow{}, pos); err != nil {
		return model.TreeNode{}, err
	}
	return model.TreeNode{ID: id, Ctx: ctx, Flags: flags, Value: value}, nil
}

// LinkNode inserts an additional live edge parent->child at pos. The edge
// table declares no uniqueness, so a child may legally hold edges from more
// than one parent; single-parent discipline is the caller's to keep (via
// MoveNode).
func (e *Engine) LinkNode(parent, child core.ID, ctx core.Ctx, pos core.Pos) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	if err := e.linkNode(parent, child, ctx, pos); err != nil {
		return err
	}
	return e.commit(Mutation{Op: OpLinkNode, At: at, Base: parent, Rel: child, Ctx: ctx, Pos: pos})
}

func (e *Engine) linkNode(parent, child core.ID, ctx core.Ctx, pos core.Pos) error {
	if !e.baseExists(parent) {
		return fmt.Errorf("%w: %d", ErrNoObject, parent)
	}
	if _, ok := e.nodes.QueryLive(child); !ok {
		return fmt.Errorf("%w: %d", ErrNoObject, child)
	}
	_, err := e.edges.Insert(ownerKey{Base: parent, Ctx: ctx}, child, edgeRow{}, pos)
	return err
}

// GetNode returns the live node row for (id, ctx).
func (e *Engine) GetNode(id core.ID, ctx core.Ctx) (model.TreeNode, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ref, ok := e.nodes.QueryLive(id)
	if !ok {
		return model.TreeNode{}, false
	}
	row := e.nodes.Get(ref)
	if row.Ctx != ctx {
		return model.TreeNode{}, false
	}
	return model.TreeNode{ID: id, Ctx: ctx, Flags: row.Flags, Value: row.Value}, true
}

// NodeHistory yields every version of the node slot in creation order.
func (e *Engine) NodeHistory(id core.ID) iter.Seq[model.Version[model.TreeNode]] {
	return func(yield func(model.Version[model.TreeNode]) bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		for ref := range e.nodes.QueryHistory(id) {
			row := e.nodes.Get(ref)
			v := model.Version[model.TreeNode]{
				Row:     model.TreeNode{ID: id, Ctx: row.Ctx, Flags: row.Flags, Value: row.Value},
				Removed: e.nodes.RemovedAt(ref),
			}
			if !yield(v) {
				return
			}
		}
	}
}

// UpdateNode replaces the node's value. A non-nil oldValue makes the write
// conditional: it fails with the constraint error if the current value
// differs, feeding the usual read-modify-write retry loop.
func (e *Engine) UpdateNode(id core.ID, ctx core.Ctx, value model.Value, oldValue *model.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	if err := e.updateNode(id, ctx, value, oldValue, at); err != nil {
		return err
	}
	m := Mutation{Op: OpUpdateNode, At: at, Rel: id, Ctx: ctx, Value: &value}
	if oldValue != nil {
		ov := *oldValue
		m.OldValue = &ov
	}
	return e.commit(m)
}

func (e *Engine) updateNode(id core.ID, ctx core.Ctx, value model.Value, oldValue *model.Value, at time.Time) error {
	if err := value.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	ref, ok := e.nodes.QueryLive(id)
	if !ok {
		return ErrNotFound
	}
	row := e.nodes.Get(ref)
	if row.Ctx != ctx {
		return ErrNotFound
	}
	if oldValue != nil {
		if row.Value.Kind != oldValue.Kind || row.Value.Num != oldValue.Num || string(row.Value.Bytes) != string(oldValue.Bytes) {
			return fmt.Errorf("node %d: %w", id, vtable.ErrConstraintViolation)
		}
	}
	row.Value = value
	_, err := e.nodes.Replace(ref, row, at)
	return err
}

// IncrementNode adjusts a numeric node value by delta, optionally saturating
// at limit, in one unit of work.
func (e *Engine) IncrementNode(id core.ID, ctx core.Ctx, delta int64, limit *int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	num, err := e.incrementNode(id, ctx, delta, limit, at)
	if err != nil {
		return 0, err
	}
	m := Mutation{Op: OpIncrementNode, At: at, Rel: id, Ctx: ctx, Num: delta}
	if limit != nil {
		l := *limit
		m.Limit = &l
	}
	return num, e.commit(m)
}

func (e *Engine) incrementNode(id core.ID, ctx core.Ctx, delta int64, limit *int64, at time.Time) (int64, error) {
	ref, ok := e.nodes.QueryLive(id)
	if !ok {
		return 0, ErrNotFound
	}
	row := e.nodes.Get(ref)
	if row.Ctx != ctx {
		return 0, ErrNotFound
	}
	if row.Value.Kind != model.KindNum {
		return 0, fmt.Errorf("%w: increment on non-numeric node", ErrInvalidValue)
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
	if _, err := e.nodes.Replace(ref, row, at); err != nil {
		return 0, err
	}
	return next, nil
}

// SetNodeFlags adds and clears flag bits on the live node row via replace,
// returning the merged flags.
func (e *Engine) SetNodeFlags(id core.ID, ctx core.Ctx, add, clear core.Flags) (core.Flags, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	flags, err := e.setNodeFlags(id, ctx, add, clear, at)
	if err != nil {
		return 0, err
	}
	return flags, e.commit(Mutation{Op: OpSetNodeFlags, At: at, Rel: id, Ctx: ctx, Flags: add, Flags2: clear})
}

func (e *Engine) setNodeFlags(id core.ID, ctx core.Ctx, add, clear core.Flags, at time.Time) (core.Flags, error) {
	ref, ok := e.nodes.QueryLive(id)
	if !ok {
		return 0, ErrNotFound
	}
	row := e.nodes.Get(ref)
	if row.Ctx != ctx {
		return 0, ErrNotFound
	}
	row.Flags = applyFlags(row.Flags, add, clear)
	if _, err := e.nodes.Replace(ref, row, at); err != nil {
		return 0, err
	}
	return row.Flags, nil
}

// ListChildren returns up to limit live child edges of (parent, ctx)
// starting at fromPos, in list order.
func (e *Engine) ListChildren(parent core.ID, ctx core.Ctx, fromPos core.Pos, limit int) []model.TreeEdge {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if fromPos < 0 {
		fromPos = 0
	}
	refs := e.edges.Scan(ownerKey{Base: parent, Ctx: ctx}, fromPos, limit)
	out := make([]model.TreeEdge, 0, len(refs))
	for i, ref := range refs {
		out = append(out, model.TreeEdge{
			ParentID: parent,
			ChildID:  e.edges.ElemOf(ref),
			Ctx:      ctx,
			Pos:      fromPos + core.Pos(i),
		})
	}
	return out
}

// MoveNode retracts the edge oldParent->id and links id under newParent at
// pos, in one unit of work.
func (e *Engine) MoveNode(id core.ID, ctx core.Ctx, oldParent, newParent core.ID, pos core.Pos) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	if err := e.moveNode(id, ctx, oldParent, newParent, pos, at); err != nil {
		return err
	}
	return e.commit(Mutation{Op: OpMoveNode, At: at, Base: oldParent, Base2: newParent, Rel: id, Ctx: ctx, Pos: pos})
}

func (e *Engine) moveNode(id core.ID, ctx core.Ctx, oldParent, newParent core.ID, pos core.Pos, at time.Time) error {
	if !e.baseExists(newParent) {
		return fmt.Errorf("%w: %d", ErrNoObject, newParent)
	}
	if _, ok := e.edges.Remove(ownerKey{Base: oldParent, Ctx: ctx}, id, at); !ok {
		return ErrNotFound
	}
	_, err := e.edges.Insert(ownerKey{Base: newParent, Ctx: ctx}, id, edgeRow{}, pos)
	return err
}

// ReorderEdge moves the child to pos within (parent, ctx)'s ordering.
func (e *Engine) ReorderEdge(parent core.ID, ctx core.Ctx, child core.ID, pos core.Pos) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	if !e.edges.Reorder(ownerKey{Base: parent, Ctx: ctx}, child, pos) {
		return ErrNotFound
	}
	return e.commit(Mutation{Op: OpReorderEdge, At: at, Base: parent, Rel: child, Ctx: ctx, Pos: pos})
}

// RemoveNode tombstones the edge parent->id, the node row and, recursively,
// the node's whole subtree estate (child edges, child nodes and every
// dependent row they own) in one atomic unit.
func (e *Engine) RemoveNode(id core.ID, ctx core.Ctx, parent core.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at := e.clock()
	if err := e.removeNode(id, ctx, parent, at); err != nil {
		return err
	}
	return e.commit(Mutation{Op: OpRemoveNode, At: at, Base: parent, Rel: id, Ctx: ctx})
}

func (e *Engine) removeNode(id core.ID, ctx core.Ctx, parent core.ID, at time.Time) error {
	ref, ok := e.nodes.QueryLive(id)
	if !ok || e.nodes.Get(ref).Ctx != ctx {
		return ErrNotFound
	}
	// LinkNode may have duplicated the edge under the same parent; retract
	// every copy so the parent's child list holds no edge to the dead node.
	for {
		if _, ok := e.edges.Remove(ownerKey{Base: parent, Ctx: ctx}, id, at); !ok {
			break
		}
	}
	e.removeSubtree(id, ref, at)
	return nil
}

// removeSubtree tombstones the node, its estate and all child subtrees.
// Callers hold the write lock. A child reachable through several live edges
// is removed once; the other edges are tombstoned as they are encountered.
func (e *Engine) removeSubtree(id core.ID, ref vtable.Ref, at time.Time) {
	_ = e.nodes.Tombstone(ref, at)
	e.removeEstate(id, at)

	// Child edges may exist under any ctx.
	type childEdge struct {
		child core.ID
		ctx   core.Ctx
	}
	var pending []childEdge
	for eref := range e.edges.LiveRefs() {
		if group := e.edges.GroupOf(eref); group.Base == id {
			pending = append(pending, childEdge{child: e.edges.ElemOf(eref), ctx: group.Ctx})
		}
	}
	for _, ce := range pending {
		e.edges.Remove(ownerKey{Base: id, Ctx: ce.ctx}, ce.child, at)
		if cref, ok := e.nodes.QueryLive(ce.child); ok {
			e.removeSubtree(ce.child, cref, at)
		}
	}
}
