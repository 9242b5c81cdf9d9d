package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/model"
	"github.com/hupe1980/strata/vtable"
)

func childIDs(edges []model.TreeEdge) []core.ID {
	out := make([]core.ID, len(edges))
	for i, e := range edges {
		out[i] = e.ChildID
	}
	return out
}

func TestCreateNode(t *testing.T) {
	e := newTestEngine(t)
	ent, err := e.CreateEntity(1, 0)
	require.NoError(t, err)

	_, err = e.CreateNode(999, 1, model.NumValue(1), core.AppendPos, 0)
	assert.ErrorIs(t, err, ErrNoObject)
	_, err = e.CreateNode(ent.ID, 1, model.Value{}, core.AppendPos, 0)
	assert.ErrorIs(t, err, ErrInvalidValue)

	// Node ids come from their own sequence, independent of entity ids.
	n1, err := e.CreateNode(ent.ID, 1, model.NumValue(10), core.AppendPos, 0)
	require.NoError(t, err)
	assert.Equal(t, core.ID(1), n1.ID)

	n2, err := e.CreateNode(n1.ID, 1, model.BytesValue([]byte("leaf")), core.AppendPos, 0)
	require.NoError(t, err)
	assert.Equal(t, core.ID(2), n2.ID)

	got, ok := e.GetNode(n1.ID, 1)
	require.True(t, ok)
	assert.Equal(t, int64(10), got.Value.Num)

	_, ok = e.GetNode(n1.ID, 2)
	assert.False(t, ok)

	assert.Equal(t, []core.ID{n1.ID}, childIDs(e.ListChildren(ent.ID, 1, 0, 0)))
	assert.Equal(t, []core.ID{n2.ID}, childIDs(e.ListChildren(n1.ID, 1, 0, 0)))
}

func TestUpdateNode(t *testing.T) {
	e := newTestEngine(t)
	ent, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	n, err := e.CreateNode(ent.ID, 1, model.NumValue(1), core.AppendPos, 0)
	require.NoError(t, err)

	// Unconditional replace.
	require.NoError(t, e.UpdateNode(n.ID, 1, model.NumValue(2), nil))

	// Conditional replace fails when the expected value is stale.
	stale := model.NumValue(1)
	err = e.UpdateNode(n.ID, 1, model.NumValue(3), &stale)
	assert.ErrorIs(t, err, vtable.ErrConstraintViolation)

	current := model.NumValue(2)
	require.NoError(t, e.UpdateNode(n.ID, 1, model.NumValue(3), &current))

	got, ok := e.GetNode(n.ID, 1)
	require.True(t, ok)
	assert.Equal(t, int64(3), got.Value.Num)

	assert.ErrorIs(t, e.UpdateNode(999, 1, model.NumValue(1), nil), ErrNotFound)
	assert.ErrorIs(t, e.UpdateNode(n.ID, 2, model.NumValue(1), nil), ErrNotFound)

	var nums []int64
	for v := range e.NodeHistory(n.ID) {
		nums = append(nums, v.Row.Value.Num)
	}
	assert.Equal(t, []int64{1, 2, 3}, nums)
}

func TestIncrementNode(t *testing.T) {
	e := newTestEngine(t)
	ent, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	n, err := e.CreateNode(ent.ID, 1, model.NumValue(10), core.AppendPos, 0)
	require.NoError(t, err)

	got, err := e.IncrementNode(n.ID, 1, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(15), got)

	limit := int64(20)
	got, err = e.IncrementNode(n.ID, 1, 100, &limit)
	require.NoError(t, err)
	assert.Equal(t, int64(20), got)

	floor := int64(0)
	got, err = e.IncrementNode(n.ID, 1, -50, &floor)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	b, err := e.CreateNode(ent.ID, 1, model.BytesValue([]byte("x")), core.AppendPos, 0)
	require.NoError(t, err)
	_, err = e.IncrementNode(b.ID, 1, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = e.IncrementNode(999, 1, 1, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetNodeFlags(t *testing.T) {
	e := newTestEngine(t)
	ent, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	n, err := e.CreateNode(ent.ID, 1, model.NumValue(1), core.AppendPos, 0b01)
	require.NoError(t, err)

	flags, err := e.SetNodeFlags(n.ID, 1, 0b10, 0b01)
	require.NoError(t, err)
	assert.Equal(t, core.Flags(0b10), flags)

	got, ok := e.GetNode(n.ID, 1)
	require.True(t, ok)
	assert.Equal(t, core.Flags(0b10), got.Flags)

	// The flag change is a replace, so it shows up as a new version.
	var hist []core.Flags
	for v := range e.NodeHistory(n.ID) {
		hist = append(hist, v.Row.Flags)
	}
	assert.Equal(t, []core.Flags{0b01, 0b10}, hist)

	_, err = e.SetNodeFlags(999, 1, 1, 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.SetNodeFlags(n.ID, 2, 1, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMoveAndReorder(t *testing.T) {
	e := newTestEngine(t)
	ent, err := e.CreateEntity(1, 0)
	require.NoError(t, err)

	p1, err := e.CreateNode(ent.ID, 1, model.NumValue(1), core.AppendPos, 0)
	require.NoError(t, err)
	p2, err := e.CreateNode(ent.ID, 1, model.NumValue(2), core.AppendPos, 0)
	require.NoError(t, err)

	c1, err := e.CreateNode(p1.ID, 1, model.NumValue(10), core.AppendPos, 0)
	require.NoError(t, err)
	c2, err := e.CreateNode(p1.ID, 1, model.NumValue(11), core.AppendPos, 0)
	require.NoError(t, err)

	require.NoError(t, e.ReorderEdge(p1.ID, 1, c2.ID, 0))
	assert.Equal(t, []core.ID{c2.ID, c1.ID}, childIDs(e.ListChildren(p1.ID, 1, 0, 0)))

	require.NoError(t, e.MoveNode(c1.ID, 1, p1.ID, p2.ID, 0))
	assert.Equal(t, []core.ID{c2.ID}, childIDs(e.ListChildren(p1.ID, 1, 0, 0)))
	assert.Equal(t, []core.ID{c1.ID}, childIDs(e.ListChildren(p2.ID, 1, 0, 0)))

	assert.ErrorIs(t, e.MoveNode(c1.ID, 1, p1.ID, p2.ID, 0), ErrNotFound)
	assert.ErrorIs(t, e.MoveNode(c2.ID, 1, p1.ID, 999, 0), ErrNoObject)
	assert.ErrorIs(t, e.ReorderEdge(p1.ID, 1, 999, 0), ErrNotFound)
}

func TestLinkNode(t *testing.T) {
	e := newTestEngine(t)
	ent, err := e.CreateEntity(1, 0)
	require.NoError(t, err)

	p1, err := e.CreateNode(ent.ID, 1, model.NumValue(1), core.AppendPos, 0)
	require.NoError(t, err)
	p2, err := e.CreateNode(ent.ID, 1, model.NumValue(2), core.AppendPos, 0)
	require.NoError(t, err)
	child, err := e.CreateNode(p1.ID, 1, model.NumValue(3), core.AppendPos, 0)
	require.NoError(t, err)

	// A node may hold edges from several parents at once.
	require.NoError(t, e.LinkNode(p2.ID, child.ID, 1, core.AppendPos))
	assert.Equal(t, []core.ID{child.ID}, childIDs(e.ListChildren(p1.ID, 1, 0, 0)))
	assert.Equal(t, []core.ID{child.ID}, childIDs(e.ListChildren(p2.ID, 1, 0, 0)))

	assert.ErrorIs(t, e.LinkNode(999, child.ID, 1, core.AppendPos), ErrNoObject)
	assert.ErrorIs(t, e.LinkNode(p1.ID, 999, 1, core.AppendPos), ErrNoObject)
}

func TestRemoveNodeDuplicateEdges(t *testing.T) {
	e := newTestEngine(t)
	ent, err := e.CreateEntity(1, 0)
	require.NoError(t, err)

	n, err := e.CreateNode(ent.ID, 1, model.NumValue(1), core.AppendPos, 0)
	require.NoError(t, err)
	require.NoError(t, e.LinkNode(ent.ID, n.ID, 1, core.AppendPos))
	require.Equal(t, []core.ID{n.ID, n.ID}, childIDs(e.ListChildren(ent.ID, 1, 0, 0)))

	// Removal retracts every copy of the edge, not just the newest.
	require.NoError(t, e.RemoveNode(n.ID, 1, ent.ID))

	_, ok := e.GetNode(n.ID, 1)
	assert.False(t, ok)
	assert.Empty(t, e.ListChildren(ent.ID, 1, 0, 0))
}

func TestRemoveNodeSubtree(t *testing.T) {
	e := newTestEngine(t)
	ent, err := e.CreateEntity(1, 0)
	require.NoError(t, err)

	root, err := e.CreateNode(ent.ID, 1, model.NumValue(1), core.AppendPos, 0)
	require.NoError(t, err)
	mid, err := e.CreateNode(root.ID, 1, model.NumValue(2), core.AppendPos, 0)
	require.NoError(t, err)
	leaf, err := e.CreateNode(mid.ID, 1, model.NumValue(3), core.AppendPos, 0)
	require.NoError(t, err)

	// Node-owned rows join the estate.
	_, err = e.SetProperty(mid.ID, 7, model.NumValue(42), 0)
	require.NoError(t, err)

	// An extra edge from elsewhere does not protect the subtree: removal is
	// unconditional.
	other, err := e.CreateNode(ent.ID, 1, model.NumValue(4), core.AppendPos, 0)
	require.NoError(t, err)
	require.NoError(t, e.LinkNode(other.ID, mid.ID, 1, core.AppendPos))

	require.NoError(t, e.RemoveNode(root.ID, 1, ent.ID))

	for _, id := range []core.ID{root.ID, mid.ID, leaf.ID} {
		_, ok := e.GetNode(id, 1)
		assert.False(t, ok, "node %d should be gone", id)
	}
	_, ok := e.GetProperty(mid.ID, 7)
	assert.False(t, ok)
	assert.Equal(t, []core.ID{other.ID}, childIDs(e.ListChildren(ent.ID, 1, 0, 0)))

	// The untraversed edge dangles; it points at a tombstoned node.
	assert.Equal(t, []core.ID{mid.ID}, childIDs(e.ListChildren(other.ID, 1, 0, 0)))
	_, ok = e.GetNode(mid.ID, 1)
	assert.False(t, ok)

	assert.ErrorIs(t, e.RemoveNode(root.ID, 1, ent.ID), ErrNotFound)
}
