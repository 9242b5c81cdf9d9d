package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/model"
)

// captureJournal records committed mutations in commit order.
type captureJournal struct {
	mutations []Mutation
}

func (c *captureJournal) Append(m Mutation) error {
	c.mutations = append(c.mutations, m)
	return nil
}

// populate runs one mutation of every kind that leaves visible state behind.
func populate(t *testing.T, e *Engine) {
	t.Helper()

	a, err := e.CreateEntity(1, 0b01)
	require.NoError(t, err)
	b, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	gone, err := e.CreateEntity(1, 0)
	require.NoError(t, err)

	_, err = e.SetEntityFlags(a.ID, 1, 0b10, 0)
	require.NoError(t, err)

	_, err = e.SetProperty(a.ID, 1, model.NumValue(10), 0)
	require.NoError(t, err)
	_, err = e.IncrementProperty(a.ID, 1, 5, nil)
	require.NoError(t, err)
	_, err = e.SetProperty(a.ID, 2, model.BytesValue([]byte("blob")), 0b01)
	require.NoError(t, err)
	_, err = e.SetPropertyFlags(a.ID, 2, 0b10, 0b01)
	require.NoError(t, err)

	_, err = e.SetAlias(a.ID, 1, "alice", core.AppendPos, 0)
	require.NoError(t, err)
	_, err = e.SetAlias(a.ID, 1, "allyce", core.AppendPos, 0)
	require.NoError(t, err)
	require.NoError(t, e.ReorderAlias(a.ID, 1, "allyce", 0))
	_, err = e.SetAliasFlags(a.ID, 1, "alice", 0b01, 0)
	require.NoError(t, err)

	require.NoError(t, e.CreateRelationship(a.ID, b.ID, 1, core.AppendPos, core.AppendPos, 0))
	require.NoError(t, e.CreateRelationship(b.ID, a.ID, 1, core.AppendPos, core.AppendPos, 0))
	require.NoError(t, e.ReorderRelationship(a.ID, b.ID, 1, true, 0))
	_, err = e.SetRelationshipFlags(a.ID, b.ID, 1, 0b01, 0)
	require.NoError(t, err)

	root, err := e.CreateNode(a.ID, 1, model.NumValue(1), core.AppendPos, 0)
	require.NoError(t, err)
	child, err := e.CreateNode(root.ID, 1, model.NumValue(2), core.AppendPos, 0)
	require.NoError(t, err)
	require.NoError(t, e.UpdateNode(child.ID, 1, model.NumValue(3), nil))
	_, err = e.IncrementNode(child.ID, 1, 4, nil)
	require.NoError(t, err)
	require.NoError(t, e.MoveNode(child.ID, 1, root.ID, a.ID, core.AppendPos))
	require.NoError(t, e.ReorderEdge(a.ID, 1, child.ID, 0))
	_, err = e.SetNodeFlags(child.ID, 1, 0b01, 0)
	require.NoError(t, err)

	require.NoError(t, e.CreateName(a.ID, 1, "Alice", core.AppendPos, 0))
	require.NoError(t, e.CreateName(a.ID, 1, "Bob", core.AppendPos, 0))
	require.NoError(t, e.ReorderName(a.ID, 1, "Bob", 0))
	require.NoError(t, e.RemoveName(a.ID, 1, "Bob"))
	_, err = e.SetNameFlags(a.ID, 1, "Alice", 0b01, 0)
	require.NoError(t, err)

	require.NoError(t, e.RemoveEntityEstate(gone.ID, 1))
}

// assertSameState compares the observable state of two engines.
func assertSameState(t *testing.T, want, got *Engine) {
	t.Helper()

	ws, gs := want.Dump(), got.Dump()
	assert.Equal(t, ws.NextEntityID, gs.NextEntityID)
	assert.Equal(t, ws.NextNodeID, gs.NextNodeID)
	assert.Equal(t, ws.Entities, gs.Entities)
	assert.Equal(t, ws.Props, gs.Props)
	assert.Equal(t, ws.Aliases, gs.Aliases)
	assert.Equal(t, ws.AliasHash, gs.AliasHash)
	assert.ElementsMatch(t, ws.Prefixes, gs.Prefixes)
	assert.ElementsMatch(t, ws.Phonetics, gs.Phonetics)
	assert.Equal(t, ws.Rels, gs.Rels)
	assert.Equal(t, ws.Nodes, gs.Nodes)
	assert.Equal(t, ws.Edges, gs.Edges)
	assert.Equal(t, ws.Names, gs.Names)
}

func TestReplayRebuildsState(t *testing.T) {
	capture := &captureJournal{}
	// A fixed clock keeps tombstone timestamps comparable across engines.
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	src, err := New(Config{Clock: clock, Journal: capture})
	require.NoError(t, err)
	populate(t, src)
	require.NotEmpty(t, capture.mutations)

	dst, err := New(Config{})
	require.NoError(t, err)
	for _, m := range capture.mutations {
		require.NoError(t, dst.Apply(m))
	}

	assertSameState(t, src, dst)

	// Replayed allocators continue past the highest journaled id.
	ent, err := dst.CreateEntity(1, 0)
	require.NoError(t, err)
	assert.Equal(t, src.Dump().NextEntityID, ent.ID)
}

func TestDumpRestore(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	src, err := New(Config{Clock: clock})
	require.NoError(t, err)
	populate(t, src)

	dst, err := New(Config{})
	require.NoError(t, err)
	dst.Restore(src.Dump())

	assertSameState(t, src, dst)

	// The restored engine stays queryable and issues fresh ids.
	hit, ok := dst.LookupAlias("alice", 1)
	require.True(t, ok)
	assert.Equal(t, core.ID(1), hit.BaseID)

	ent, err := dst.CreateEntity(1, 0)
	require.NoError(t, err)
	assert.Equal(t, src.Dump().NextEntityID, ent.ID)
}
