package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/model"
	"github.com/hupe1980/strata/vtable"
)

func TestCreateRelationship(t *testing.T) {
	e := newTestEngine(t)
	a, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	b, err := e.CreateEntity(1, 0)
	require.NoError(t, err)

	assert.ErrorIs(t, e.CreateRelationship(999, b.ID, 1, core.AppendPos, core.AppendPos, 0), ErrNoObject)
	assert.ErrorIs(t, e.CreateRelationship(a.ID, 999, 1, core.AppendPos, core.AppendPos, 0), ErrNoObject)

	require.NoError(t, e.CreateRelationship(a.ID, b.ID, 1, core.AppendPos, core.AppendPos, 0))

	// A live pair per (base, rel, ctx) is unique.
	assert.ErrorIs(t, e.CreateRelationship(a.ID, b.ID, 1, core.AppendPos, core.AppendPos, 0), vtable.ErrConstraintViolation)

	fwd, ok := e.GetRelationship(a.ID, b.ID, 1, true)
	require.True(t, ok)
	assert.Equal(t, a.ID, fwd.BaseID)
	assert.Equal(t, b.ID, fwd.RelID)
	assert.True(t, fwd.Forward)
	assert.Equal(t, core.Pos(0), fwd.Pos)

	// The backward row lives under b with its own position.
	bwd, ok := e.GetRelationship(a.ID, b.ID, 1, false)
	require.True(t, ok)
	assert.Equal(t, a.ID, bwd.BaseID)
	assert.Equal(t, b.ID, bwd.RelID)
	assert.False(t, bwd.Forward)

	_, ok = e.GetRelationship(a.ID, b.ID, 2, true)
	assert.False(t, ok)
}

func TestListRelationships(t *testing.T) {
	e := newTestEngine(t)
	a, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	b, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	c, err := e.CreateEntity(1, 0)
	require.NoError(t, err)

	require.NoError(t, e.CreateRelationship(a.ID, b.ID, 1, core.AppendPos, core.AppendPos, 0))
	require.NoError(t, e.CreateRelationship(a.ID, c.ID, 1, core.AppendPos, core.AppendPos, 0))
	require.NoError(t, e.CreateRelationship(c.ID, b.ID, 1, core.AppendPos, core.AppendPos, 0))

	out := e.ListRelationships(a.ID, 1, true, 0, 0)
	require.Len(t, out, 2)
	assert.Equal(t, b.ID, out[0].RelID)
	assert.Equal(t, c.ID, out[1].RelID)

	// b is the target of edges from both a and c.
	in := e.ListRelationships(b.ID, 1, false, 0, 0)
	require.Len(t, in, 2)
	assert.Equal(t, a.ID, in[0].BaseID)
	assert.Equal(t, c.ID, in[1].BaseID)
	assert.Equal(t, b.ID, in[0].RelID)

	page := e.ListRelationships(a.ID, 1, true, 1, 1)
	require.Len(t, page, 1)
	assert.Equal(t, c.ID, page[0].RelID)
	assert.Equal(t, core.Pos(1), page[0].Pos)
}

func TestReorderRelationship(t *testing.T) {
	e := newTestEngine(t)
	a, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	b, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	c, err := e.CreateEntity(1, 0)
	require.NoError(t, err)

	require.NoError(t, e.CreateRelationship(a.ID, b.ID, 1, core.AppendPos, core.AppendPos, 0))
	require.NoError(t, e.CreateRelationship(a.ID, c.ID, 1, core.AppendPos, core.AppendPos, 0))
	require.NoError(t, e.CreateRelationship(c.ID, b.ID, 1, core.AppendPos, core.AppendPos, 0))

	require.NoError(t, e.ReorderRelationship(a.ID, c.ID, 1, true, 0))

	out := e.ListRelationships(a.ID, 1, true, 0, 0)
	require.Len(t, out, 2)
	assert.Equal(t, c.ID, out[0].RelID)
	assert.Equal(t, b.ID, out[1].RelID)

	// Each direction is ordered independently; b's incoming list is untouched.
	in := e.ListRelationships(b.ID, 1, false, 0, 0)
	require.Len(t, in, 2)
	assert.Equal(t, a.ID, in[0].BaseID)

	assert.ErrorIs(t, e.ReorderRelationship(a.ID, 999, 1, true, 0), ErrNotFound)
}

func TestSetRelationshipFlags(t *testing.T) {
	e := newTestEngine(t)
	a, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	b, err := e.CreateEntity(1, 0)
	require.NoError(t, err)

	require.NoError(t, e.CreateRelationship(a.ID, b.ID, 1, core.AppendPos, core.AppendPos, 0b01))

	flags, err := e.SetRelationshipFlags(a.ID, b.ID, 1, 0b10, 0b01)
	require.NoError(t, err)
	assert.Equal(t, core.Flags(0b10), flags)

	fwd, ok := e.GetRelationship(a.ID, b.ID, 1, true)
	require.True(t, ok)
	assert.Equal(t, core.Flags(0b10), fwd.Flags)
	bwd, ok := e.GetRelationship(a.ID, b.ID, 1, false)
	require.True(t, ok)
	assert.Equal(t, core.Flags(0b10), bwd.Flags)

	// Flag updates version the row: the old row is tombstoned, the new one
	// reinserted at the same position.
	var versions []model.Version[model.Relationship]
	for v := range e.RelationshipHistory(a.ID, 1, true) {
		versions = append(versions, v)
	}
	require.Len(t, versions, 2)
	assert.False(t, versions[0].Live())
	assert.Equal(t, core.Flags(0b01), versions[0].Row.Flags)
	assert.True(t, versions[1].Live())
	assert.Equal(t, core.Flags(0b10), versions[1].Row.Flags)

	_, err = e.SetRelationshipFlags(a.ID, 999, 1, 1, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveRelationship(t *testing.T) {
	e := newTestEngine(t)
	a, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	b, err := e.CreateEntity(1, 0)
	require.NoError(t, err)

	require.NoError(t, e.CreateRelationship(a.ID, b.ID, 1, core.AppendPos, core.AppendPos, 0))
	require.NoError(t, e.RemoveRelationship(a.ID, b.ID, 1))

	_, ok := e.GetRelationship(a.ID, b.ID, 1, true)
	assert.False(t, ok)
	_, ok = e.GetRelationship(a.ID, b.ID, 1, false)
	assert.False(t, ok)

	assert.ErrorIs(t, e.RemoveRelationship(a.ID, b.ID, 1), ErrNotFound)

	// A removed pair may be recreated.
	require.NoError(t, e.CreateRelationship(a.ID, b.ID, 1, core.AppendPos, core.AppendPos, 0))
}
