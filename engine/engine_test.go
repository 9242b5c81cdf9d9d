package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/model"
	"github.com/hupe1980/strata/sequence"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{})
	require.NoError(t, err)
	return e
}

func TestCreateEntity(t *testing.T) {
	e := newTestEngine(t)

	ent1, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	ent2, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	assert.Equal(t, core.ID(1), ent1.ID)
	assert.Equal(t, core.ID(2), ent2.ID)

	got, ok := e.GetEntity(ent1.ID, 1)
	require.True(t, ok)
	assert.Equal(t, ent1, got)

	// The ctx is part of the read identity.
	_, ok = e.GetEntity(ent1.ID, 2)
	assert.False(t, ok)
}

func TestEntityIDExhaustion(t *testing.T) {
	e, err := New(Config{EntityStart: 1, EntityMax: 2})
	require.NoError(t, err)

	_, err = e.CreateEntity(1, 0)
	require.NoError(t, err)
	_, err = e.CreateEntity(1, 0)
	require.NoError(t, err)
	_, err = e.CreateEntity(1, 0)
	assert.ErrorIs(t, err, sequence.ErrExhausted)
}

func TestEntityFlagsAndHistory(t *testing.T) {
	e := newTestEngine(t)

	ent, err := e.CreateEntity(1, 0b001)
	require.NoError(t, err)

	flags, err := e.SetEntityFlags(ent.ID, 1, 0b110, 0b001)
	require.NoError(t, err)
	assert.Equal(t, core.Flags(0b110), flags)

	_, err = e.SetEntityFlags(ent.ID, 2, 1, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, e.RemoveEntity(ent.ID, 1))
	_, ok := e.GetEntity(ent.ID, 1)
	assert.False(t, ok)
	assert.ErrorIs(t, e.RemoveEntity(ent.ID, 1), ErrNotFound)

	var versions []model.Version[model.Entity]
	for v := range e.EntityHistory(ent.ID) {
		versions = append(versions, v)
	}
	require.Len(t, versions, 2)
	assert.Equal(t, core.Flags(0b001), versions[0].Row.Flags)
	assert.False(t, versions[0].Live())
	assert.Equal(t, core.Flags(0b110), versions[1].Row.Flags)
	assert.False(t, versions[1].Live())
}

func TestProperty(t *testing.T) {
	e := newTestEngine(t)
	ent, err := e.CreateEntity(1, 0)
	require.NoError(t, err)

	t.Run("RequiresBase", func(t *testing.T) {
		_, err := e.SetProperty(999, 1, model.NumValue(1), 0)
		assert.ErrorIs(t, err, ErrNoObject)
	})

	t.Run("RejectsInvalidValue", func(t *testing.T) {
		_, err := e.SetProperty(ent.ID, 1, model.Value{}, 0)
		assert.ErrorIs(t, err, ErrInvalidValue)
		_, err = e.SetProperty(ent.ID, 1, model.Value{Kind: model.KindNum, Num: 1, Bytes: []byte("x")}, 0)
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("SetReplaceGet", func(t *testing.T) {
		created, err := e.SetProperty(ent.ID, 10, model.NumValue(1), 0)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = e.SetProperty(ent.ID, 10, model.NumValue(2), 0)
		require.NoError(t, err)
		assert.False(t, created)

		got, ok := e.GetProperty(ent.ID, 10)
		require.True(t, ok)
		assert.Equal(t, int64(2), got.Value.Num)

		var nums []int64
		var live []bool
		for v := range e.PropertyHistory(ent.ID, 10) {
			nums = append(nums, v.Row.Value.Num)
			live = append(live, v.Live())
		}
		assert.Equal(t, []int64{1, 2}, nums)
		assert.Equal(t, []bool{false, true}, live)
	})

	t.Run("ListWithMissingSlots", func(t *testing.T) {
		_, err := e.SetProperty(ent.ID, 20, model.BytesValue([]byte("blob")), 0)
		require.NoError(t, err)

		props := e.ListProperties(ent.ID, 20, 21)
		require.Len(t, props, 2)
		require.NotNil(t, props[0])
		assert.Equal(t, []byte("blob"), props[0].Value.Bytes)
		assert.Nil(t, props[1])
	})

	t.Run("Remove", func(t *testing.T) {
		_, err := e.SetProperty(ent.ID, 30, model.NumValue(7), 0)
		require.NoError(t, err)
		require.NoError(t, e.RemoveProperty(ent.ID, 30))
		_, ok := e.GetProperty(ent.ID, 30)
		assert.False(t, ok)
		assert.ErrorIs(t, e.RemoveProperty(ent.ID, 30), ErrNotFound)
	})

	t.Run("Flags", func(t *testing.T) {
		_, err := e.SetProperty(ent.ID, 40, model.NumValue(7), 0b01)
		require.NoError(t, err)
		flags, err := e.SetPropertyFlags(ent.ID, 40, 0b10, 0b01)
		require.NoError(t, err)
		assert.Equal(t, core.Flags(0b10), flags)
	})
}

func TestIncrementProperty(t *testing.T) {
	e := newTestEngine(t)
	ent, err := e.CreateEntity(1, 0)
	require.NoError(t, err)

	_, err = e.IncrementProperty(ent.ID, 1, 1, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.SetProperty(ent.ID, 1, model.NumValue(10), 0)
	require.NoError(t, err)

	got, err := e.IncrementProperty(ent.ID, 1, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(15), got)

	// Positive deltas saturate at the upper bound.
	limit := int64(20)
	got, err = e.IncrementProperty(ent.ID, 1, 100, &limit)
	require.NoError(t, err)
	assert.Equal(t, int64(20), got)

	// Negative deltas saturate at the lower bound.
	floor := int64(0)
	got, err = e.IncrementProperty(ent.ID, 1, -50, &floor)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	_, err = e.SetProperty(ent.ID, 2, model.BytesValue([]byte("x")), 0)
	require.NoError(t, err)
	_, err = e.IncrementProperty(ent.ID, 2, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestRemoveEntityEstate(t *testing.T) {
	e := newTestEngine(t)
	a, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	b, err := e.CreateEntity(1, 0)
	require.NoError(t, err)

	_, err = e.SetProperty(a.ID, 1, model.NumValue(1), 0)
	require.NoError(t, err)
	_, err = e.SetAlias(a.ID, 1, "alice", core.AppendPos, 0)
	require.NoError(t, err)
	require.NoError(t, e.CreateName(a.ID, 1, "Alice", core.AppendPos, 0))
	require.NoError(t, e.CreateRelationship(a.ID, b.ID, 1, core.AppendPos, core.AppendPos, 0))

	require.NoError(t, e.RemoveEntityEstate(a.ID, 1))

	_, ok := e.GetEntity(a.ID, 1)
	assert.False(t, ok)
	_, ok = e.GetProperty(a.ID, 1)
	assert.False(t, ok)
	_, ok = e.LookupAlias("alice", 1)
	assert.False(t, ok)
	assert.Empty(t, e.ListNames(a.ID, 1, 0, 0))
	assert.Empty(t, e.SearchPrefix("ali", 1, 10, ""))

	// Both directions of the relationship are retracted, including the
	// surviving endpoint's backward row.
	_, ok = e.GetRelationship(a.ID, b.ID, 1, true)
	assert.False(t, ok)
	_, ok = e.GetRelationship(a.ID, b.ID, 1, false)
	assert.False(t, ok)
	assert.Empty(t, e.ListRelationships(b.ID, 1, false, 0, 0))

	// The freed alias value can be claimed by another owner.
	created, err := e.SetAlias(b.ID, 1, "alice", core.AppendPos, 0)
	require.NoError(t, err)
	assert.True(t, created)

	// History of the removed estate stays queryable.
	var count int
	for range e.PropertyHistory(a.ID, 1) {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestRemoveEntityKeepsDependents(t *testing.T) {
	e := newTestEngine(t)
	a, err := e.CreateEntity(1, 0)
	require.NoError(t, err)
	_, err = e.SetProperty(a.ID, 1, model.NumValue(1), 0)
	require.NoError(t, err)

	require.NoError(t, e.RemoveEntity(a.ID, 1))

	// Plain removal leaves dependents alone.
	_, ok := e.GetProperty(a.ID, 1)
	assert.True(t, ok)
}
