package vtable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnique(t *testing.T) {
	now := time.Now()

	t.Run("InsertAndQuery", func(t *testing.T) {
		tbl := NewUnique[string, int]()

		ref, err := tbl.InsertLive("a", 1)
		require.NoError(t, err)
		assert.Equal(t, 1, tbl.Get(ref))
		assert.Equal(t, "a", tbl.Key(ref))
		assert.Nil(t, tbl.RemovedAt(ref))

		got, ok := tbl.QueryLive("a")
		require.True(t, ok)
		assert.Equal(t, ref, got)
	})

	t.Run("LiveUniqueness", func(t *testing.T) {
		tbl := NewUnique[string, int]()

		_, err := tbl.InsertLive("a", 1)
		require.NoError(t, err)

		_, err = tbl.InsertLive("a", 2)
		assert.ErrorIs(t, err, ErrConstraintViolation)
	})

	t.Run("TombstoneFreesKey", func(t *testing.T) {
		tbl := NewUnique[string, int]()

		ref, err := tbl.InsertLive("a", 1)
		require.NoError(t, err)
		require.NoError(t, tbl.Tombstone(ref, now))
		require.NotNil(t, tbl.RemovedAt(ref))
		assert.Equal(t, now, *tbl.RemovedAt(ref))

		// The slot is free again; the old version stays addressable.
		ref2, err := tbl.InsertLive("a", 2)
		require.NoError(t, err)
		assert.Equal(t, 1, tbl.Get(ref))
		assert.Equal(t, 2, tbl.Get(ref2))

		assert.ErrorIs(t, tbl.Tombstone(ref, now), ErrAlreadyRemoved)
	})

	t.Run("History", func(t *testing.T) {
		tbl := NewUnique[string, int]()

		ref1, _ := tbl.InsertLive("a", 1)
		require.NoError(t, tbl.Tombstone(ref1, now))
		ref2, _ := tbl.InsertLive("a", 2)
		_, _ = tbl.InsertLive("b", 3)

		var versions []int
		for ref := range tbl.QueryHistory("a") {
			versions = append(versions, tbl.Get(ref))
		}
		assert.Equal(t, []int{1, 2}, versions)

		assert.Equal(t, 2, tbl.LiveCount())
		assert.Equal(t, 3, tbl.Len())
		_ = ref2
	})

	t.Run("ReplaceOptimistic", func(t *testing.T) {
		tbl := NewUnique[string, int]()

		ref, err := tbl.InsertLive("a", 1)
		require.NoError(t, err)

		ref2, err := tbl.Replace(ref, 2, now)
		require.NoError(t, err)
		assert.Equal(t, 2, tbl.Get(ref2))
		assert.NotNil(t, tbl.RemovedAt(ref))

		// ref is stale now; replacing through it must fail.
		_, err = tbl.Replace(ref, 3, now)
		assert.ErrorIs(t, err, ErrConstraintViolation)

		got, ok := tbl.QueryLive("a")
		require.True(t, ok)
		assert.Equal(t, 2, tbl.Get(got))
	})

	t.Run("DumpLoadRoundTrip", func(t *testing.T) {
		tbl := NewUnique[string, int]()

		ref1, _ := tbl.InsertLive("a", 1)
		require.NoError(t, tbl.Tombstone(ref1, now))
		_, _ = tbl.InsertLive("a", 2)
		_, _ = tbl.InsertLive("b", 3)

		restored := NewUnique[string, int]()
		restored.Load(tbl.Dump())

		assert.Equal(t, tbl.Len(), restored.Len())
		assert.Equal(t, tbl.LiveCount(), restored.LiveCount())

		got, ok := restored.QueryLive("a")
		require.True(t, ok)
		assert.Equal(t, 2, restored.Get(got))

		var versions []int
		for ref := range restored.QueryHistory("a") {
			versions = append(versions, restored.Get(ref))
		}
		assert.Equal(t, []int{1, 2}, versions)
	})
}
