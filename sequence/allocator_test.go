package sequence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/strata/core"
)

func TestAllocator(t *testing.T) {
	t.Run("InvalidRange", func(t *testing.T) {
		_, err := New(0, 10)
		assert.Error(t, err)
		_, err = New(10, 5)
		assert.Error(t, err)
	})

	t.Run("SequentialIssue", func(t *testing.T) {
		a, err := New(100, 102)
		require.NoError(t, err)
		assert.Equal(t, core.ID(100), a.Peek())
		assert.Equal(t, int64(3), a.Remaining())

		for want := core.ID(100); want <= 102; want++ {
			id, err := a.Next()
			require.NoError(t, err)
			assert.Equal(t, want, id)
		}

		_, err = a.Next()
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, int64(0), a.Remaining())

		// Exhaustion is permanent.
		_, err = a.Next()
		assert.ErrorIs(t, err, ErrExhausted)
	})

	t.Run("RangeEndsAtMaxInt64", func(t *testing.T) {
		a, err := New(math.MaxInt64, math.MaxInt64)
		require.NoError(t, err)

		id, err := a.Next()
		require.NoError(t, err)
		assert.Equal(t, core.ID(math.MaxInt64), id)

		// The counter must not wrap into negative ids.
		for range 3 {
			_, err = a.Next()
			assert.ErrorIs(t, err, ErrExhausted)
		}
		assert.Equal(t, int64(0), a.Remaining())
	})

	t.Run("Advance", func(t *testing.T) {
		a, err := New(1, 1000)
		require.NoError(t, err)

		a.Advance(10)
		assert.Equal(t, core.ID(11), a.Peek())

		// Never moves backwards.
		a.Advance(5)
		assert.Equal(t, core.ID(11), a.Peek())

		id, err := a.Next()
		require.NoError(t, err)
		assert.Equal(t, core.ID(11), id)
	})

	t.Run("ConcurrentAllocateOnce", func(t *testing.T) {
		const (
			workers = 8
			perG    = 500
		)
		a, err := New(1, workers*perG)
		require.NoError(t, err)

		ids := make([][]core.ID, workers)
		var g errgroup.Group
		for w := range workers {
			g.Go(func() error {
				for range perG {
					id, err := a.Next()
					if err != nil {
						return err
					}
					ids[w] = append(ids[w], id)
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		seen := make(map[core.ID]struct{}, workers*perG)
		for _, batch := range ids {
			for _, id := range batch {
				_, dup := seen[id]
				require.False(t, dup, "id %d issued twice", id)
				seen[id] = struct{}{}
			}
		}
		assert.Len(t, seen, workers*perG)

		_, err = a.Next()
		assert.ErrorIs(t, err, ErrExhausted)
	})
}
