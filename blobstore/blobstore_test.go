package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]BlobStore {
	t.Helper()
	return map[string]BlobStore{
		"Memory": NewMemoryStore(),
		"Local":  NewLocalStore(t.TempDir()),
	}
}

func readAll(t *testing.T, b Blob) []byte {
	t.Helper()
	data := make([]byte, b.Size())
	n, err := b.ReadAt(data, 0)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadAt failed: %v", err)
	}
	return data[:n]
}

func TestBlobStore(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("OpenMissing", func(t *testing.T) {
				_, err := store.Open(ctx, "missing.bin")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("PutOpen", func(t *testing.T) {
				require.NoError(t, store.Put(ctx, "a/data.bin", []byte("hello")))

				b, err := store.Open(ctx, "a/data.bin")
				require.NoError(t, err)
				defer b.Close()

				assert.Equal(t, int64(5), b.Size())
				assert.Equal(t, []byte("hello"), readAll(t, b))

				// Partial reads at an offset.
				part := make([]byte, 2)
				n, err := b.ReadAt(part, 3)
				if err != nil && err != io.EOF {
					t.Fatalf("ReadAt failed: %v", err)
				}
				assert.Equal(t, 2, n)
				assert.Equal(t, []byte("lo"), part)
			})

			t.Run("CreateStreaming", func(t *testing.T) {
				w, err := store.Create(ctx, "a/streamed.bin")
				require.NoError(t, err)
				_, err = w.Write([]byte("part1"))
				require.NoError(t, err)
				_, err = w.Write([]byte("part2"))
				require.NoError(t, err)
				require.NoError(t, w.Sync())
				require.NoError(t, w.Close())

				b, err := store.Open(ctx, "a/streamed.bin")
				require.NoError(t, err)
				defer b.Close()
				assert.Equal(t, []byte("part1part2"), readAll(t, b))
			})

			t.Run("List", func(t *testing.T) {
				require.NoError(t, store.Put(ctx, "b/one.bin", []byte("1")))
				require.NoError(t, store.Put(ctx, "b/two.bin", []byte("2")))

				names, err := store.List(ctx, "b/")
				require.NoError(t, err)
				assert.Equal(t, []string{"b/one.bin", "b/two.bin"}, names)

				all, err := store.List(ctx, "")
				require.NoError(t, err)
				assert.Contains(t, all, "a/data.bin")
			})

			t.Run("Delete", func(t *testing.T) {
				require.NoError(t, store.Put(ctx, "c/gone.bin", []byte("x")))
				require.NoError(t, store.Delete(ctx, "c/gone.bin"))
				_, err := store.Open(ctx, "c/gone.bin")
				assert.ErrorIs(t, err, ErrNotFound)

				// Deleting a missing blob is not an error.
				require.NoError(t, store.Delete(ctx, "c/gone.bin"))
			})

			t.Run("Overwrite", func(t *testing.T) {
				require.NoError(t, store.Put(ctx, "d/val.bin", []byte("old")))
				require.NoError(t, store.Put(ctx, "d/val.bin", []byte("new!")))

				b, err := store.Open(ctx, "d/val.bin")
				require.NoError(t, err)
				defer b.Close()
				assert.Equal(t, []byte("new!"), readAll(t, b))
			})
		})
	}
}
