package manifest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/strata/blobstore"
)

func TestLoadEmpty(t *testing.T) {
	s := NewStore(blobstore.NewMemoryStore(), nil)

	m, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), m.ID)
	assert.Equal(t, CurrentVersion, m.Version)
	assert.Empty(t, m.SnapshotPath)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := NewStore(blobs, nil)

	m, err := s.Load(ctx)
	require.NoError(t, err)

	m.SnapshotPath = "SNAPSHOT-000001.bin"
	m.CodecName = "go-json"
	m.CreatedAt = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, m))
	assert.Equal(t, uint64(1), m.ID)

	// A fresh store resolves CURRENT to the saved manifest.
	got, err := NewStore(blobs, nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	names, err := blobs.List(ctx, ManifestFileName)
	require.NoError(t, err)
	assert.Equal(t, []string{"MANIFEST-000001.json"}, names)
}

func TestSaveIncrementsID(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := NewStore(blobs, nil)

	m, err := s.Load(ctx)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		m.SnapshotPath = "SNAPSHOT.bin"
		require.NoError(t, s.Save(ctx, m))
		assert.Equal(t, uint64(i), m.ID)
	}

	// Every save leaves its manifest behind; CURRENT points at the latest.
	names, err := blobs.List(ctx, ManifestFileName)
	require.NoError(t, err)
	assert.Len(t, names, 3)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.ID)
}
