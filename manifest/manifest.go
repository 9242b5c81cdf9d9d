// Package manifest tracks the current snapshot through a versioned manifest
// and a CURRENT pointer blob.
//
// Every snapshot save writes a fresh MANIFEST-<id>.json and then repoints
// CURRENT at it. Whether the pointer update is atomic is the blob store's
// concern: the local store renames, the DynamoDB commit store does a
// conditional write.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hupe1980/strata/blobstore"
	"github.com/hupe1980/strata/codec"
)

const (
	ManifestFileName = "MANIFEST"
	CurrentFileName  = "CURRENT"
	CurrentVersion   = 1
)

// Manifest describes one durable snapshot of the store.
type Manifest struct {
	Version      int       `json:"version"`
	ID           uint64    `json:"id"`
	SnapshotPath string    `json:"snapshot_path"` // relative to the store root
	CodecName    string    `json:"codec_name"`
	Compression  uint8     `json:"compression"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store manages manifest blobs and the CURRENT pointer.
type Store struct {
	blobs blobstore.BlobStore
	codec codec.Codec
	mu    sync.Mutex
}

// NewStore creates a manifest store on top of a blob store.
func NewStore(blobs blobstore.BlobStore, c codec.Codec) *Store {
	if c == nil {
		c = codec.Default
	}
	return &Store{blobs: blobs, codec: c}
}

// Load resolves CURRENT and reads the manifest it points at. A missing
// CURRENT yields an empty manifest with ID zero.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := s.readAll(ctx, CurrentFileName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return &Manifest{Version: CurrentVersion}, nil
	}
	if err != nil {
		return nil, err
	}

	data, err := s.readAll(ctx, string(content))
	if err != nil {
		return nil, fmt.Errorf("manifest: read %q: %w", string(content), err)
	}

	var m Manifest
	if err := s.codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("manifest: unsupported version %d (expected %d)", m.Version, CurrentVersion)
	}
	return &m, nil
}

// Save writes the manifest under the next id and repoints CURRENT at it.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion
	m.ID++

	name := fmt.Sprintf("%s-%06d.json", ManifestFileName, m.ID)
	data, err := s.codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	if err := s.blobs.Put(ctx, name, data); err != nil {
		return fmt.Errorf("manifest: write %q: %w", name, err)
	}
	if err := s.blobs.Put(ctx, CurrentFileName, []byte(name)); err != nil {
		return fmt.Errorf("manifest: update pointer: %w", err)
	}
	return nil
}

func (s *Store) readAll(ctx context.Context, name string) ([]byte, error) {
	blob, err := s.blobs.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	data := make([]byte, blob.Size())
	if _, err := blob.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return data, nil
}
