package strata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/strata/blobstore"
	"github.com/hupe1980/strata/codec"
	"github.com/hupe1980/strata/engine"
	"github.com/hupe1980/strata/journal"
	"github.com/hupe1980/strata/manifest"
)

// Snapshot dumps the full engine state to the snapshot store, commits a new
// manifest pointing at it and truncates the journal. The engine is only
// locked while state is dumped; encoding and upload happen outside the lock.
func (s *Store) Snapshot(ctx context.Context) error {
	if s.snapshots == nil {
		return errors.New("strata: no snapshot store configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	err := s.snapshot(ctx)
	s.metrics.RecordSnapshot(time.Since(start), err)
	return err
}

func (s *Store) snapshot(ctx context.Context) error {
	m, err := s.manifests.Load(ctx)
	if err != nil {
		return fmt.Errorf("strata: load manifest: %w", err)
	}
	name := fmt.Sprintf("SNAPSHOT-%06d.bin", m.ID+1)

	data, err := s.codec.Marshal(s.engine.Dump())
	if err != nil {
		s.logger.LogSnapshot(ctx, name, err)
		return fmt.Errorf("strata: encode snapshot: %w", err)
	}

	if err := writeCompressed(ctx, s.snapshots, name, data, s.compression); err != nil {
		s.logger.LogSnapshot(ctx, name, err)
		return fmt.Errorf("strata: write snapshot: %w", err)
	}

	m.SnapshotPath = name
	m.CodecName = s.codec.Name()
	m.Compression = uint8(s.compression)
	m.CreatedAt = time.Now()
	if err := s.manifests.Save(ctx, m); err != nil {
		s.logger.LogSnapshot(ctx, name, err)
		return err
	}
	s.logger.LogSnapshot(ctx, name, nil)

	if s.journal != nil {
		err := s.journal.Checkpoint()
		s.logger.LogCheckpoint(ctx, err)
		if err != nil {
			return fmt.Errorf("strata: truncate journal: %w", err)
		}
	}
	return nil
}

// loadSnapshot reads the manifest's current snapshot blob and decodes it.
// Returns nil when no snapshot has been taken yet.
func loadSnapshot(ctx context.Context, bs blobstore.BlobStore, m *manifest.Manifest) (*engine.Snapshot, error) {
	if m.SnapshotPath == "" {
		return nil, nil
	}

	blob, err := bs.Open(ctx, m.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("strata: open snapshot %q: %w", m.SnapshotPath, err)
	}
	defer blob.Close()

	stored := make([]byte, blob.Size())
	if _, err := blob.ReadAt(stored, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("strata: read snapshot: %w", err)
	}

	data, err := readCompressed(stored, journal.Compression(m.Compression))
	if err != nil {
		return nil, fmt.Errorf("strata: decompress snapshot: %w", err)
	}

	c, ok := codec.ByName(m.CodecName)
	if !ok {
		return nil, fmt.Errorf("strata: unknown snapshot codec %q", m.CodecName)
	}
	var snap engine.Snapshot
	if err := c.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("strata: decode snapshot: %w", err)
	}
	return &snap, nil
}

// writeCompressed streams data into a new blob through the selected
// compression codec.
func writeCompressed(ctx context.Context, bs blobstore.BlobStore, name string, data []byte, c journal.Compression) error {
	w, err := bs.Create(ctx, name)
	if err != nil {
		return err
	}

	var werr error
	switch c {
	case journal.CompressionLZ4:
		lw := lz4.NewWriter(w)
		if _, werr = lw.Write(data); werr == nil {
			werr = lw.Close()
		}
	case journal.CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			werr = err
			break
		}
		if _, werr = zw.Write(data); werr == nil {
			werr = zw.Close()
		}
	default:
		_, werr = w.Write(data)
	}
	if werr != nil {
		_ = w.Close()
		return werr
	}
	if err := w.Sync(); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// readCompressed reverses writeCompressed.
func readCompressed(stored []byte, c journal.Compression) ([]byte, error) {
	switch c {
	case journal.CompressionLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(stored)))
	case journal.CompressionZstd:
		zr, err := zstd.NewReader(bytes.NewReader(stored))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return stored, nil
	}
}
