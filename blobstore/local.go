package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/strata/internal/mmap"
)

// LocalStore implements BlobStore on the local filesystem. Reads are
// memory-mapped; writes go through a temp file and rename so readers never
// observe a partial blob.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at the given directory.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open opens a blob for reading via mmap.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	m, err := mmap.Open(s.path(name))
	if err != nil {
		return nil, err
	}
	return &localBlob{m: m}, nil
}

// Create opens a temp file next to the target; Close fsyncs and renames it
// into place.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	target := s.path(name)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return nil, fmt.Errorf("blobstore: create directory: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp*")
	if err != nil {
		return nil, fmt.Errorf("blobstore: create temp: %w", err)
	}
	return &localWritableBlob{f: f, target: target}, nil
}

// Put writes a complete blob atomically via Create.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Delete removes a blob.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns the blob names under prefix, sorted, relative to the root.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || strings.Contains(info.Name(), ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

type localBlob struct {
	m *mmap.File
}

func (b *localBlob) ReadAt(p []byte, off int64) (int, error) {
	return b.m.ReadAt(p, off)
}

func (b *localBlob) Close() error { return b.m.Close() }

func (b *localBlob) Size() int64 { return int64(len(b.m.Data)) }

// Bytes exposes the mapped bytes for zero-copy reads. Valid until Close.
func (b *localBlob) Bytes() ([]byte, error) { return b.m.Data, nil }

type localWritableBlob struct {
	f      *os.File
	target string
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *localWritableBlob) Sync() error { return w.f.Sync() }

func (w *localWritableBlob) Close() error {
	tmp := w.f.Name()
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, w.target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("blobstore: rename: %w", err)
	}
	return nil
}
