package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error satisfying
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// BlobStore reads and writes named immutable blobs.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create opens a new blob for streaming writes. The blob becomes
	// visible when the returned handle is closed.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a complete blob atomically.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the blob names under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a write-once handle. Close finalizes the blob; data is not
// guaranteed visible before Close returns.
type WritableBlob interface {
	io.Writer
	io.Closer
	// Sync flushes buffered data to durable storage where the backend
	// supports it.
	Sync() error
}
