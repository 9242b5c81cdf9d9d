// Package blobstore abstracts the storage of snapshot blobs and manifests.
//
// BlobStore is the interface the snapshot layer writes through.
// Implementations must be safe for concurrent use.
//
// # Built-in implementations
//
//   - LocalStore: local filesystem with mmap reads and atomic renames
//   - MemoryStore: in-memory store for tests
//   - minio.Store: MinIO and other S3-compatible object storage
//   - s3.Store: Amazon S3 with streaming parallel uploads
//   - s3.DDBCommitStore: S3 plus DynamoDB for atomic CURRENT-pointer commits
package blobstore
