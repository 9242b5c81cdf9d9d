// Package s3 implements blobstore.BlobStore for Amazon S3.
//
// Store covers plain blob access with ranged reads and streaming parallel
// uploads. DDBCommitStore layers DynamoDB conditional writes on top to give
// the CURRENT manifest pointer the compare-and-swap semantics S3 lacks,
// allowing multiple writers to coordinate safely.
package s3
