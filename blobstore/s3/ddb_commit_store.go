package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/strata/blobstore"
)

// DDBCommitStore implements blobstore.BlobStore backed by S3 with DynamoDB
// for atomic manifest commits.
//
// DynamoDB serves as a commit log for the CURRENT pointer, providing the
// compare-and-swap semantics S3 lacks. Blob data still lives in S3; only the
// pointer update goes through a conditional write, so concurrent writers
// cannot silently overwrite each other's commits.
//
// Table schema:
//   - Partition key: base_uri (string), the S3 prefix of the store
//   - Sort key: version (number), monotonically increasing
type DDBCommitStore struct {
	s3Store   *Store
	ddbClient DDBClient
	tableName string
	baseURI   string
}

// DDBClient is the subset of DynamoDB operations the commit store needs.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrConcurrentCommit is returned when another writer committed first.
var ErrConcurrentCommit = errors.New("concurrent manifest commit detected")

// NewDDBCommitStore creates an S3+DynamoDB commit store. baseURI is used as
// the partition key, typically "s3://bucket/prefix".
func NewDDBCommitStore(s3Store *Store, ddbClient DDBClient, tableName, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{
		s3Store:   s3Store,
		ddbClient: ddbClient,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Open opens a blob for reading. The CURRENT pointer is resolved through
// DynamoDB instead of S3.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name == "CURRENT" {
		version, manifestPath, err := s.latestVersion(ctx)
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, blobstore.ErrNotFound
		}
		return &pointerBlob{content: []byte(manifestPath)}, nil
	}
	return s.s3Store.Open(ctx, name)
}

// Put writes a blob. CURRENT goes through a DynamoDB conditional write.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == "CURRENT" {
		return s.commitVersion(ctx, string(data))
	}
	return s.s3Store.Put(ctx, name, data)
}

// Create creates a writable blob in S3.
func (s *DDBCommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return s.s3Store.Create(ctx, name)
}

// Delete removes a blob from S3.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	return s.s3Store.Delete(ctx, name)
}

// List lists blobs with prefix from S3.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.s3Store.List(ctx, prefix)
}

// latestVersion queries DynamoDB for the newest committed version.
func (s *DDBCommitStore) latestVersion(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commit log: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in commit log")
	}
	pathAttr, ok := item["manifest_path"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid manifest_path attribute in commit log")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return 0, "", fmt.Errorf("parse version: %w", err)
	}
	return version, pathAttr.Value, nil
}

// commitVersion writes the next version with a conditional put; losing the
// race surfaces as ErrConcurrentCommit.
func (s *DDBCommitStore) commitVersion(ctx context.Context, manifestPath string) error {
	currentVersion, _, err := s.latestVersion(ctx)
	if err != nil {
		return err
	}
	newVersion := currentVersion + 1

	_, err = s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: s.baseURI},
			"version":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", newVersion)},
			"manifest_path": &types.AttributeValueMemberS{Value: manifestPath},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentCommit
		}
		return fmt.Errorf("commit manifest version: %w", err)
	}
	return nil
}

// pointerBlob serves the resolved CURRENT content from memory.
type pointerBlob struct {
	content []byte
}

func (b *pointerBlob) Close() error { return nil }

func (b *pointerBlob) Size() int64 { return int64(len(b.content)) }

func (b *pointerBlob) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
