package s3

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/strata/blobstore"
)

// mockDDBClient is an in-memory DynamoDB mock.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue // base_uri:version -> item
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{items: make(map[string]map[string]types.AttributeValue)}
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	baseURI := params.Item["base_uri"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := baseURI + ":" + version

	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	baseURI := params.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["base_uri"].(*types.AttributeValueMemberS).Value == baseURI {
			items = append(items, item)
		}
	}

	// Sort descending by version, matching ScanIndexForward=false.
	for i := 0; i < len(items)-1; i++ {
		for j := i + 1; j < len(items); j++ {
			vi := items[i]["version"].(*types.AttributeValueMemberN).Value
			vj := items[j]["version"].(*types.AttributeValueMemberN).Value
			if vi < vj {
				items[i], items[j] = items[j], items[i]
			}
		}
	}

	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func readCurrent(t *testing.T, store *DDBCommitStore) string {
	t.Helper()
	blob, err := store.Open(context.Background(), "CURRENT")
	require.NoError(t, err)
	defer blob.Close()

	buf := make([]byte, blob.Size())
	n, err := blob.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadAt failed: %v", err)
	}
	return string(buf[:n])
}

func newTestDDBCommitStore(ddb *mockDDBClient, baseURI string) *DDBCommitStore {
	// CURRENT never touches S3, so the commit log paths run without a client.
	return NewDDBCommitStore(nil, ddb, "strata-commits", baseURI)
}

func TestDDBCommitStore_FirstCommit(t *testing.T) {
	ctx := context.Background()
	store := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/db/")

	require.NoError(t, store.Put(ctx, "CURRENT", []byte("MANIFEST-000001.json")))
	assert.Equal(t, "MANIFEST-000001.json", readCurrent(t, store))
}

func TestDDBCommitStore_MultipleCommits(t *testing.T) {
	ctx := context.Background()
	store := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/db/")

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Put(ctx, "CURRENT", []byte(fmt.Sprintf("MANIFEST-%06d.json", i))))
	}
	assert.Equal(t, "MANIFEST-000003.json", readCurrent(t, store))
}

func TestDDBCommitStore_CurrentMissing(t *testing.T) {
	store := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/db/")

	_, err := store.Open(context.Background(), "CURRENT")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDDBCommitStore_ConcurrentCommit(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	a := newTestDDBCommitStore(ddb, "s3://test-bucket/db/")
	b := newTestDDBCommitStore(ddb, "s3://test-bucket/db/")

	require.NoError(t, a.Put(ctx, "CURRENT", []byte("MANIFEST-000001.json")))

	// Both writers read version 1 and race to commit version 2. The mock is
	// serialized, so the direct simulation writes the conflicting row first.
	_, err := ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String("strata-commits"),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: "s3://test-bucket/db/"},
			"version":       &types.AttributeValueMemberN{Value: "2"},
			"manifest_path": &types.AttributeValueMemberS{Value: "MANIFEST-000002.json"},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	require.NoError(t, err)

	err = b.Put(ctx, "CURRENT", []byte("MANIFEST-000002b.json"))
	assert.ErrorIs(t, err, ErrConcurrentCommit)
}
