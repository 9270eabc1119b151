package s3

import (
	"context"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDDB is an in-memory DDBClient implementing conditional puts.
type fakeDDB struct {
	rows map[string]string // version -> snapshot name

	// staleReads under-reports the latest version for that many queries,
	// simulating a concurrent writer landing between Latest and PutItem.
	staleReads int
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{rows: make(map[string]string)}
}

func (f *fakeDDB) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	if _, exists := f.rows[version]; exists {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("version exists")}
	}
	f.rows[version] = params.Item["snapshot_name"].(*types.AttributeValueMemberS).Value
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	var latest uint64
	for v := range f.rows {
		n, _ := strconv.ParseUint(v, 10, 64)
		if n > latest {
			latest = n
		}
	}
	if f.staleReads > 0 && latest > 0 {
		f.staleReads--
		latest--
	}
	if latest == 0 {
		return &dynamodb.QueryOutput{}, nil
	}

	return &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{{
			"base_uri":      &types.AttributeValueMemberS{Value: "s3://bucket/prefix"},
			"version":       &types.AttributeValueMemberN{Value: strconv.FormatUint(latest, 10)},
			"snapshot_name": &types.AttributeValueMemberS{Value: f.rows[strconv.FormatUint(latest, 10)]},
		}},
	}, nil
}

func TestCommitLog(t *testing.T) {
	ctx := context.Background()
	log := NewCommitLog(newFakeDDB(), "covertree-commits", "s3://bucket/prefix")

	t.Run("empty log", func(t *testing.T) {
		version, name, err := log.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), version)
		assert.Empty(t, name)
	})

	t.Run("commit advances version", func(t *testing.T) {
		v1, err := log.Commit(ctx, "tree-0001.snapshot")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), v1)

		v2, err := log.Commit(ctx, "tree-0002.snapshot")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), v2)

		version, name, err := log.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), version)
		assert.Equal(t, "tree-0002.snapshot", name)
	})
}

func TestCommitLogConcurrentModification(t *testing.T) {
	ctx := context.Background()
	ddb := newFakeDDB()
	log := NewCommitLog(ddb, "covertree-commits", "s3://bucket/prefix")

	_, err := log.Commit(ctx, "tree-0001.snapshot")
	require.NoError(t, err)

	// Another writer landed version 2, but our read still sees version 1.
	ddb.rows["2"] = "tree-other.snapshot"
	ddb.staleReads = 1

	_, err = log.Commit(ctx, "tree-mine.snapshot")
	require.ErrorIs(t, err, ErrConcurrentModification)
}
