package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DDBClient is the interface for the DynamoDB operations the commit log
// uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrConcurrentModification is returned when another writer committed a
// snapshot version concurrently.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// CommitLog tracks the latest snapshot in DynamoDB, giving S3-backed
// snapshots the atomic compare-and-swap S3 itself lacks. Each commit
// appends a row keyed by (base_uri, version) with a conditional write, so
// concurrent writers cannot both claim the same version.
//
// Table schema:
//   - Partition key: base_uri (string) - the S3 bucket/prefix
//   - Sort key: version (number) - monotonically increasing
type CommitLog struct {
	client    DDBClient
	tableName string
	baseURI   string
}

// NewCommitLog creates a commit log over the given table. baseURI should
// identify the snapshot location, e.g. "s3://bucket/prefix".
func NewCommitLog(client DDBClient, tableName, baseURI string) *CommitLog {
	return &CommitLog{
		client:    client,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Latest returns the most recently committed snapshot name and its
// version. Version 0 with an empty name means nothing is committed yet.
func (l *CommitLog) Latest(ctx context.Context) (uint64, string, error) {
	resp, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: l.baseURI},
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
	nameAttr, ok := item["snapshot_name"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid snapshot_name attribute in commit log")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse commit version: %w", err)
	}

	return version, nameAttr.Value, nil
}

// Commit records name as the next snapshot version. It fails with
// ErrConcurrentModification if another writer claimed the version first.
func (l *CommitLog) Commit(ctx context.Context, name string) (uint64, error) {
	currentVersion, _, err := l.Latest(ctx)
	if err != nil {
		return 0, err
	}
	newVersion := currentVersion + 1

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: l.baseURI},
			"version":       &types.AttributeValueMemberN{Value: strconv.FormatUint(newVersion, 10)},
			"snapshot_name": &types.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, ErrConcurrentModification
		}
		return 0, fmt.Errorf("commit snapshot version: %w", err)
	}

	return newVersion, nil
}
