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

// DDBClient is the subset of the DynamoDB API the catalog uses. Tests
// substitute a fake.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// SegmentEntry is the catalog row of one archived record file.
type SegmentEntry struct {
	// BaseURI identifies the recording, e.g. "s3://bucket/records/run-42".
	BaseURI      string
	FileIndex    uint64
	Name         string // blob name within the store
	BeginTime    uint64 // nanoseconds
	EndTime      uint64 // nanoseconds
	MessageCount uint64
	RawBytes     uint64
}

// ErrSegmentExists is returned when an entry for the same (BaseURI,
// FileIndex) was already registered.
var ErrSegmentExists = errors.New("segment already registered")

// Catalog registers archived record files in a DynamoDB table so downstream
// pipelines can discover replay files by recording and time range without
// listing the bucket.
//
// Table schema:
//   - Partition key: base_uri (string)
//   - Sort key: file_index (number)
//
// Create with:
//
//	aws dynamodb create-table \
//	  --table-name seglog-segments \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=file_index,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=file_index,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type Catalog struct {
	client    DDBClient
	tableName string
}

// NewCatalog creates a catalog backed by the given table.
func NewCatalog(client DDBClient, tableName string) *Catalog {
	return &Catalog{client: client, tableName: tableName}
}

// Register inserts the entry. File indexes are written once: a second
// registration of the same (BaseURI, FileIndex) fails with ErrSegmentExists.
func (c *Catalog) Register(ctx context.Context, e SegmentEntry) error {
	_, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: e.BaseURI},
			"file_index":    &types.AttributeValueMemberN{Value: strconv.FormatUint(e.FileIndex, 10)},
			"name":          &types.AttributeValueMemberS{Value: e.Name},
			"begin_time":    &types.AttributeValueMemberN{Value: strconv.FormatUint(e.BeginTime, 10)},
			"end_time":      &types.AttributeValueMemberN{Value: strconv.FormatUint(e.EndTime, 10)},
			"message_count": &types.AttributeValueMemberN{Value: strconv.FormatUint(e.MessageCount, 10)},
			"raw_bytes":     &types.AttributeValueMemberN{Value: strconv.FormatUint(e.RawBytes, 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(base_uri) AND attribute_not_exists(file_index)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: %s index %d", ErrSegmentExists, e.BaseURI, e.FileIndex)
		}
		return fmt.Errorf("register segment: %w", err)
	}
	return nil
}

// Segments returns all entries of a recording ordered by file index.
func (c *Catalog) Segments(ctx context.Context, baseURI string) ([]SegmentEntry, error) {
	var entries []SegmentEntry
	var startKey map[string]types.AttributeValue

	for {
		resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(c.tableName),
			KeyConditionExpression: aws.String("base_uri = :uri"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uri": &types.AttributeValueMemberS{Value: baseURI},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query segments: %w", err)
		}

		for _, item := range resp.Items {
			e, err := decodeEntry(baseURI, item)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}

		if resp.LastEvaluatedKey == nil {
			return entries, nil
		}
		startKey = resp.LastEvaluatedKey
	}
}

func decodeEntry(baseURI string, item map[string]types.AttributeValue) (SegmentEntry, error) {
	e := SegmentEntry{BaseURI: baseURI}

	if v, ok := item["name"].(*types.AttributeValueMemberS); ok {
		e.Name = v.Value
	}
	for attr, dst := range map[string]*uint64{
		"file_index":    &e.FileIndex,
		"begin_time":    &e.BeginTime,
		"end_time":      &e.EndTime,
		"message_count": &e.MessageCount,
		"raw_bytes":     &e.RawBytes,
	} {
		v, ok := item[attr].(*types.AttributeValueMemberN)
		if !ok {
			return SegmentEntry{}, fmt.Errorf("catalog item missing attribute %q", attr)
		}
		n, err := strconv.ParseUint(v.Value, 10, 64)
		if err != nil {
			return SegmentEntry{}, fmt.Errorf("parse attribute %q: %w", attr, err)
		}
		*dst = n
	}
	return e, nil
}
