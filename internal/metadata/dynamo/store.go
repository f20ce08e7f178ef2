// Package dynamo implements metadata.Store on a DynamoDB table keyed by
// image_id, with optional global secondary indexes.
package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"imagevault/internal/metadata"
	"imagevault/pkg/logger"
)

// API is the subset of the DynamoDB client the store calls.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type Store struct {
	client API
	table  string
}

// NewClient builds a DynamoDB client. A non-empty endpoint overrides the
// resolved one (LocalStack).
func NewClient(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

func New(client API, table string) *Store {
	return &Store{client: client, table: table}
}

func (s *Store) Put(ctx context.Context, rec *metadata.Record) error {
	av, err := attributevalue.MarshalMap(fromRecord(rec))
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("dynamodb put_item: %w", err)
	}
	logger.LogDebug("DynamoDB put_item %s", rec.ImageID)
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*metadata.Record, error) {
	if id == "" {
		return nil, metadata.ErrNotFound
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       imageKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get_item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, metadata.ErrNotFound
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	rec := it.record()
	return &rec, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       imageKey(id),
	}); err != nil {
		return fmt.Errorf("dynamodb delete_item: %w", err)
	}
	logger.LogDebug("DynamoDB delete_item %s", id)
	return nil
}

// Query runs a key condition on the owner index. Limit bounds the items
// evaluated, so a page may hold fewer matches than limit while a token is
// still returned.
func (s *Store) Query(ctx context.Context, index, ownerID string, filter metadata.Filter, limit int, token string) (metadata.Page, error) {
	b := expression.NewBuilder().
		WithKeyCondition(expression.Key(metadata.FieldOwnerID).Equal(expression.Value(ownerID)))
	if cond, ok := buildCondition(filter); ok {
		b = b.WithFilter(cond)
	}
	expr, err := b.Build()
	if err != nil {
		return metadata.Page{}, fmt.Errorf("build query expression: %w", err)
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(int32(limit)),
		ExclusiveStartKey:         decodeKey(token, metadata.FieldImageID, metadata.FieldOwnerID),
	})
	if err != nil {
		return metadata.Page{}, fmt.Errorf("dynamodb query on %s: %w", index, err)
	}
	return page(out.Items, out.LastEvaluatedKey)
}

func (s *Store) Scan(ctx context.Context, filter metadata.Filter, limit int, token string) (metadata.Page, error) {
	in := &dynamodb.ScanInput{
		TableName:         aws.String(s.table),
		Limit:             aws.Int32(int32(limit)),
		ExclusiveStartKey: decodeKey(token, metadata.FieldImageID),
	}
	if cond, ok := buildCondition(filter); ok {
		expr, err := expression.NewBuilder().WithFilter(cond).Build()
		if err != nil {
			return metadata.Page{}, fmt.Errorf("build scan expression: %w", err)
		}
		in.FilterExpression = expr.Filter()
		in.ExpressionAttributeNames = expr.Names()
		in.ExpressionAttributeValues = expr.Values()
	}

	out, err := s.client.Scan(ctx, in)
	if err != nil {
		return metadata.Page{}, fmt.Errorf("dynamodb scan: %w", err)
	}
	return page(out.Items, out.LastEvaluatedKey)
}

// DescribeIndexes lists global secondary indexes with their HASH key.
func (s *Store) DescribeIndexes(ctx context.Context) ([]metadata.IndexInfo, error) {
	out, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err != nil {
		return nil, fmt.Errorf("dynamodb describe_table: %w", err)
	}
	if out.Table == nil {
		return nil, nil
	}
	var infos []metadata.IndexInfo
	for _, gsi := range out.Table.GlobalSecondaryIndexes {
		for _, ks := range gsi.KeySchema {
			if ks.KeyType == types.KeyTypeHash {
				infos = append(infos, metadata.IndexInfo{
					Name:         aws.ToString(gsi.IndexName),
					PartitionKey: aws.ToString(ks.AttributeName),
				})
				break
			}
		}
	}
	return infos, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	return err
}

func imageKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		metadata.FieldImageID: &types.AttributeValueMemberS{Value: id},
	}
}

func page(raw []map[string]types.AttributeValue, lek map[string]types.AttributeValue) (metadata.Page, error) {
	items, err := decodeItems(raw)
	if err != nil {
		return metadata.Page{}, fmt.Errorf("unmarshal items: %w", err)
	}
	return metadata.Page{Items: items, NextToken: encodeKey(lek)}, nil
}

// buildCondition folds the filter into one ANDed condition. ok is false for
// the empty filter.
func buildCondition(f metadata.Filter) (cond expression.ConditionBuilder, ok bool) {
	for i, c := range f {
		next := clauseCondition(c)
		if i == 0 {
			cond = next
			continue
		}
		cond = cond.And(next)
	}
	return cond, len(f) > 0
}

func clauseCondition(c metadata.Clause) expression.ConditionBuilder {
	name := expression.Name(c.Field)
	v := c.Value
	if t, isTime := v.(time.Time); isTime {
		v = t.UTC().Format(metadata.TimeLayout)
	}
	switch c.Op {
	case metadata.OpContains, metadata.OpSubstring:
		return name.Contains(fmt.Sprint(v))
	case metadata.OpAtLeast:
		return name.GreaterThanEqual(expression.Value(v))
	case metadata.OpAtMost:
		return name.LessThanEqual(expression.Value(v))
	default:
		return name.Equal(expression.Value(v))
	}
}
