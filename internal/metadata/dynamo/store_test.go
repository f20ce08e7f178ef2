package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagevault/internal/metadata"
)

type fakeClient struct {
	items    map[string]map[string]types.AttributeValue
	lastScan *dynamodb.ScanInput
	lastQry  *dynamodb.QueryInput
	scanLEK  map[string]types.AttributeValue
	table    *types.TableDescription
	err      error
}

func newFake() *fakeClient {
	return &fakeClient{items: map[string]map[string]types.AttributeValue{}}
}

func (f *fakeClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	id := in.Item[metadata.FieldImageID].(*types.AttributeValueMemberS).Value
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	id := in.Key[metadata.FieldImageID].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[id]}, nil
}

func (f *fakeClient) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	id := in.Key[metadata.FieldImageID].(*types.AttributeValueMemberS).Value
	delete(f.items, id)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQry = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.QueryOutput{}, nil
}

func (f *fakeClient) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.lastScan = in
	var out []map[string]types.AttributeValue
	for _, it := range f.items {
		out = append(out, it)
	}
	return &dynamodb.ScanOutput{Items: out, LastEvaluatedKey: f.scanLEK}, nil
}

func (f *fakeClient) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.DescribeTableOutput{Table: f.table}, nil
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	fc := newFake()
	s := New(fc, "ImageMetadata")

	created := time.Date(2025, 5, 4, 10, 11, 12, 345678000, time.UTC)
	rec := &metadata.Record{
		ImageID:   "img-1",
		OwnerID:   "alice",
		ObjectKey: "images/x.png",
		ObjectURL: "s3://bucket/images/x.png",
		Filename:  "x.png",
		IsPublic:  true,
		ByteSize:  42,
		CreatedAt: created,
	}
	require.NoError(t, s.Put(ctx, rec))

	stored := fc.items["img-1"]
	assert.Equal(t, "2025-05-04T10:11:12.345678Z", stored["created_at"].(*types.AttributeValueMemberS).Value)
	assert.IsType(t, &types.AttributeValueMemberL{}, stored["tags"])

	got, err := s.Get(ctx, "img-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, int64(42), got.ByteSize)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.Empty(t, got.Tags)

	require.NoError(t, s.Delete(ctx, "img-1"))
	_, err = s.Get(ctx, "img-1")
	assert.ErrorIs(t, err, metadata.ErrNotFound)

	_, err = s.Get(ctx, "")
	assert.ErrorIs(t, err, metadata.ErrNotFound)
}

func TestGetWrapsClientError(t *testing.T) {
	fc := newFake()
	fc.err = errors.New("throttled")
	_, err := New(fc, "t").Get(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, metadata.ErrNotFound)
}

func TestScanBuildsFilterAndToken(t *testing.T) {
	ctx := context.Background()
	fc := newFake()
	fc.scanLEK = map[string]types.AttributeValue{
		metadata.FieldImageID: &types.AttributeValueMemberS{Value: "img-9"},
	}
	s := New(fc, "t")

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	filter := metadata.Filter{
		metadata.Eq(metadata.FieldCategory, "post"),
		metadata.Eq(metadata.FieldIsPublic, true),
		metadata.AtLeast(metadata.FieldCreatedAt, from),
		metadata.Contains(metadata.FieldTags, "sunset"),
	}
	page, err := s.Scan(ctx, filter, 25, "")
	require.NoError(t, err)

	in := fc.lastScan
	require.NotNil(t, in.FilterExpression)
	assert.Equal(t, int32(25), aws.ToInt32(in.Limit))
	assert.Nil(t, in.ExclusiveStartKey)

	var names []string
	for _, n := range in.ExpressionAttributeNames {
		names = append(names, n)
	}
	assert.ElementsMatch(t, []string{"category", "is_public", "created_at", "tags"}, names)

	var fromValue string
	for _, v := range in.ExpressionAttributeValues {
		if sv, ok := v.(*types.AttributeValueMemberS); ok && sv.Value == "2025-01-01T00:00:00.000000Z" {
			fromValue = sv.Value
		}
	}
	assert.NotEmpty(t, fromValue)

	require.NotEmpty(t, page.NextToken)
	assert.Equal(t, map[string]string{"image_id": "img-9"}, metadata.DecodeToken(page.NextToken))

	_, err = s.Scan(ctx, nil, 10, page.NextToken)
	require.NoError(t, err)
	assert.Nil(t, fc.lastScan.FilterExpression)
	var start map[string]string
	require.NoError(t, attributevalue.UnmarshalMap(fc.lastScan.ExclusiveStartKey, &start))
	assert.Equal(t, "img-9", start["image_id"])
}

func TestScanIgnoresMalformedToken(t *testing.T) {
	fc := newFake()
	_, err := New(fc, "t").Scan(context.Background(), nil, 10, "!!garbage")
	require.NoError(t, err)
	assert.Nil(t, fc.lastScan.ExclusiveStartKey)
}

func TestWrongKeyTokenRestartsFromBeginning(t *testing.T) {
	ctx := context.Background()
	fc := newFake()
	s := New(fc, "t")

	foreign := metadata.EncodeToken(map[string]string{"foo": "bar"})
	_, err := s.Scan(ctx, nil, 10, foreign)
	require.NoError(t, err)
	assert.Nil(t, fc.lastScan.ExclusiveStartKey)

	_, err = s.Query(ctx, "user_id-index", "alice", nil, 10, foreign)
	require.NoError(t, err)
	assert.Nil(t, fc.lastQry.ExclusiveStartKey)

	// Index keys are missing from a scan-shaped token
	scanToken := metadata.EncodeToken(map[string]string{"image_id": "img-1"})
	_, err = s.Query(ctx, "user_id-index", "alice", nil, 10, scanToken)
	require.NoError(t, err)
	assert.Nil(t, fc.lastQry.ExclusiveStartKey)

	// Extra attributes are rejected too
	_, err = s.Scan(ctx, nil, 10, metadata.EncodeToken(map[string]string{"image_id": "img-1", "foo": "bar"}))
	require.NoError(t, err)
	assert.Nil(t, fc.lastScan.ExclusiveStartKey)

	queryToken := metadata.EncodeToken(map[string]string{"image_id": "img-1", "user_id": "alice"})
	_, err = s.Query(ctx, "user_id-index", "alice", nil, 10, queryToken)
	require.NoError(t, err)
	var start map[string]string
	require.NoError(t, attributevalue.UnmarshalMap(fc.lastQry.ExclusiveStartKey, &start))
	assert.Equal(t, map[string]string{"image_id": "img-1", "user_id": "alice"}, start)
}

func TestQueryUsesIndexAndKeyCondition(t *testing.T) {
	fc := newFake()
	s := New(fc, "t")

	_, err := s.Query(context.Background(), "user_id-index", "alice", metadata.Filter{metadata.Substring(metadata.FieldFilename, "cat")}, 5, "")
	require.NoError(t, err)

	in := fc.lastQry
	assert.Equal(t, "user_id-index", aws.ToString(in.IndexName))
	require.NotNil(t, in.KeyConditionExpression)
	require.NotNil(t, in.FilterExpression)
	assert.Contains(t, *in.FilterExpression, "contains")

	fc.err = errors.New("index missing")
	_, err = s.Query(context.Background(), "user_id-index", "alice", nil, 5, "")
	assert.Error(t, err)
}

func TestDescribeIndexes(t *testing.T) {
	fc := newFake()
	fc.table = &types.TableDescription{
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndexDescription{
			{
				IndexName: aws.String("CategoryIndex"),
				KeySchema: []types.KeySchemaElement{{AttributeName: aws.String("category"), KeyType: types.KeyTypeHash}},
			},
			{
				IndexName: aws.String("UserIdIndex"),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("created_at"), KeyType: types.KeyTypeRange},
					{AttributeName: aws.String("user_id"), KeyType: types.KeyTypeHash},
				},
			},
		},
	}
	infos, err := New(fc, "t").DescribeIndexes(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)

	name, ok := metadata.OwnerIndex(infos)
	assert.True(t, ok)
	assert.Equal(t, "UserIdIndex", name)
}
