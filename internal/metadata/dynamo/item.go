package dynamo

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"imagevault/internal/metadata"
)

// item is the table layout. created_at is kept as a fixed-width string so
// range filters on it compare correctly.
type item struct {
	ImageID         string   `dynamodbav:"image_id"`
	UserID          string   `dynamodbav:"user_id"`
	S3Key           string   `dynamodbav:"s3_key"`
	S3URL           string   `dynamodbav:"s3_url"`
	Filename        string   `dynamodbav:"filename"`
	Title           string   `dynamodbav:"title,omitempty"`
	Description     string   `dynamodbav:"description,omitempty"`
	Category        string   `dynamodbav:"category,omitempty"`
	Tags            []string `dynamodbav:"tags"`
	IsPublic        bool     `dynamodbav:"is_public"`
	ContentType     string   `dynamodbav:"content_type"`
	FileSize        int64    `dynamodbav:"file_size"`
	Width           int      `dynamodbav:"width,omitempty"`
	Height          int      `dynamodbav:"height,omitempty"`
	UploadTimestamp string   `dynamodbav:"upload_timestamp,omitempty"`
	CreatedAt       string   `dynamodbav:"created_at"`
}

func fromRecord(r *metadata.Record) item {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return item{
		ImageID:         r.ImageID,
		UserID:          r.OwnerID,
		S3Key:           r.ObjectKey,
		S3URL:           r.ObjectURL,
		Filename:        r.Filename,
		Title:           r.Title,
		Description:     r.Description,
		Category:        r.Category,
		Tags:            tags,
		IsPublic:        r.IsPublic,
		ContentType:     r.ContentType,
		FileSize:        r.ByteSize,
		Width:           r.Width,
		Height:          r.Height,
		UploadTimestamp: r.UploadTimestamp,
		CreatedAt:       r.CreatedAt.UTC().Format(metadata.TimeLayout),
	}
}

func (it item) record() metadata.Record {
	created, _ := time.Parse(metadata.TimeLayout, it.CreatedAt)
	return metadata.Record{
		ImageID:         it.ImageID,
		OwnerID:         it.UserID,
		ObjectKey:       it.S3Key,
		ObjectURL:       it.S3URL,
		Filename:        it.Filename,
		Title:           it.Title,
		Description:     it.Description,
		Category:        it.Category,
		Tags:            it.Tags,
		IsPublic:        it.IsPublic,
		ContentType:     it.ContentType,
		ByteSize:        it.FileSize,
		Width:           it.Width,
		Height:          it.Height,
		UploadTimestamp: it.UploadTimestamp,
		CreatedAt:       created,
	}
}

func decodeItems(raw []map[string]types.AttributeValue) ([]metadata.Record, error) {
	var items []item
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, err
	}
	out := make([]metadata.Record, len(items))
	for i, it := range items {
		out[i] = it.record()
	}
	return out, nil
}

// encodeKey turns a LastEvaluatedKey into a page token. Table and index keys
// are all string attributes.
func encodeKey(key map[string]types.AttributeValue) string {
	if len(key) == 0 {
		return ""
	}
	var m map[string]string
	if err := attributevalue.UnmarshalMap(key, &m); err != nil {
		return ""
	}
	return metadata.EncodeToken(m)
}

// decodeKey returns nil unless the token holds exactly the given key
// attributes, each non-empty. DynamoDB rejects any other start key.
func decodeKey(token string, attrs ...string) map[string]types.AttributeValue {
	m := metadata.DecodeToken(token)
	if len(m) != len(attrs) {
		return nil
	}
	for _, a := range attrs {
		if m[a] == "" {
			return nil
		}
	}
	key, err := attributevalue.MarshalMap(m)
	if err != nil {
		return nil
	}
	return key
}
