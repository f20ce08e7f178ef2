// Package metadata defines the image metadata record, the filter clauses the
// catalog composes for listing, and the contract every metadata store
// implements.
package metadata

import (
	"context"
	"errors"
	"time"
)

// Field names shared by every backend. They match the attribute names of the
// DynamoDB table and the columns of the SQLite schema.
const (
	FieldImageID   = "image_id"
	FieldOwnerID   = "user_id"
	FieldCategory  = "category"
	FieldIsPublic  = "is_public"
	FieldTags      = "tags"
	FieldFilename  = "filename"
	FieldCreatedAt = "created_at"
)

// TimeLayout is a fixed-width UTC layout, so stored timestamps compare
// lexicographically in stores that keep them as strings.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

var ErrNotFound = errors.New("image record not found")

// Record is the metadata stored for one image.
type Record struct {
	ImageID         string    `json:"image_id"`
	OwnerID         string    `json:"user_id"`
	ObjectKey       string    `json:"s3_key"`
	ObjectURL       string    `json:"s3_url"`
	Filename        string    `json:"filename"`
	Title           string    `json:"title,omitempty"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category,omitempty"`
	Tags            []string  `json:"tags"`
	IsPublic        bool      `json:"is_public"`
	ContentType     string    `json:"content_type"`
	ByteSize        int64     `json:"file_size"`
	Width           int       `json:"width,omitempty"`
	Height          int       `json:"height,omitempty"`
	UploadTimestamp string    `json:"upload_timestamp,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasTag reports whether the record carries tag t.
func (r *Record) HasTag(t string) bool {
	for _, tag := range r.Tags {
		if tag == t {
			return true
		}
	}
	return false
}

// Page is one page of a query or scan. An empty NextToken means the
// result set is exhausted.
type Page struct {
	Items     []Record
	NextToken string
}

// IndexInfo describes a secondary index of a store.
type IndexInfo struct {
	Name         string
	PartitionKey string
}

// Store is the metadata store contract.
//
// Tokens passed to Query and Scan are whatever a previous call returned as
// NextToken. A token the store cannot decode is treated as absent.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	// Get returns ErrNotFound when no record has the id.
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, index, ownerID string, filter Filter, limit int, token string) (Page, error)
	Scan(ctx context.Context, filter Filter, limit int, token string) (Page, error)
	DescribeIndexes(ctx context.Context) ([]IndexInfo, error)
	Ping(ctx context.Context) error
}

// OwnerIndex returns the first index partitioned by owner id.
func OwnerIndex(indexes []IndexInfo) (string, bool) {
	for _, idx := range indexes {
		if idx.PartitionKey == FieldOwnerID {
			return idx.Name, true
		}
	}
	return "", false
}
