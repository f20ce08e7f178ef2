// Package objectstore stores image bytes under string keys.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotFound = errors.New("object not found")

// Store is the object store contract. Keys are opaque to the store.
type Store interface {
	// Put writes data under key and returns a locator such as s3://bucket/key.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Delete of an absent key succeeds.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}
