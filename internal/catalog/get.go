package catalog

import (
	"context"
	"errors"
	"io"
	"strings"

	"imagevault/internal/metadata"
	"imagevault/internal/objectstore"
)

// NormalizeID accepts ids wrapped in braces or prefixed with "image_id=",
// as some templated clients send them.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= 2 && strings.HasPrefix(id, "{") && strings.HasSuffix(id, "}") {
		id = id[1 : len(id)-1]
	}
	return strings.TrimPrefix(id, "image_id=")
}

func (s *Service) lookup(ctx context.Context, id string) (*metadata.Record, error) {
	id = NormalizeID(id)
	if id == "" {
		return nil, notFound("Image not found")
	}
	rec, err := s.meta.Get(ctx, id)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, notFound("Image not found")
	}
	if err != nil {
		return nil, dependency("metadata store get", err)
	}
	return rec, nil
}

// Get returns the record with a presigned URL.
func (s *Service) Get(ctx context.Context, id string) (*Image, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	url, err := s.presign(ctx, rec.ObjectKey)
	if err != nil {
		s.metrics.PresignFailure()
		return nil, dependency("presign", err)
	}
	return &Image{Record: *rec, PresignedURL: url}, nil
}

// OpenContent streams the object bytes. The caller closes the reader.
func (s *Service) OpenContent(ctx context.Context, id string) (io.ReadCloser, *metadata.Record, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.objects.Get(ctx, rec.ObjectKey)
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, nil, notFound("Image not found in object store")
	}
	if err != nil {
		return nil, nil, dependency("object store get", err)
	}
	return body, rec, nil
}
