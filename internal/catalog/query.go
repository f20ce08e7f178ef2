package catalog

import (
	"context"
	"time"

	"imagevault/internal/metadata"
	"imagevault/internal/metrics"
	"imagevault/pkg/logger"
)

const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

const (
	StrategyQuery = "query"
	StrategyScan  = "scan"
)

// ListQuery holds the listing criteria. Zero values mean "no constraint".
type ListQuery struct {
	OwnerID          string
	Category         string
	IsPublic         *bool
	Tags             []string
	FilenameContains string
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
	Limit            int
	Token            string
}

// Image is a metadata record with a presigned URL attached when one could
// be generated.
type Image struct {
	metadata.Record
	PresignedURL string `json:"presigned_url,omitempty"`
}

type ListResult struct {
	Items     []Image
	NextToken string
}

// ClampLimit applies the default for non-positive values and caps at MaxLimit.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}

// FilterFor builds the clauses for q, excluding the owner constraint, which
// the strategy applies.
func FilterFor(q ListQuery) metadata.Filter {
	var f metadata.Filter
	if q.Category != "" {
		f = append(f, metadata.Eq(metadata.FieldCategory, q.Category))
	}
	if q.IsPublic != nil {
		f = append(f, metadata.Eq(metadata.FieldIsPublic, *q.IsPublic))
	}
	if q.FilenameContains != "" {
		f = append(f, metadata.Substring(metadata.FieldFilename, q.FilenameContains))
	}
	if q.CreatedFrom != nil {
		f = append(f, metadata.AtLeast(metadata.FieldCreatedAt, q.CreatedFrom.UTC()))
	}
	if q.CreatedTo != nil {
		f = append(f, metadata.AtMost(metadata.FieldCreatedAt, q.CreatedTo.UTC()))
	}
	for _, t := range q.Tags {
		if t != "" {
			f = append(f, metadata.Contains(metadata.FieldTags, t))
		}
	}
	return f
}

// List returns one page of records matching q. A page may hold fewer than
// Limit items even when NextToken is set.
func (s *Service) List(ctx context.Context, q ListQuery) (ListResult, error) {
	limit := ClampLimit(q.Limit)
	filter := FilterFor(q)
	logger.LogDebug("List images owner=%q filter=[%s] limit=%d", q.OwnerID, filter, limit)

	page, strategy, err := s.lister.list(ctx, q.OwnerID, filter, limit, q.Token)
	if err != nil {
		return ListResult{}, dependency("list images", err)
	}
	s.metrics.List(strategy)

	res := ListResult{Items: make([]Image, 0, len(page.Items)), NextToken: page.NextToken}
	for _, rec := range page.Items {
		img := Image{Record: rec}
		url, err := s.presign(ctx, rec.ObjectKey)
		if err != nil {
			logger.LogDebug("Could not generate presigned URL for %s: %v", rec.ImageID, err)
			s.metrics.PresignFailure()
		} else {
			img.PresignedURL = url
		}
		res.Items = append(res.Items, img)
	}
	return res, nil
}

func (s *Service) presign(ctx context.Context, key string) (string, error) {
	if s.urls != nil {
		if url, ok := s.urls.Get("url:" + key); ok {
			return url, nil
		}
	}
	url, err := s.objects.Presign(ctx, key, s.opts.PresignTTL)
	if err != nil {
		return "", err
	}
	if s.urls != nil {
		s.urls.Set("url:"+key, url)
	}
	return url, nil
}

type lister interface {
	list(ctx context.Context, owner string, filter metadata.Filter, limit int, token string) (metadata.Page, string, error)
	name() string
}

type scanLister struct {
	store metadata.Store
}

func (l *scanLister) name() string { return StrategyScan }

func (l *scanLister) list(ctx context.Context, owner string, filter metadata.Filter, limit int, token string) (metadata.Page, string, error) {
	if owner != "" {
		filter = filter.With(metadata.Eq(metadata.FieldOwnerID, owner))
	}
	page, err := l.store.Scan(ctx, filter, limit, token)
	return page, StrategyScan, err
}

// indexedLister queries the owner index when an owner is given and falls
// back to a scan when the query fails.
type indexedLister struct {
	store    metadata.Store
	index    string
	fallback *scanLister
	metrics  *metrics.Metrics
}

func (l *indexedLister) name() string { return StrategyQuery }

func (l *indexedLister) list(ctx context.Context, owner string, filter metadata.Filter, limit int, token string) (metadata.Page, string, error) {
	if owner == "" {
		return l.fallback.list(ctx, owner, filter, limit, token)
	}
	page, err := l.store.Query(ctx, l.index, owner, filter, limit, token)
	if err == nil {
		return page, StrategyQuery, nil
	}
	logger.LogWarn("Query on index %q failed: %v. Falling back to scan.", l.index, err)
	l.metrics.IndexFallback()
	return l.fallback.list(ctx, owner, filter, limit, token)
}
