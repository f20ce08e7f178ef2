// Package catalog binds the object store and the metadata store: uploads
// with compensation, filtered listing, lookups and deletes.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"imagevault/internal/metadata"
	"imagevault/internal/metrics"
	"imagevault/internal/objectstore"
	"imagevault/pkg/logger"
)

const (
	DefaultMaxFiles    = 10
	DefaultMaxFileSize = 10 * 1024 * 1024
	DefaultPresignTTL  = time.Hour
)

// URLCache caches presigned URLs by object key.
type URLCache interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

type Options struct {
	MaxFiles          int
	MaxFileSize       int64
	AllowedExtensions []string
	PresignTTL        time.Duration
}

func (o *Options) setDefaults() {
	if o.MaxFiles <= 0 {
		o.MaxFiles = DefaultMaxFiles
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.PresignTTL <= 0 {
		o.PresignTTL = DefaultPresignTTL
	}
}

type Service struct {
	objects objectstore.Store
	meta    metadata.Store
	urls    URLCache
	metrics *metrics.Metrics
	opts    Options
	lister  lister

	allowed map[string]bool
	now     func() time.Time
	newID   func() string
}

// New builds the service and picks the listing strategy from the indexes the
// metadata store reports. urls and m may be nil.
func New(ctx context.Context, objects objectstore.Store, meta metadata.Store, urls URLCache, m *metrics.Metrics, opts Options) *Service {
	opts.setDefaults()
	s := &Service{
		objects: objects,
		meta:    meta,
		urls:    urls,
		metrics: m,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	if len(opts.AllowedExtensions) > 0 {
		s.allowed = make(map[string]bool, len(opts.AllowedExtensions))
		for _, ext := range opts.AllowedExtensions {
			s.allowed[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))] = true
		}
	}
	s.lister = detectLister(ctx, meta, m)
	return s
}

// Strategy names the listing strategy chosen at construction.
func (s *Service) Strategy() string {
	return s.lister.name()
}

// Ping reports the reachability of both stores.
func (s *Service) Ping(ctx context.Context) (objectErr, metadataErr error) {
	return s.objects.Ping(ctx), s.meta.Ping(ctx)
}

func detectLister(ctx context.Context, meta metadata.Store, m *metrics.Metrics) lister {
	scan := &scanLister{store: meta}

	indexes, err := meta.DescribeIndexes(ctx)
	if err != nil {
		logger.LogWarn("Could not describe metadata indexes, listing will scan: %v", err)
		return scan
	}
	name, ok := metadata.OwnerIndex(indexes)
	if !ok {
		logger.LogInfo("No user_id index detected, listing will scan")
		return scan
	}
	logger.LogInfo("Detected user_id index: %s", name)
	return &indexedLister{store: meta, index: name, fallback: scan, metrics: m}
}
