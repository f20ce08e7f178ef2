// Package handlers exposes the catalog over HTTP.
package handlers

import (
	"net/http"

	"imagevault/internal/auth"
	"imagevault/internal/catalog"
)

// MaxConcurrentUploads limits the number of upload batches processed at once.
// Each batch holds its files in memory until the saga finishes.
const MaxConcurrentUploads = 10

// ServiceInfo is reported by the root and health routes.
type ServiceInfo struct {
	Name        string
	Version     string
	Environment string
}

type Options struct {
	Info           ServiceInfo
	MaxFiles       int
	MaxFileSize    int64
	MaxConcurrency int
}

type Handler struct {
	catalog *catalog.Service
	auth    *auth.Authenticator
	opts    Options

	// uploadGuard acts as a semaphore for upload batches.
	uploadGuard chan struct{}
}

func New(svc *catalog.Service, authn *auth.Authenticator, opts Options) *Handler {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = catalog.DefaultMaxFiles
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = catalog.DefaultMaxFileSize
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = MaxConcurrentUploads
	}
	return &Handler{
		catalog:     svc,
		auth:        authn,
		opts:        opts,
		uploadGuard: make(chan struct{}, opts.MaxConcurrency),
	}
}

// Register mounts every route on mux. metrics may be nil.
func (h *Handler) Register(mux *http.ServeMux, metrics http.Handler) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /health", h.Health)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	mux.HandleFunc("POST /api/v1/images", h.Upload)
	mux.HandleFunc("GET /api/v1/images", h.List)
	mux.HandleFunc("DELETE /api/v1/images", h.BulkDelete)
	mux.HandleFunc("GET /api/v1/images/{image_id}", h.Get)
	mux.HandleFunc("GET /api/v1/images/{image_id}/content", h.Content)
	mux.HandleFunc("DELETE /api/v1/images/{image_id}", h.Delete)

	mux.HandleFunc("GET /api/v1/stats", h.Stats)
}
