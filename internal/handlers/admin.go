package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"imagevault/internal/appinfo"
	"imagevault/pkg/utils"
)

const healthTimeout = 5 * time.Second

type infoResponse struct {
	Service     string `json:"service"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
}

type healthResponse struct {
	Status      string            `json:"status"`
	Environment string            `json:"environment"`
	Service     string            `json:"service"`
	Timestamp   string            `json:"timestamp"`
	Services    map[string]string `json:"services"`
}

type statsResponse struct {
	appinfo.Snapshot
	TotalSize     string `json:"total_size"`
	Strategy      string `json:"list_strategy"`
	RamUsage      uint64 `json:"ram_usage"`
	NumGoroutines int    `json:"num_goroutines"`
	MaxFileSize   string `json:"max_file_size"`
}

// Root reports the service identity.
// GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, infoResponse{
		Service:     h.opts.Info.Name,
		Environment: h.opts.Info.Environment,
		Version:     h.opts.Info.Version,
	})
}

// Health pings both stores. A failing store degrades the status but the
// route still answers 200.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	objErr, metaErr := h.catalog.Ping(ctx)
	resp := healthResponse{
		Status:      "healthy",
		Environment: h.opts.Info.Environment,
		Service:     h.opts.Info.Name,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Services: map[string]string{
			"object_store":   "ok",
			"metadata_store": "ok",
		},
	}
	if objErr != nil {
		resp.Status = "degraded"
		resp.Services["object_store"] = "unavailable"
	}
	if metaErr != nil {
		resp.Status = "degraded"
		resp.Services["metadata_store"] = "unavailable"
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

// Stats returns process counters and memory metrics. Admin token only.
// GET /api/v1/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	who, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if !who.Admin {
		utils.WriteError(w, http.StatusForbidden, utils.ErrRequestForbidden, "Admin token required.")
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	snap := appinfo.Current()
	utils.WriteJSON(w, http.StatusOK, statsResponse{
		Snapshot:      snap,
		TotalSize:     utils.FormatBytes(snap.TotalBytes),
		Strategy:      h.catalog.Strategy(),
		RamUsage:      m.Alloc,
		NumGoroutines: runtime.NumGoroutine(),
		MaxFileSize:   utils.FormatBytes(h.opts.MaxFileSize),
	})
}
