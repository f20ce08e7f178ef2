package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"imagevault/internal/catalog"
	"imagevault/pkg/logger"
	"imagevault/pkg/utils"
)

const maxDeleteBody = 1 << 20

type listResponse struct {
	Images           []catalog.Image `json:"images"`
	Count            int             `json:"count"`
	LastEvaluatedKey *string         `json:"last_evaluated_key"`
}

type deleteResponse struct {
	Message string `json:"message"`
	ImageID string `json:"image_id"`
}

type bulkDeleteRequest struct {
	// UserID is accepted for compatibility; ownership comes from the token.
	UserID   string   `json:"user_id,omitempty"`
	ImageIDs []string `json:"image_ids"`
}

// List returns one page of images.
// GET /api/v1/images?user_id=&category=&is_public=&tags=a,b&filename_contains=&start_date=&end_date=&limit=&last_evaluated_key=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lq := catalog.ListQuery{
		OwnerID:          strings.TrimSpace(q.Get("user_id")),
		Category:         strings.TrimSpace(q.Get("category")),
		Tags:             utils.SplitCSV(q.Get("tags")),
		FilenameContains: q.Get("filename_contains"),
		Limit:            utils.ParseInt(q.Get("limit"), catalog.DefaultLimit, 1, catalog.MaxLimit),
		Token:            q.Get("last_evaluated_key"),
	}

	if raw := q.Get("is_public"); strings.TrimSpace(raw) != "" {
		b := utils.ParseBool(raw)
		if b == nil {
			utils.WriteError(w, http.StatusBadRequest, utils.ErrValidationInvalidFormat, "is_public must be a boolean.")
			return
		}
		lq.IsPublic = b
	}

	var err error
	if lq.CreatedFrom, err = parseDate(q.Get("start_date"), false); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ErrValidationInvalidFormat, "start_date must be RFC3339 or YYYY-MM-DD.")
		return
	}
	if lq.CreatedTo, err = parseDate(q.Get("end_date"), true); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ErrValidationInvalidFormat, "end_date must be RFC3339 or YYYY-MM-DD.")
		return
	}

	res, err := h.catalog.List(r.Context(), lq)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := listResponse{Images: res.Items, Count: len(res.Items)}
	if res.NextToken != "" {
		out.LastEvaluatedKey = &res.NextToken
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

// parseDate accepts RFC3339 or a plain date. A plain end date covers the
// whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return &t, nil
}

// Get returns one record with a presigned URL.
// GET /api/v1/images/{image_id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	img, err := h.catalog.Get(r.Context(), r.PathValue("image_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, img)
}

// Content streams the stored bytes.
// GET /api/v1/images/{image_id}/content
func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	body, rec, err := h.catalog.OpenContent(r.Context(), r.PathValue("image_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer body.Close()

	contentType := rec.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if rec.ByteSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(rec.ByteSize, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		logger.LogWarn("Streaming %s interrupted: %v", rec.ImageID, err)
	}
}

// Delete removes one image owned by the caller.
// DELETE /api/v1/images/{image_id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	who, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	id := r.PathValue("image_id")
	if err := h.catalog.Delete(r.Context(), who, id); err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, deleteResponse{
		Message: "Image deleted successfully",
		ImageID: catalog.NormalizeID(id),
	})
}

// BulkDelete removes each listed image independently.
// DELETE /api/v1/images  {"image_ids": ["..."]}
func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	who, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDeleteBody)
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteError(w, http.StatusRequestEntityTooLarge, utils.ErrRequestBodyTooLarge, "Request body too large.")
			return
		}
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestBadRequest, "Invalid JSON body.")
		return
	}
	if req.ImageIDs == nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, "image_ids is required.")
		return
	}

	utils.WriteJSON(w, http.StatusOK, h.catalog.BulkDelete(r.Context(), who, req.ImageIDs))
}
