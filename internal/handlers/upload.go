package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"imagevault/internal/catalog"
	"imagevault/pkg/logger"
	"imagevault/pkg/utils"
)

const (
	// multipartMemory is held in RAM while parsing; larger parts spool to disk.
	multipartMemory = 32 << 20
	formOverhead    = 1 << 20
)

// Upload processes a batch of images via multipart/form-data. Files share the
// form metadata. Per-file failures are reported in the body with a 200.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	maxBody := int64(h.opts.MaxFiles)*(h.opts.MaxFileSize+1) + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteError(w, http.StatusRequestEntityTooLarge, utils.ErrRequestBodyTooLarge, "Request exceeds upload size limit.")
			return
		}
		if errors.Is(err, http.ErrNotMultipart) {
			utils.WriteError(w, http.StatusUnsupportedMediaType, utils.ErrRequestUnSupportedMedia, "Expected multipart/form-data body.")
			return
		}
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, "Malformed multipart body.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	isPublic := true
	if raw := r.FormValue("is_public"); strings.TrimSpace(raw) != "" {
		b := utils.ParseBool(raw)
		if b == nil {
			utils.WriteError(w, http.StatusBadRequest, utils.ErrValidationInvalidFormat, "is_public must be a boolean.")
			return
		}
		isPublic = *b
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) > h.opts.MaxFiles {
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, fmt.Sprintf("Maximum %d files allowed", h.opts.MaxFiles))
		return
	}

	files := make([]catalog.FileInput, 0, len(headers))
	for _, fh := range headers {
		data, err := h.readPart(fh)
		if err != nil {
			logger.LogError("Failed to read upload part %q: %v", fh.Filename, err)
			utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestBadRequest, "Could not read uploaded file.")
			return
		}
		files = append(files, catalog.FileInput{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	// Queue here rather than piling batches onto the stores.
	h.uploadGuard <- struct{}{}
	defer func() { <-h.uploadGuard }()

	res, err := h.catalog.Upload(r.Context(), catalog.UploadRequest{
		OwnerID:     r.FormValue("user_id"),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Tags:        utils.SplitCSV(r.FormValue("tags")),
		IsPublic:    isPublic,
		Files:       files,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	logger.LogInfo("Upload batch for %s: %s", r.FormValue("user_id"), res.Message)
	utils.WriteJSON(w, http.StatusOK, res)
}

// readPart reads at most one byte past the size limit so oversized files are
// still reported by the catalog without buffering them whole.
func (h *Handler) readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, h.opts.MaxFileSize+1))
}
