package catalog

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"imagevault/internal/appinfo"
	"imagevault/internal/metadata"
	"imagevault/internal/metrics"
	"imagevault/pkg/logger"
	"imagevault/pkg/utils"
)

// Per-file failure messages.
const (
	msgNotImage       = "File must be an image"
	msgBadFilename    = "Invalid filename"
	msgBadExtension   = "File extension not allowed"
	msgEmptyFile      = "Empty file"
	msgFileTooLarge   = "File exceeds maximum allowed size"
	batchTimestampFmt = "20060102_150405"
)

type FileInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadRequest is one batch. The form fields apply to every file.
type UploadRequest struct {
	OwnerID     string
	Title       string
	Description string
	Category    string
	Tags        []string
	IsPublic    bool
	Files       []FileInput
}

// Outcome is the result for one file: Error is empty on success.
type Outcome struct {
	ImageID     string `json:"image_id,omitempty"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	ByteSize    int64  `json:"file_size,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (o Outcome) OK() bool { return o.Error == "" }

type UploadResult struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Outcomes []Outcome `json:"data"`
}

// Upload stores each file as an object and then a record. When the record
// write fails, the object is deleted again. Files are processed in order and
// independently; only the batch checks fail the whole call.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	owner := strings.TrimSpace(req.OwnerID)
	if owner == "" {
		return nil, validation("user_id is required")
	}
	if len(req.Files) == 0 {
		return nil, validation("At least one file is required")
	}
	if len(req.Files) > s.opts.MaxFiles {
		return nil, validation(fmt.Sprintf("Maximum %d files allowed", s.opts.MaxFiles))
	}

	logger.LogInfo("Upload request: %d file(s) for user: %s", len(req.Files), owner)

	tags := cleanTags(req.Tags)
	batchTS := s.now().Format(batchTimestampFmt)

	res := &UploadResult{Outcomes: make([]Outcome, 0, len(req.Files))}
	succeeded := 0
	for _, f := range req.Files {
		out := s.uploadOne(ctx, owner, &req, tags, batchTS, f)
		if out.OK() {
			succeeded++
			s.metrics.Upload(metrics.ResultSuccess, out.ByteSize)
		} else {
			logger.LogWarn("Upload failed for file %q: %s", f.Filename, out.Error)
			s.metrics.Upload(metrics.ResultFailed, 0)
		}
		res.Outcomes = append(res.Outcomes, out)
	}

	res.Success = succeeded > 0
	res.Message = fmt.Sprintf("%d files uploaded, %d failures", succeeded, len(req.Files)-succeeded)
	return res, nil
}

func (s *Service) uploadOne(ctx context.Context, owner string, req *UploadRequest, tags []string, batchTS string, f FileInput) Outcome {
	fail := func(msg string) Outcome {
		return Outcome{Filename: f.Filename, Error: msg}
	}

	if !strings.HasPrefix(f.ContentType, "image/") {
		return fail(msgNotImage)
	}
	name := utils.SanitizeFilename(f.Filename)
	if name == "" {
		return fail(msgBadFilename)
	}
	if ext := utils.FileExtension(name); ext != "" && s.allowed != nil && !s.allowed[ext] {
		return fail(msgBadExtension)
	}
	size := int64(len(f.Data))
	if size == 0 {
		return fail(msgEmptyFile)
	}
	if size > s.opts.MaxFileSize {
		return fail(msgFileTooLarge)
	}

	id := s.newID()
	key := fmt.Sprintf("images/%s_%s_%s", batchTS, id, name)

	locator, err := s.objects.Put(ctx, key, f.Data, f.ContentType)
	if err != nil {
		return fail(dependency("object store put", err).Error())
	}

	rec := &metadata.Record{
		ImageID:         id,
		OwnerID:         owner,
		ObjectKey:       key,
		ObjectURL:       locator,
		Filename:        name,
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		Tags:            tags,
		IsPublic:        req.IsPublic,
		ContentType:     f.ContentType,
		ByteSize:        size,
		UploadTimestamp: batchTS,
		CreatedAt:       s.now(),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data)); err == nil {
		rec.Width, rec.Height = cfg.Width, cfg.Height
	}

	if err := s.meta.Put(ctx, rec); err != nil {
		s.compensate(ctx, key)
		return fail(dependency("metadata store put", err).Error())
	}

	appinfo.AddImage(size)
	logger.LogDebug("Stored image %s at %s", id, key)
	return Outcome{ImageID: id, Filename: name, ContentType: f.ContentType, ByteSize: size}
}

// compensate removes an object whose record could not be written. A failure
// here leaves an orphan object; it is logged and counted, never retried.
func (s *Service) compensate(ctx context.Context, key string) {
	if err := s.objects.Delete(ctx, key); err != nil {
		logger.LogError("Failed to delete object after metadata failure, orphaned: %s: %v", key, err)
		s.metrics.Compensation(metrics.ResultFailed)
		return
	}
	s.metrics.Compensation(metrics.ResultSuccess)
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
