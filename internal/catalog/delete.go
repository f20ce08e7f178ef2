package catalog

import (
	"context"
	"errors"

	"imagevault/internal/appinfo"
	"imagevault/internal/auth"
	"imagevault/internal/metrics"
	"imagevault/pkg/logger"
)

// Bulk delete failure reasons.
const (
	ReasonNotFound  = "not_found"
	ReasonForbidden = "forbidden"
)

type DeleteFailure struct {
	ImageID string `json:"image_id"`
	Reason  string `json:"reason"`
}

type BulkDeleteResult struct {
	Deleted []string        `json:"deleted"`
	Failed  []DeleteFailure `json:"failed"`
}

// Delete removes one image the identity may modify. The object must still
// exist in the object store.
func (s *Service) Delete(ctx context.Context, who auth.Identity, id string) error {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	if !who.CanModify(rec.OwnerID) {
		logger.LogWarn("Delete of %s by %s refused: owned by %s", rec.ImageID, who, rec.OwnerID)
		return forbidden("Not allowed to delete this image")
	}

	exists, err := s.objects.Exists(ctx, rec.ObjectKey)
	if err != nil {
		return dependency("object store head", err)
	}
	if !exists {
		return notFound("Image not found in object store")
	}
	if err := s.objects.Delete(ctx, rec.ObjectKey); err != nil {
		s.metrics.Delete(metrics.ResultFailed)
		return dependency("object store delete", err)
	}
	if err := s.meta.Delete(ctx, rec.ImageID); err != nil {
		s.metrics.Delete(metrics.ResultFailed)
		return dependency("metadata store delete", err)
	}

	s.metrics.Delete(metrics.ResultSuccess)
	appinfo.RemoveImage(rec.ByteSize)
	logger.LogInfo("Deleted image %s", rec.ImageID)
	return nil
}

// BulkDelete handles each id independently and never aborts the batch.
// Object removal is best effort; the record delete decides the outcome.
func (s *Service) BulkDelete(ctx context.Context, who auth.Identity, ids []string) BulkDeleteResult {
	logger.LogInfo("Bulk delete request by %s for %d images", who, len(ids))

	res := BulkDeleteResult{Deleted: []string{}, Failed: []DeleteFailure{}}
	for _, id := range ids {
		if reason := s.deleteOne(ctx, who, id); reason != "" {
			res.Failed = append(res.Failed, DeleteFailure{ImageID: id, Reason: reason})
			continue
		}
		res.Deleted = append(res.Deleted, id)
	}
	return res
}

// deleteOne returns the failure reason, or "" on success.
func (s *Service) deleteOne(ctx context.Context, who auth.Identity, id string) string {
	rec, err := s.lookup(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ReasonNotFound
	}
	if err != nil {
		return err.Error()
	}
	if !who.CanModify(rec.OwnerID) {
		return ReasonForbidden
	}

	if exists, err := s.objects.Exists(ctx, rec.ObjectKey); err != nil {
		logger.LogWarn("Failed to check object %s: %v", rec.ObjectKey, err)
	} else if exists {
		if err := s.objects.Delete(ctx, rec.ObjectKey); err != nil {
			logger.LogWarn("Failed to delete object %s: %v", rec.ObjectKey, err)
		}
	}

	if err := s.meta.Delete(ctx, rec.ImageID); err != nil {
		s.metrics.Delete(metrics.ResultFailed)
		return dependency("metadata store delete", err).Error()
	}
	s.metrics.Delete(metrics.ResultSuccess)
	appinfo.RemoveImage(rec.ByteSize)
	return ""
}
