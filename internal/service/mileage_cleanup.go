package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/mileage-api/pkg/jobs"
)

// BlobCleanupJob is the job type carrying stored photo paths to delete.
const BlobCleanupJob = "mileage.blob.delete"

type blobCleanupQueue interface {
	Enqueue(job jobs.Job) error
}

type blobDeleter interface {
	Delete(filename string) error
}

// UseCleanupQueue routes photo deletions through q instead of deleting inline.
func (s *MileageService) UseCleanupQueue(q blobCleanupQueue) {
	s.cleanup = q
}

// removeBlobs deletes paths, through the cleanup queue when one is attached.
func (s *MileageService) removeBlobs(paths []string) {
	if len(paths) == 0 {
		return
	}
	if s.cleanup != nil {
		job := jobs.Job{ID: uuid.NewString(), Type: BlobCleanupJob, Payload: append([]string(nil), paths...)}
		err := s.cleanup.Enqueue(job)
		if err == nil {
			return
		}
		s.logger.Warn("cleanup queue rejected job, deleting inline", zap.Error(err))
	}
	for _, path := range paths {
		if err := s.storage.Delete(path); err != nil {
			s.logger.Warn("failed to remove mileage blob", zap.String("path", path), zap.Error(err))
		}
	}
}

// BlobCleanupHandler deletes the paths carried by a BlobCleanupJob.
func BlobCleanupHandler(storage blobDeleter, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, job jobs.Job) error {
		paths, ok := job.Payload.([]string)
		if !ok {
			logger.Error("unexpected cleanup payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
			return nil
		}
		var failed []string
		for _, path := range paths {
			if err := storage.Delete(path); err != nil {
				failed = append(failed, path)
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("delete blobs %s", strings.Join(failed, ", "))
		}
		logger.Debug("mileage blobs removed", zap.Int("count", len(paths)))
		return nil
	}
}
