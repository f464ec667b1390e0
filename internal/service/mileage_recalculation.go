package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mileage-api/internal/dto"
	"github.com/noah-isme/mileage-api/internal/models"
	appErrors "github.com/noah-isme/mileage-api/pkg/errors"
)

const defaultRecalculationBatch = 500

// Recalculate reruns the status engine over every record with both readings
// and persists the ones whose distance or status drifted. Overridden statuses
// are kept. Failures on single records are counted and the run continues.
func (s *MileageService) Recalculate(ctx context.Context, batchSize int) (*dto.RecalculationReport, error) {
	if batchSize <= 0 {
		batchSize = defaultRecalculationBatch
	}
	started := s.now()
	report := &dto.RecalculationReport{Deltas: []dto.RecalculationDelta{}}

	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		batch, err := s.records.ListCompleted(ctx, afterID, batchSize)
		if err != nil {
			return report, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mileage records")
		}
		for i := range batch {
			record := &batch[i]
			report.Scanned++
			delta, changed := s.recompute(record)
			if !changed {
				continue
			}
			if err := s.records.UpdateDerived(ctx, record.ID, delta.NewDistance, delta.NewStatus); err != nil {
				report.Failed++
				s.logger.Error("recalculation failed", zap.String("record_id", record.ID), zap.Error(err))
				continue
			}
			report.Updated++
			report.Deltas = append(report.Deltas, delta)
			s.logger.Info("mileage recalculated",
				zap.String("record_id", record.ID),
				zap.String("change", DescribeDelta(delta)),
			)
		}
		if len(batch) < batchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	if report.Updated > 0 {
		s.afterWrite(ctx)
	}
	s.metrics.RecordRecalculated(report.Updated)
	report.Duration = s.now().Sub(started)
	s.logger.Info("mileage recalculation finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *MileageService) recompute(record *models.MileageRecord) (dto.RecalculationDelta, bool) {
	next := record.Clone()
	s.engine.Apply(next)
	delta := dto.RecalculationDelta{
		RecordID:    record.ID,
		OldDistance: record.Distance,
		NewDistance: next.Distance,
		OldStatus:   record.Status,
		NewStatus:   next.Status,
	}
	changed := !equalInt(record.Distance, next.Distance) || statusString(record.Status) != statusString(next.Status)
	return delta, changed
}

// PruneBlobs removes stored files older than ttl that no record or image references.
func (s *MileageService) PruneBlobs(ctx context.Context, ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "orphan ttl must be positive")
	}
	referenced, err := s.records.BlobPaths(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list referenced blobs")
	}
	removed, err := s.storage.CleanupOlderThan(ttl, func(rel string) bool {
		_, ok := referenced[rel]
		return ok
	})
	if err != nil {
		return removed, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prune blobs")
	}
	s.logger.Info("orphaned mileage blobs pruned", zap.Int("removed", len(removed)))
	return removed, nil
}

// DescribeDelta renders a delta as "distance a -> b, status x -> y".
func DescribeDelta(d dto.RecalculationDelta) string {
	return fmt.Sprintf("distance %s -> %s, status %s -> %s",
		formatOptionalInt(d.OldDistance), formatOptionalInt(d.NewDistance),
		formatOptionalStatus(d.OldStatus), formatOptionalStatus(d.NewStatus))
}

func formatOptionalInt(v *int) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *v)
}

func formatOptionalStatus(v *models.MileageStatus) string {
	if v == nil {
		return "none"
	}
	return string(*v)
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
