package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mileage-api/internal/models"
)

// MileageImageRepository reads supplementary photos. Inserts happen inside the
// record transaction through insertMileageImages.
type MileageImageRepository struct {
	db *sqlx.DB
}

// NewMileageImageRepository constructs the repository.
func NewMileageImageRepository(db *sqlx.DB) *MileageImageRepository {
	return &MileageImageRepository{db: db}
}

// ListByRecord returns images for a record in upload order.
func (r *MileageImageRepository) ListByRecord(ctx context.Context, recordID string) ([]models.MileageImage, error) {
	const query = `SELECT id, record_id, image_path, mime_type, size_bytes, uploaded_at FROM mileage_images WHERE record_id = $1 ORDER BY uploaded_at ASC, id ASC`
	var images []models.MileageImage
	if err := r.db.SelectContext(ctx, &images, query, recordID); err != nil {
		return nil, fmt.Errorf("list mileage images: %w", err)
	}
	return images, nil
}

// CountByRecords returns the number of images per record id.
func (r *MileageImageRepository) CountByRecords(ctx context.Context, recordIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(recordIDs))
	if len(recordIDs) == 0 {
		return counts, nil
	}
	query, args, err := sqlx.In(`SELECT record_id, COUNT(*) AS total FROM mileage_images WHERE record_id IN (?) GROUP BY record_id`, recordIDs)
	if err != nil {
		return nil, fmt.Errorf("build image count query: %w", err)
	}
	var rows []struct {
		RecordID string `db:"record_id"`
		Total    int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("count mileage images: %w", err)
	}
	for _, row := range rows {
		counts[row.RecordID] = row.Total
	}
	return counts, nil
}

func insertMileageImages(ctx context.Context, tx *sqlx.Tx, recordID string, images []models.MileageImage, now time.Time) error {
	const query = `INSERT INTO mileage_images (id, record_id, image_path, mime_type, size_bytes, uploaded_at) VALUES (:id, :record_id, :image_path, :mime_type, :size_bytes, :uploaded_at)`
	for i := range images {
		img := &images[i]
		if img.ID == "" {
			img.ID = uuid.NewString()
		}
		img.RecordID = recordID
		if img.UploadedAt.IsZero() {
			img.UploadedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, img); err != nil {
			return fmt.Errorf("insert mileage image: %w", err)
		}
	}
	return nil
}
