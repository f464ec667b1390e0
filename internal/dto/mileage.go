package dto

import (
	"time"

	"github.com/noah-isme/mileage-api/internal/models"
)

// MileageListQuery captures GET /mileage query parameters.
type MileageListQuery struct {
	Trainer  string `form:"trainer"`
	Date     string `form:"date"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// MileageRangeQuery captures the date range used by summary and export.
type MileageRangeQuery struct {
	Trainer  string `form:"trainer"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
	Format   string `form:"format"`
}

// OverrideStatusRequest is the PATCH /mileage/:id/status payload.
type OverrideStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// MileagePhotoLink is a short-lived download link for one stored photo.
type MileagePhotoLink struct {
	Kind      string    `json:"kind"`
	ImageID   string    `json:"image_id,omitempty"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MileageRecordDetail bundles a record with its images and signed links.
type MileageRecordDetail struct {
	Record         *models.MileageRecord `json:"record"`
	Images         []models.MileageImage `json:"images"`
	Photos         []MileagePhotoLink    `json:"photos"`
	RemainingEdits int                   `json:"remaining_edits"`
}

// MileageResult is returned by save, submit, edit and status override.
type MileageResult struct {
	Record         *models.MileageRecord `json:"record"`
	Outcome        models.UpsertOutcome  `json:"outcome,omitempty"`
	Images         []models.MileageImage `json:"images,omitempty"`
	SkippedImages  int                   `json:"skipped_images"`
	RemainingEdits int                   `json:"remaining_edits"`
	Message        string                `json:"message"`
}

// MileageSummaryResponse wraps the scoped counts and the range they cover.
type MileageSummaryResponse struct {
	Scope    string                `json:"scope"`
	DateFrom *string               `json:"date_from,omitempty"`
	DateTo   *string               `json:"date_to,omitempty"`
	Counts   models.MileageSummary `json:"counts"`
}

// RecalculationDelta describes one record whose derived fields changed.
type RecalculationDelta struct {
	RecordID    string                `json:"record_id"`
	OldDistance *int                  `json:"old_distance,omitempty"`
	NewDistance *int                  `json:"new_distance,omitempty"`
	OldStatus   *models.MileageStatus `json:"old_status,omitempty"`
	NewStatus   *models.MileageStatus `json:"new_status,omitempty"`
}

// RecalculationReport summarises a recalculation run.
type RecalculationReport struct {
	Scanned  int                  `json:"scanned"`
	Updated  int                  `json:"updated"`
	Failed   int                  `json:"failed"`
	Deltas   []RecalculationDelta `json:"deltas"`
	Duration time.Duration        `json:"duration"`
}
