package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mileage-api/internal/models"
	appErrors "github.com/noah-isme/mileage-api/pkg/errors"
	"github.com/noah-isme/mileage-api/pkg/export"
)

// ExportFormat names a rendered export type.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"

	defaultExportRowLimit = 5000
)

var exportHeaders = []string{"Date", "Trainer", "Start KM", "End KM", "Distance", "Status", "Submission", "Edits", "Overridden", "Photos"}

type mileageExportSource interface {
	ListAll(ctx context.Context, filter models.MileageFilter, limit int) ([]models.MileageRecord, error)
}

type imageCounter interface {
	CountByRecords(ctx context.Context, recordIDs []string) (map[string]int, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type titledRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	RowLimit int
}

// ExportFile is a rendered export ready to be sent as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ExportService renders the caller's visible mileage records.
type ExportService struct {
	records mileageExportSource
	images  imageCounter
	policy  *MileagePolicy
	csv     csvRenderer
	pdf     titledRenderer
	xlsx    titledRenderer
	audit   auditLogger
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(records mileageExportSource, policy *MileagePolicy, audit auditLogger, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf, xlsx titledRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = defaultExportRowLimit
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{
		records: records,
		policy:  policy,
		csv:     csv,
		pdf:     pdf,
		xlsx:    xlsx,
		audit:   audit,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// UseImageCounter fills the Photos column with each record's supplementary image count.
func (s *ExportService) UseImageCounter(images imageCounter) {
	s.images = images
}

// ParseExportFormat validates a format query value, defaulting to csv.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatPDF:
		return ExportFormatPDF, nil
	case ExportFormatXLSX:
		return ExportFormatXLSX, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "format must be one of csv, pdf, xlsx")
	}
}

// Export renders the records visible to caller that match requested.
func (s *ExportService) Export(ctx context.Context, caller *models.JWTClaims, requested models.MileageFilter, format ExportFormat) (*ExportFile, error) {
	filter, err := s.policy.Scope(caller, requested)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListAll(ctx, filter, s.cfg.RowLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mileage records")
	}
	var photos map[string]int
	if s.images != nil && len(records) > 0 {
		ids := make([]string, len(records))
		for i := range records {
			ids[i] = records[i].ID
		}
		if photos, err = s.images.CountByRecords(ctx, ids); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count mileage images")
		}
	}
	dataset := buildMileageDataset(records, photos)
	title := "Mileage Report"

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	case ExportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, title)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("mileage_%s.%s", s.now().UTC().Format("20060102_150405"), format)
	if s.audit != nil {
		log := &models.AuditLog{
			UserID:    &caller.UserID,
			Action:    models.AuditActionMileageExport,
			Resource:  "mileage",
			NewValues: []byte(fmt.Sprintf(`{"format":"%s","rows":%d}`, format, len(records))),
			IPAddress: "system",
			UserAgent: "export-service",
		}
		if err := s.audit.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to create export audit", zap.Error(err))
		}
	}
	s.logger.Info("mileage export rendered",
		zap.String("actor_id", caller.UserID),
		zap.String("format", string(format)),
		zap.Int("rows", len(records)),
	)
	return &ExportFile{Filename: filename, ContentType: contentType, Data: payload, Rows: len(records)}, nil
}

func buildMileageDataset(records []models.MileageRecord, photos map[string]int) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		trainer := r.TrainerName
		if trainer == "" {
			trainer = r.TrainerID
		}
		rows = append(rows, map[string]string{
			"Date":       r.Date.Format(models.DateLayout),
			"Trainer":    trainer,
			"Start KM":   strconv.Itoa(r.StartKM),
			"End KM":     optionalInt(r.EndKM),
			"Distance":   optionalInt(r.Distance),
			"Status":     statusString(r.Status),
			"Submission": string(r.SubmissionStatus),
			"Edits":      strconv.Itoa(r.EditCount),
			"Overridden": strconv.FormatBool(r.StatusOverridden),
			"Photos":     photoCount(photos, r.ID),
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}

func photoCount(photos map[string]int, id string) string {
	if photos == nil {
		return ""
	}
	return strconv.Itoa(photos[id])
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
