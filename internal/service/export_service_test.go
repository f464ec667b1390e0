package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/mileage-api/internal/models"
	appErrors "github.com/noah-isme/mileage-api/pkg/errors"
)

type exportSourceStub struct {
	records    []models.MileageRecord
	lastFilter models.MileageFilter
	lastLimit  int
}

func (s *exportSourceStub) ListAll(_ context.Context, filter models.MileageFilter, limit int) ([]models.MileageRecord, error) {
	s.lastFilter = filter
	s.lastLimit = limit
	return s.records, nil
}

type imageCounterStub struct {
	counts map[string]int
	asked  []string
}

func (s *imageCounterStub) CountByRecords(_ context.Context, ids []string) (map[string]int, error) {
	s.asked = ids
	return s.counts, nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *exportSourceStub, *auditRecorderStub) {
	t.Helper()
	end := 236
	distance := 126
	alert := models.MileageStatusAlert
	source := &exportSourceStub{records: []models.MileageRecord{
		{ID: "rec-1", TrainerID: "trainer-1", TrainerName: "Asha", Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), StartKM: 110, EndKM: &end, Distance: &distance, Status: &alert, SubmissionStatus: models.SubmissionSubmitted},
		{ID: "rec-2", TrainerID: "trainer-1", Date: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), StartKM: 5, SubmissionStatus: models.SubmissionDraft},
	}}
	audit := &auditRecorderStub{}
	svc := NewExportService(source, NewMileagePolicy(&profileReaderStub{}), audit, ExportConfig{RowLimit: 50}, zap.NewNop(), nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC) }
	return svc, source, audit
}

func TestExportServiceCSV(t *testing.T) {
	svc, source, audit := newExportServiceForTest(t)

	file, err := svc.Export(context.Background(), claims("trainer-1", models.RoleTrainer), models.MileageFilter{Trainer: "bob"}, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "mileage_20240503_080000.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, 2, file.Rows)
	assert.Equal(t, 50, source.lastLimit)
	require.NotNil(t, source.lastFilter.TrainerID)
	assert.Empty(t, source.lastFilter.Trainer)

	rows, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, []string{"2024-05-01", "Asha", "110", "236", "126", "ALERT", "SUBMITTED", "0", "false", ""}, rows[1])
	assert.Equal(t, "trainer-1", rows[2][1])
	assert.Equal(t, "", rows[2][3])

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionMileageExport, audit.logs[0].Action)
}

func TestExportServiceCountsPhotos(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)
	counter := &imageCounterStub{counts: map[string]int{"rec-1": 3}}
	svc.UseImageCounter(counter)

	file, err := svc.Export(context.Background(), claims("admin-1", models.RoleAdmin), models.MileageFilter{}, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"rec-1", "rec-2"}, counter.asked)

	rows, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "3", rows[1][9])
	assert.Equal(t, "0", rows[2][9])
}

func TestExportServicePDFAndXLSX(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)
	admin := claims("admin-1", models.RoleAdmin)

	pdf, err := svc.Export(context.Background(), admin, models.MileageFilter{}, ExportFormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Data, []byte("%PDF")))

	xlsx, err := svc.Export(context.Background(), admin, models.MileageFilter{}, ExportFormatXLSX)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(xlsx.Data, []byte("PK")))
	assert.Equal(t, "mileage_20240503_080000.xlsx", xlsx.Filename)
}

func TestParseExportFormat(t *testing.T) {
	format, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, format)

	format, err = ParseExportFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatXLSX, format)

	_, err = ParseExportFormat("docx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
