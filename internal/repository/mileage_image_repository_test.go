package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMileageImageCountByRecords(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMileageImageRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM mileage_images WHERE record_id IN (")).
		WithArgs("rec-1", "rec-2").
		WillReturnRows(sqlmock.NewRows([]string{"record_id", "total"}).AddRow("rec-1", 2))

	counts, err := repo.CountByRecords(context.Background(), []string{"rec-1", "rec-2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"rec-1": 2}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMileageImageCountByRecordsEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	counts, err := NewMileageImageRepository(db).CountByRecords(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMileageImageListByRecord(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMileageImageRepository(db)

	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM mileage_images WHERE record_id = $1")).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "record_id", "image_path", "mime_type", "size_bytes", "uploaded_at"}).
			AddRow("img-1", "rec-1", "t/2024-05-01/extra.jpg", "image/jpeg", 2048, now))

	images, err := repo.ListByRecord(context.Background(), "rec-1")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "image/jpeg", images[0].MimeType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
