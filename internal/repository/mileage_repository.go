package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/mileage-api/internal/models"
)

// ErrDuplicateMileageDay is returned when the (trainer, date) unique key rejects a write.
var ErrDuplicateMileageDay = errors.New("mileage record already exists for trainer and date")

// MileageMutation computes the next state of a record inside the upsert
// transaction. current is nil when no row exists yet for the key.
type MileageMutation func(current *models.MileageRecord) (*models.MileageRecord, error)

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

const (
	mileageColumns = `id, trainer_id, date, start_km, end_km, start_photo, end_photo, distance, status, submission_status, edit_count, status_overridden, created_at, updated_at`
	mileageSelect  = `SELECT m.id, m.trainer_id, COALESCE(u.full_name, '') AS trainer_name, m.date, m.start_km, m.end_km, m.start_photo, m.end_photo, m.distance, m.status, m.submission_status, m.edit_count, m.status_overridden, m.created_at, m.updated_at FROM mileage_records m LEFT JOIN users u ON u.id = m.trainer_id`
)

// MileageRepository is the record store keyed by (trainer, date).
type MileageRepository struct {
	db      *sqlx.DB
	metrics queryObserver
	now     func() time.Time
}

// NewMileageRepository constructs the repository. metrics may be nil.
func NewMileageRepository(db *sqlx.DB, metrics queryObserver) *MileageRepository {
	return &MileageRepository{db: db, metrics: metrics, now: func() time.Time { return time.Now().UTC() }}
}

// FindByID returns a record with its trainer name. sql.ErrNoRows is returned unwrapped.
func (r *MileageRepository) FindByID(ctx context.Context, id string) (*models.MileageRecord, error) {
	defer r.observe("mileage_find_by_id", time.Now())
	var record models.MileageRecord
	if err := r.db.GetContext(ctx, &record, mileageSelect+` WHERE m.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find mileage record: %w", err)
	}
	return &record, nil
}

// FindForDay returns the trainer's record for date. sql.ErrNoRows is returned unwrapped.
func (r *MileageRepository) FindForDay(ctx context.Context, trainerID string, date time.Time) (*models.MileageRecord, error) {
	defer r.observe("mileage_find_for_day", time.Now())
	var record models.MileageRecord
	if err := r.db.GetContext(ctx, &record, mileageSelect+` WHERE m.trainer_id = $1 AND m.date = $2`, trainerID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find mileage record for day: %w", err)
	}
	return &record, nil
}

// UpsertDaily locks the (trainer, date) row, applies the mutation and writes the
// result together with any new images in one transaction. A concurrent insert
// that wins the unique key is re-read under lock and updated instead.
func (r *MileageRepository) UpsertDaily(ctx context.Context, trainerID string, date time.Time, apply MileageMutation, images []models.MileageImage) (*models.MileageRecord, models.UpsertOutcome, error) {
	defer r.observe("mileage_upsert_daily", time.Now())

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("begin mileage upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	current, err := lockDay(ctx, tx, trainerID, date)
	if err != nil {
		return nil, "", err
	}

	var (
		next    *models.MileageRecord
		outcome models.UpsertOutcome
	)
	if current == nil {
		next, err = apply(nil)
		if err != nil {
			return nil, "", err
		}
		next.TrainerID = trainerID
		next.Date = date
		inserted, err := r.insert(ctx, tx, next)
		if err != nil {
			return nil, "", err
		}
		outcome = models.UpsertCreated
		if !inserted {
			current, err = lockDay(ctx, tx, trainerID, date)
			if err != nil {
				return nil, "", err
			}
			if current == nil {
				return nil, "", fmt.Errorf("mileage upsert: %w", ErrDuplicateMileageDay)
			}
		}
	}
	if current != nil {
		next, err = apply(current.Clone())
		if err != nil {
			return nil, "", err
		}
		if err := r.update(ctx, tx, next); err != nil {
			return nil, "", err
		}
		outcome = models.UpsertUpdated
	}

	if err := insertMileageImages(ctx, tx, next.ID, images, r.now()); err != nil {
		return nil, "", err
	}
	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("commit mileage upsert: %w", err)
	}
	return next, outcome, nil
}

// UpdateByID locks a record by id, applies the mutation and persists the result
// with any new images. sql.ErrNoRows is returned when the id is unknown.
func (r *MileageRepository) UpdateByID(ctx context.Context, id string, apply MileageMutation, images []models.MileageImage) (*models.MileageRecord, error) {
	defer r.observe("mileage_update_by_id", time.Now())

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mileage update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current models.MileageRecord
	if err := tx.GetContext(ctx, &current, `SELECT `+mileageColumns+` FROM mileage_records WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock mileage record: %w", err)
	}

	next, err := apply(current.Clone())
	if err != nil {
		return nil, err
	}
	if err := r.update(ctx, tx, next); err != nil {
		return nil, err
	}
	if err := insertMileageImages(ctx, tx, next.ID, images, r.now()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mileage update: %w", err)
	}
	return next, nil
}

// List returns one page of records matching the filter, newest day first, and the total count.
func (r *MileageRepository) List(ctx context.Context, filter models.MileageFilter) ([]models.MileageRecord, int, error) {
	defer r.observe("mileage_list", time.Now())

	where, args := buildMileageWhere(filter)
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("%s%s ORDER BY m.date DESC, m.created_at DESC LIMIT %d OFFSET %d", mileageSelect, where, pageSize, (page-1)*pageSize)

	var records []models.MileageRecord
	if err := r.db.SelectContext(ctx, &records, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list mileage records: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM mileage_records m"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count mileage records: %w", err)
	}
	return records, total, nil
}

// ListAll returns every record matching the filter up to limit rows, ignoring pagination.
func (r *MileageRepository) ListAll(ctx context.Context, filter models.MileageFilter, limit int) ([]models.MileageRecord, error) {
	defer r.observe("mileage_list_all", time.Now())

	where, args := buildMileageWhere(filter)
	query := fmt.Sprintf("%s%s ORDER BY m.date DESC, u.full_name ASC LIMIT %d", mileageSelect, where, limit)
	var records []models.MileageRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list all mileage records: %w", err)
	}
	return records, nil
}

// Summarize counts records per status tier and lifecycle state.
func (r *MileageRepository) Summarize(ctx context.Context, filter models.MileageFilter) (*models.MileageSummary, error) {
	defer r.observe("mileage_summarize", time.Now())

	where, args := buildMileageWhere(filter)
	query := `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE m.status = 'OK') AS ok,
		COUNT(*) FILTER (WHERE m.status = 'WARNING') AS warning,
		COUNT(*) FILTER (WHERE m.status = 'ALERT') AS alert,
		COUNT(*) FILTER (WHERE m.submission_status = 'DRAFT') AS drafts,
		COUNT(*) FILTER (WHERE m.submission_status = 'SUBMITTED') AS submitted
		FROM mileage_records m` + where
	var summary models.MileageSummary
	if err := r.db.GetContext(ctx, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("summarize mileage records: %w", err)
	}
	return &summary, nil
}

// ListCompleted pages through records that carry both readings, ordered by id.
func (r *MileageRepository) ListCompleted(ctx context.Context, afterID string, limit int) ([]models.MileageRecord, error) {
	defer r.observe("mileage_list_completed", time.Now())

	query := `SELECT ` + mileageColumns + ` FROM mileage_records WHERE end_km IS NOT NULL AND id::text > $1 ORDER BY id::text ASC LIMIT $2`
	var records []models.MileageRecord
	if err := r.db.SelectContext(ctx, &records, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("list completed mileage records: %w", err)
	}
	return records, nil
}

// UpdateDerived writes recomputed distance and status for one record.
func (r *MileageRepository) UpdateDerived(ctx context.Context, id string, distance *int, status *models.MileageStatus) error {
	defer r.observe("mileage_update_derived", time.Now())

	const query = `UPDATE mileage_records SET distance = $2, status = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, distance, status, r.now())
	if err != nil {
		return fmt.Errorf("update derived mileage fields: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BlobPaths returns every storage path still referenced by a record or image.
func (r *MileageRepository) BlobPaths(ctx context.Context) (map[string]struct{}, error) {
	const query = `SELECT start_photo FROM mileage_records
		UNION SELECT end_photo FROM mileage_records WHERE end_photo IS NOT NULL
		UNION SELECT image_path FROM mileage_images`
	var paths []string
	if err := r.db.SelectContext(ctx, &paths, query); err != nil {
		return nil, fmt.Errorf("list referenced blobs: %w", err)
	}
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set, nil
}

func lockDay(ctx context.Context, tx *sqlx.Tx, trainerID string, date time.Time) (*models.MileageRecord, error) {
	var record models.MileageRecord
	err := tx.GetContext(ctx, &record, `SELECT `+mileageColumns+` FROM mileage_records WHERE trainer_id = $1 AND date = $2 FOR UPDATE`, trainerID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock mileage day: %w", err)
	}
	return &record, nil
}

func (r *MileageRepository) insert(ctx context.Context, tx *sqlx.Tx, record *models.MileageRecord) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := r.now()
	record.CreatedAt = now
	record.UpdatedAt = now

	const query = `INSERT INTO mileage_records (` + mileageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (trainer_id, date) DO NOTHING RETURNING id`
	var id string
	err := tx.QueryRowxContext(ctx, query,
		record.ID, record.TrainerID, record.Date, record.StartKM, record.EndKM, record.StartPhoto, record.EndPhoto,
		record.Distance, record.Status, record.SubmissionStatus, record.EditCount, record.StatusOverridden,
		record.CreatedAt, record.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, wrapWriteError("insert mileage record", err)
	}
	return true, nil
}

func (r *MileageRepository) update(ctx context.Context, tx *sqlx.Tx, record *models.MileageRecord) error {
	record.UpdatedAt = r.now()
	const query = `UPDATE mileage_records SET start_km = $2, end_km = $3, start_photo = $4, end_photo = $5, distance = $6, status = $7, submission_status = $8, edit_count = $9, status_overridden = $10, updated_at = $11 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query,
		record.ID, record.StartKM, record.EndKM, record.StartPhoto, record.EndPhoto, record.Distance,
		record.Status, record.SubmissionStatus, record.EditCount, record.StatusOverridden, record.UpdatedAt,
	); err != nil {
		return wrapWriteError("update mileage record", err)
	}
	return nil
}

func buildMileageWhere(filter models.MileageFilter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.TrainerID != nil {
		add("m.trainer_id = $%d", *filter.TrainerID)
	}
	if filter.SupervisorID != nil {
		add("EXISTS (SELECT 1 FROM trainer_profiles tp WHERE tp.user_id = m.trainer_id AND tp.supervisor_id = $%d)", *filter.SupervisorID)
	}
	if filter.Trainer != "" {
		add("m.trainer_id = $%d", filter.Trainer)
	}
	if filter.Date != nil {
		add("m.date = $%d", *filter.Date)
	}
	if filter.DateFrom != nil {
		add("m.date >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("m.date <= $%d", *filter.DateTo)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func wrapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, ErrDuplicateMileageDay)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *MileageRepository) observe(label string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(label, time.Since(start))
	}
}
