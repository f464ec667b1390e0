package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/mileage-api/internal/dto"
	"github.com/noah-isme/mileage-api/internal/models"
	"github.com/noah-isme/mileage-api/internal/repository"
	appErrors "github.com/noah-isme/mileage-api/pkg/errors"
)

const (
	defaultMaxEdits    = 2
	summaryCachePrefix = "mileage:summary:"
)

type mileageStore interface {
	FindByID(ctx context.Context, id string) (*models.MileageRecord, error)
	FindForDay(ctx context.Context, trainerID string, date time.Time) (*models.MileageRecord, error)
	UpsertDaily(ctx context.Context, trainerID string, date time.Time, apply repository.MileageMutation, images []models.MileageImage) (*models.MileageRecord, models.UpsertOutcome, error)
	UpdateByID(ctx context.Context, id string, apply repository.MileageMutation, images []models.MileageImage) (*models.MileageRecord, error)
	List(ctx context.Context, filter models.MileageFilter) ([]models.MileageRecord, int, error)
	Summarize(ctx context.Context, filter models.MileageFilter) (*models.MileageSummary, error)
	ListCompleted(ctx context.Context, afterID string, limit int) ([]models.MileageRecord, error)
	UpdateDerived(ctx context.Context, id string, distance *int, status *models.MileageStatus) error
	BlobPaths(ctx context.Context) (map[string]struct{}, error)
}

type mileageImageReader interface {
	ListByRecord(ctx context.Context, recordID string) ([]models.MileageImage, error)
}

type mileageFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration, keep func(rel string) bool) ([]string, error)
}

type mileageURLSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string) (resourceID, relPath string, expiresAt time.Time, err error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// MileageServiceConfig tunes the workflow.
type MileageServiceConfig struct {
	MaxImageBytes int64
	MaxEdits      int
	APIPrefix     string
	SummaryTTL    time.Duration
	Location      *time.Location
}

// MileageDownload is an opened blob ready for streaming.
type MileageDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// MileageService runs the daily submission workflow and the post-submission edits.
type MileageService struct {
	records mileageStore
	images  mileageImageReader
	policy  *MileagePolicy
	engine  StatusEngine
	storage mileageFileStorage
	signer  mileageURLSigner
	audit   auditLogger
	cache   *CacheService
	metrics *MetricsService
	cleanup blobCleanupQueue
	logger  *zap.Logger
	cfg     MileageServiceConfig
	now     func() time.Time
}

// NewMileageService wires the workflow dependencies.
func NewMileageService(records mileageStore, images mileageImageReader, policy *MileagePolicy, engine StatusEngine, storage mileageFileStorage, signer mileageURLSigner, audit auditLogger, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg MileageServiceConfig) *MileageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = defaultMaxImageBytes
	}
	if cfg.MaxEdits <= 0 {
		cfg.MaxEdits = defaultMaxEdits
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if engine.WarningAboveKM == 0 && engine.AlertAboveKM == 0 {
		engine = NewStatusEngine(0, 0)
	}
	return &MileageService{
		records: records,
		images:  images,
		policy:  policy,
		engine:  engine,
		storage: storage,
		signer:  signer,
		audit:   audit,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Submit saves or submits the caller's record for today.
func (s *MileageService) Submit(ctx context.Context, caller *models.JWTClaims, in MileageSubmission) (*dto.MileageResult, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	action, err := parseAction(in.Action)
	if err != nil {
		return nil, err
	}
	day := s.today()

	current, err := s.records.FindForDay(ctx, caller.UserID, day)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load today's mileage")
		}
		current = nil
	}
	if current.Submitted() {
		return nil, appErrors.ErrAlreadySubmitted
	}

	form := newMileageForm(modeForAction(action), in, s.cfg.MaxImageBytes)
	km, err := form.validate(current)
	if err != nil {
		return nil, err
	}
	blobs, err := s.persistUploads(caller.UserID, day, form)
	if err != nil {
		return nil, err
	}

	apply := func(locked *models.MileageRecord) (*models.MileageRecord, error) {
		if locked.Submitted() {
			return nil, appErrors.ErrAlreadySubmitted
		}
		next := locked
		if next == nil {
			next = &models.MileageRecord{SubmissionStatus: models.SubmissionDraft}
		}
		next.StartKM = km.start
		if km.end != nil {
			end := *km.end
			next.EndKM = &end
		}
		blobs.applyTo(next)
		if next.EndKM != nil {
			if err := checkOrdering(next.StartKM, *next.EndKM); err != nil {
				return nil, err
			}
		}
		if action == models.MileageActionSubmit {
			next.SubmissionStatus = models.SubmissionSubmitted
		}
		s.engine.Apply(next)
		return next, nil
	}

	record, outcome, err := s.records.UpsertDaily(ctx, caller.UserID, day, apply, blobs.images)
	if err != nil {
		s.discard(blobs)
		return nil, translateWriteError(err, "failed to save mileage record")
	}

	s.removeBlobs(blobs.replaced)
	s.afterWrite(ctx)
	s.metrics.RecordMileageWrite(string(action), string(outcome))
	s.metrics.RecordSkippedImages(form.skipped)
	if action == models.MileageActionSubmit {
		s.metrics.RecordMileageStatus(statusString(record.Status), "engine")
	}

	auditAction := models.AuditActionMileageSave
	message := "Mileage saved successfully. You can complete it later."
	if action == models.MileageActionSubmit {
		auditAction = models.AuditActionMileageSubmit
		message = "Mileage submitted successfully!"
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &caller.UserID,
		Action:     auditAction,
		Resource:   "mileage",
		ResourceID: &record.ID,
		OldValues:  snapshot(current),
		NewValues:  snapshot(record),
	})
	s.logger.Info("mileage recorded",
		zap.String("record_id", record.ID),
		zap.String("trainer_id", caller.UserID),
		zap.String("action", string(action)),
		zap.String("outcome", string(outcome)),
		zap.String("status", statusString(record.Status)),
		zap.Int("skipped_images", form.skipped),
	)

	return &dto.MileageResult{
		Record:         record,
		Outcome:        outcome,
		Images:         blobs.images,
		SkippedImages:  form.skipped,
		RemainingEdits: s.remainingEdits(record),
		Message:        message,
	}, nil
}

// Edit rewrites a submitted record owned by the caller and consumes one edit.
func (s *MileageService) Edit(ctx context.Context, caller *models.JWTClaims, id string, in MileageSubmission) (*dto.MileageResult, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := validRecordID(id); err != nil {
		return nil, err
	}
	current, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, translateReadError(err, "failed to load mileage record")
	}
	if err := s.checkEditable(caller, current); err != nil {
		return nil, err
	}

	form := newMileageForm(formEdit, in, s.cfg.MaxImageBytes)
	km, err := form.validate(current)
	if err != nil {
		return nil, err
	}
	blobs, err := s.persistUploads(caller.UserID, current.Date, form)
	if err != nil {
		return nil, err
	}

	var previous *models.MileageRecord
	apply := func(locked *models.MileageRecord) (*models.MileageRecord, error) {
		if err := s.checkEditable(caller, locked); err != nil {
			return nil, err
		}
		previous = locked.Clone()
		locked.StartKM = km.start
		end := *km.end
		locked.EndKM = &end
		blobs.applyTo(locked)
		locked.EditCount++
		locked.StatusOverridden = false
		s.engine.Apply(locked)
		return locked, nil
	}

	record, err := s.records.UpdateByID(ctx, id, apply, blobs.images)
	if err != nil {
		s.discard(blobs)
		return nil, translateWriteError(err, "failed to update mileage record")
	}

	s.removeBlobs(blobs.replaced)
	remaining := s.remainingEdits(record)
	s.afterWrite(ctx)
	s.metrics.RecordMileageWrite("edit", string(models.UpsertUpdated))
	s.metrics.RecordSkippedImages(form.skipped)
	s.metrics.RecordMileageStatus(statusString(record.Status), "engine")
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &caller.UserID,
		Action:     models.AuditActionMileageEdit,
		Resource:   "mileage",
		ResourceID: &record.ID,
		OldValues:  snapshot(previous),
		NewValues:  snapshot(record),
	})
	s.logger.Info("mileage edited",
		zap.String("record_id", record.ID),
		zap.String("trainer_id", caller.UserID),
		zap.Int("edit_count", record.EditCount),
		zap.String("status", statusString(record.Status)),
	)

	return &dto.MileageResult{
		Record:         record,
		Outcome:        models.UpsertUpdated,
		Images:         blobs.images,
		SkippedImages:  form.skipped,
		RemainingEdits: remaining,
		Message:        fmt.Sprintf("Mileage updated successfully! You have %d edit(s) remaining.", remaining),
	}, nil
}

// OverrideStatus sets a record's tier by hand. Only admins may do this.
func (s *MileageService) OverrideStatus(ctx context.Context, caller *models.JWTClaims, id, status string) (*dto.MileageResult, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !s.policy.CanOverride(caller) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Not allowed")
	}
	next := models.MileageStatus(strings.ToUpper(strings.TrimSpace(status)))
	if !next.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid status selected.")
	}
	if err := validRecordID(id); err != nil {
		return nil, err
	}

	var previous *models.MileageRecord
	apply := func(locked *models.MileageRecord) (*models.MileageRecord, error) {
		if locked.Distance == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Status can only be set once both readings are recorded.")
		}
		previous = locked.Clone()
		value := next
		locked.Status = &value
		locked.StatusOverridden = true
		return locked, nil
	}
	record, err := s.records.UpdateByID(ctx, id, apply, nil)
	if err != nil {
		return nil, translateWriteError(err, "failed to override mileage status")
	}

	s.afterWrite(ctx)
	s.metrics.RecordMileageStatus(string(next), "override")
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &caller.UserID,
		Action:     models.AuditActionStatusOverride,
		Resource:   "mileage",
		ResourceID: &record.ID,
		OldValues:  statusJSON(previous.Status),
		NewValues:  statusJSON(record.Status),
	})
	s.logger.Info("mileage status overridden",
		zap.String("record_id", record.ID),
		zap.String("actor_id", caller.UserID),
		zap.String("from", statusString(previous.Status)),
		zap.String("to", string(next)),
	)

	return &dto.MileageResult{
		Record:         record,
		RemainingEdits: s.remainingEdits(record),
		Message:        fmt.Sprintf("Status updated to %s for record %s.", next, record.ID),
	}, nil
}

// Today returns the caller's record for the current day, or nil when none exists.
func (s *MileageService) Today(ctx context.Context, caller *models.JWTClaims) (*dto.MileageRecordDetail, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	record, err := s.records.FindForDay(ctx, caller.UserID, s.today())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load today's mileage")
	}
	return s.detail(ctx, record)
}

// Get returns one record with images and signed photo links. Records outside
// the caller's scope read as not found.
func (s *MileageService) Get(ctx context.Context, caller *models.JWTClaims, id string) (*dto.MileageRecordDetail, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := validRecordID(id); err != nil {
		return nil, err
	}
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, translateReadError(err, "failed to load mileage record")
	}
	ok, err := s.policy.CanView(ctx, caller, record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, recordNotFound()
	}
	return s.detail(ctx, record)
}

// List returns one page of records visible to the caller.
func (s *MileageService) List(ctx context.Context, caller *models.JWTClaims, requested models.MileageFilter) ([]models.MileageRecord, *models.Pagination, error) {
	filter, err := s.policy.Scope(caller, requested)
	if err != nil {
		return nil, nil, err
	}
	filter.Page, filter.PageSize = normalizeListPage(filter.Page, filter.PageSize)
	records, total, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mileage records")
	}
	if records == nil {
		records = []models.MileageRecord{}
	}
	return records, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Trainers lists the trainer filter options for the caller.
func (s *MileageService) Trainers(ctx context.Context, caller *models.JWTClaims) ([]models.TrainerOption, error) {
	return s.policy.Trainers(ctx, caller)
}

// Summary counts tiers within the caller's scope. The bool reports a cache hit.
func (s *MileageService) Summary(ctx context.Context, caller *models.JWTClaims, requested models.MileageFilter) (*dto.MileageSummaryResponse, bool, error) {
	filter, err := s.policy.Scope(caller, requested)
	if err != nil {
		return nil, false, err
	}
	return loadCached(ctx, s.cache, summaryCacheKey(filter), s.cfg.SummaryTTL, func(ctx context.Context) (*dto.MileageSummaryResponse, error) {
		counts, err := s.records.Summarize(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize mileage records")
		}
		return &dto.MileageSummaryResponse{
			Scope:    ClassifyCaller(caller).String(),
			DateFrom: formatDay(filter.DateFrom),
			DateTo:   formatDay(filter.DateTo),
			Counts:   *counts,
		}, nil
	})
}

// Download opens a stored photo named by a signed token.
func (s *MileageService) Download(ctx context.Context, token string) (*MileageDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	recordID, relPath, expiresAt, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if err := validRecordID(recordID); err != nil {
		return nil, err
	}
	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		return nil, translateReadError(err, "failed to load mileage record")
	}
	mimeType, ok, err := s.blobBelongsTo(ctx, record, relPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open mileage photo")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read mileage photo metadata")
	}
	return &MileageDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		MimeType:  mimeType,
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *MileageService) blobBelongsTo(ctx context.Context, record *models.MileageRecord, relPath string) (string, bool, error) {
	byExt := mime.TypeByExtension(filepath.Ext(relPath))
	if byExt == "" {
		byExt = "application/octet-stream"
	}
	if relPath == record.StartPhoto || (record.EndPhoto != nil && relPath == *record.EndPhoto) {
		return byExt, true, nil
	}
	if s.images == nil {
		return "", false, nil
	}
	images, err := s.images.ListByRecord(ctx, record.ID)
	if err != nil {
		return "", false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mileage images")
	}
	for _, img := range images {
		if img.ImagePath == relPath {
			return img.MimeType, true, nil
		}
	}
	return "", false, nil
}

func (s *MileageService) detail(ctx context.Context, record *models.MileageRecord) (*dto.MileageRecordDetail, error) {
	images := []models.MileageImage{}
	if s.images != nil {
		loaded, err := s.images.ListByRecord(ctx, record.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mileage images")
		}
		if loaded != nil {
			images = loaded
		}
	}

	photos := make([]dto.MileagePhotoLink, 0, 2+len(images))
	add := func(kind, imageID, path string) error {
		if path == "" || s.signer == nil {
			return nil
		}
		token, expiresAt, err := s.signer.Generate(record.ID, path)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign photo link")
		}
		photos = append(photos, dto.MileagePhotoLink{
			Kind:      kind,
			ImageID:   imageID,
			URL:       fmt.Sprintf("%s/files/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
			ExpiresAt: expiresAt,
		})
		return nil
	}
	if err := add("start", "", record.StartPhoto); err != nil {
		return nil, err
	}
	if record.EndPhoto != nil {
		if err := add("end", "", *record.EndPhoto); err != nil {
			return nil, err
		}
	}
	for _, img := range images {
		if err := add("image", img.ID, img.ImagePath); err != nil {
			return nil, err
		}
	}

	return &dto.MileageRecordDetail{
		Record:         record,
		Images:         images,
		Photos:         photos,
		RemainingEdits: s.remainingEdits(record),
	}, nil
}

func (s *MileageService) checkEditable(caller *models.JWTClaims, record *models.MileageRecord) error {
	if record.TrainerID != caller.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "You can only edit your own records.")
	}
	if !record.Submitted() {
		return appErrors.ErrNotSubmitted
	}
	if record.EditCount >= s.cfg.MaxEdits {
		return appErrors.ErrEditLimitReached
	}
	return nil
}

func (s *MileageService) remainingEdits(record *models.MileageRecord) int {
	if !record.Submitted() {
		return s.cfg.MaxEdits
	}
	remaining := s.cfg.MaxEdits - record.EditCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// savedBlobs tracks files written for one request so they can be removed on
// failure, and the photos they displaced so those can be removed on success.
type savedBlobs struct {
	start    string
	end      string
	images   []models.MileageImage
	paths    []string
	replaced []string
}

func (b *savedBlobs) applyTo(record *models.MileageRecord) {
	b.replaced = nil
	if b.start != "" {
		if record.StartPhoto != "" && record.StartPhoto != b.start {
			b.replaced = append(b.replaced, record.StartPhoto)
		}
		record.StartPhoto = b.start
	}
	if b.end != "" {
		if record.EndPhoto != nil && *record.EndPhoto != "" && *record.EndPhoto != b.end {
			b.replaced = append(b.replaced, *record.EndPhoto)
		}
		end := b.end
		record.EndPhoto = &end
	}
}

func (s *MileageService) persistUploads(trainerID string, day time.Time, form *mileageForm) (*savedBlobs, error) {
	saved := &savedBlobs{}
	store := func(kind string, upload *ImageUpload) (string, error) {
		name := blobName(trainerID, day, kind, upload)
		path, err := s.storage.SaveStream(name, upload.Content)
		if err != nil {
			s.discard(saved)
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist mileage photo")
		}
		saved.paths = append(saved.paths, path)
		return path, nil
	}

	var err error
	if form.startPhoto != nil {
		if saved.start, err = store("start", form.startPhoto); err != nil {
			return nil, err
		}
	}
	if form.endPhoto != nil {
		if saved.end, err = store("end", form.endPhoto); err != nil {
			return nil, err
		}
	}
	for i := range form.images {
		upload := &form.images[i]
		path, err := store("image", upload)
		if err != nil {
			return nil, err
		}
		saved.images = append(saved.images, models.MileageImage{
			ImagePath: path,
			MimeType:  strings.ToLower(upload.MimeType),
			SizeBytes: upload.Size,
		})
	}
	return saved, nil
}

func (s *MileageService) discard(saved *savedBlobs) {
	if saved == nil {
		return
	}
	s.removeBlobs(saved.paths)
}

func (s *MileageService) afterWrite(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, summaryCachePrefix+"*")
}

func (s *MileageService) today() time.Time {
	local := s.now().In(s.cfg.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *MileageService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "mileage-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to create mileage audit", zap.Error(err))
	}
}

func parseAction(raw string) (models.MileageAction, error) {
	switch models.MileageAction(strings.ToLower(strings.TrimSpace(raw))) {
	case "", models.MileageActionSubmit:
		return models.MileageActionSubmit, nil
	case models.MileageActionSave:
		return models.MileageActionSave, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "Invalid action.")
	}
}

func blobName(trainerID string, day time.Time, kind string, upload *ImageUpload) string {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(upload.MimeType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	if ext == "" {
		ext = ".img"
	}
	return fmt.Sprintf("%s/%s/%s_%s%s", sanitizeSegment(trainerID), day.Format(models.DateLayout), kind, uuid.NewString(), ext)
}

func sanitizeSegment(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

// validRecordID rejects ids the uuid columns could never hold, so they read
// as not found instead of reaching the database.
func validRecordID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return recordNotFound()
	}
	return nil
}

func recordNotFound() *appErrors.Error {
	return appErrors.Clone(appErrors.ErrNotFound, "Record not found.")
}

func translateReadError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return recordNotFound()
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func translateWriteError(err error, message string) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, sql.ErrNoRows):
		return recordNotFound()
	case errors.Is(err, repository.ErrDuplicateMileageDay):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "mileage for this day was changed concurrently, please retry")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}

func normalizeListPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

func summaryCacheKey(filter models.MileageFilter) string {
	scope := "all"
	switch {
	case filter.TrainerID != nil:
		scope = "owner:" + *filter.TrainerID
	case filter.SupervisorID != nil:
		scope = "supervisor:" + *filter.SupervisorID
	}
	from, to := "-", "-"
	if v := formatDay(filter.DateFrom); v != nil {
		from = *v
	}
	if v := formatDay(filter.DateTo); v != nil {
		to = *v
	}
	return fmt.Sprintf("%s%s:%s:%s:%s", summaryCachePrefix, scope, from, to, strings.ToLower(filter.Trainer))
}

func formatDay(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(models.DateLayout)
	return &v
}

func statusString(status *models.MileageStatus) string {
	if status == nil {
		return ""
	}
	return string(*status)
}

func statusJSON(status *models.MileageStatus) []byte {
	payload, _ := json.Marshal(map[string]interface{}{"status": status})
	return payload
}

func snapshot(record *models.MileageRecord) []byte {
	if record == nil {
		return nil
	}
	payload, err := json.Marshal(map[string]interface{}{
		"start_km":          record.StartKM,
		"end_km":            record.EndKM,
		"distance":          record.Distance,
		"status":            record.Status,
		"submission_status": record.SubmissionStatus,
		"edit_count":        record.EditCount,
	})
	if err != nil {
		return nil
	}
	return payload
}
