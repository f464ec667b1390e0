package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/mileage-api/internal/dto"
	"github.com/noah-isme/mileage-api/internal/middleware"
	"github.com/noah-isme/mileage-api/internal/models"
	"github.com/noah-isme/mileage-api/internal/service"
	appErrors "github.com/noah-isme/mileage-api/pkg/errors"
	"github.com/noah-isme/mileage-api/pkg/response"
)

type mileageService interface {
	Submit(ctx context.Context, caller *models.JWTClaims, in service.MileageSubmission) (*dto.MileageResult, error)
	Edit(ctx context.Context, caller *models.JWTClaims, id string, in service.MileageSubmission) (*dto.MileageResult, error)
	OverrideStatus(ctx context.Context, caller *models.JWTClaims, id, status string) (*dto.MileageResult, error)
	Today(ctx context.Context, caller *models.JWTClaims) (*dto.MileageRecordDetail, error)
	Get(ctx context.Context, caller *models.JWTClaims, id string) (*dto.MileageRecordDetail, error)
	List(ctx context.Context, caller *models.JWTClaims, requested models.MileageFilter) ([]models.MileageRecord, *models.Pagination, error)
	Trainers(ctx context.Context, caller *models.JWTClaims) ([]models.TrainerOption, error)
	Summary(ctx context.Context, caller *models.JWTClaims, requested models.MileageFilter) (*dto.MileageSummaryResponse, bool, error)
	Download(ctx context.Context, token string) (*service.MileageDownload, error)
}

type mileageExporter interface {
	Export(ctx context.Context, caller *models.JWTClaims, requested models.MileageFilter, format service.ExportFormat) (*service.ExportFile, error)
}

// MileageHandler exposes the mileage workflow over HTTP.
type MileageHandler struct {
	service  mileageService
	exporter mileageExporter
	validate *validator.Validate
}

// NewMileageHandler constructs the handler. exporter may be nil when exports are disabled.
func NewMileageHandler(svc mileageService, exporter mileageExporter, validate *validator.Validate) *MileageHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &MileageHandler{service: svc, exporter: exporter, validate: validate}
}

// Today godoc
// @Summary Get today's mileage record for the caller
// @Tags Mileage
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /mileage/today [get]
func (h *MileageHandler) Today(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "mileage service not configured"))
		return
	}
	detail, err := h.service.Today(c.Request.Context(), caller(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Save or submit today's mileage
// @Tags Mileage
// @Accept multipart/form-data
// @Produce json
// @Param action formData string false "save or submit (default submit)"
// @Param start_km formData string false "Start odometer reading"
// @Param end_km formData string false "End odometer reading"
// @Param start_photo formData file false "Start odometer photo"
// @Param end_photo formData file false "End odometer photo"
// @Param images[] formData file false "Supplementary images"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /mileage [post]
func (h *MileageHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "mileage service not configured"))
		return
	}
	in, closeAll, err := readSubmission(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeAll()

	result, err := h.service.Submit(c.Request.Context(), caller(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Outcome == models.UpsertCreated {
		response.Created(c, result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Update godoc
// @Summary Edit a submitted mileage record
// @Tags Mileage
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Record ID"
// @Param start_km formData string true "Start odometer reading"
// @Param end_km formData string true "End odometer reading"
// @Param start_photo formData file false "Replacement start photo"
// @Param end_photo formData file false "Replacement end photo"
// @Param images[] formData file false "Additional images"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /mileage/{id} [put]
func (h *MileageHandler) Update(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "mileage service not configured"))
		return
	}
	in, closeAll, err := readSubmission(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeAll()

	result, err := h.service.Edit(c.Request.Context(), caller(c), c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// OverrideStatus godoc
// @Summary Override the status tier of a record
// @Tags Mileage
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.OverrideStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /mileage/{id}/status [patch]
func (h *MileageHandler) OverrideStatus(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "mileage service not configured"))
		return
	}
	var req dto.OverrideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid status payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Invalid status selected."))
		return
	}
	result, err := h.service.OverrideStatus(c.Request.Context(), caller(c), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List mileage records visible to the caller
// @Tags Mileage
// @Produce json
// @Param trainer query string false "Trainer user id (UUID); ignored for trainers"
// @Param date query string false "Day (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /mileage [get]
func (h *MileageHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "mileage service not configured"))
		return
	}
	var query dto.MileageListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	date, err := parseDay(query.Date, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.MileageFilter{
		Trainer:  strings.TrimSpace(query.Trainer),
		Date:     date,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	records, pagination, err := h.service.List(c.Request.Context(), caller(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Summary godoc
// @Summary Count status tiers within the caller's scope
// @Tags Mileage
// @Produce json
// @Param trainer query string false "Trainer user id (UUID); ignored for trainers"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /mileage/summary [get]
func (h *MileageHandler) Summary(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "mileage service not configured"))
		return
	}
	filter, _, err := rangeFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, hit, err := h.service.Summary(c.Request.Context(), caller(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// Trainers godoc
// @Summary List trainer filter options
// @Tags Mileage
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /mileage/trainers [get]
func (h *MileageHandler) Trainers(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "mileage service not configured"))
		return
	}
	options, err := h.service.Trainers(c.Request.Context(), caller(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, options, nil)
}

// Export godoc
// @Summary Export visible mileage records
// @Tags Mileage
// @Produce octet-stream
// @Param format query string false "csv, pdf or xlsx"
// @Param trainer query string false "Trainer user id (UUID); ignored for trainers"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Router /mileage/export [get]
func (h *MileageHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	filter, rawFormat, err := rangeFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format, err := service.ParseExportFormat(rawFormat)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), caller(c), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// Get godoc
// @Summary Get a mileage record with photo links
// @Tags Mileage
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /mileage/{id} [get]
func (h *MileageHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "mileage service not configured"))
		return
	}
	detail, err := h.service.Get(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Download godoc
// @Summary Serve a stored mileage photo by signed token
// @Tags Mileage
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /files/{token} [get]
func (h *MileageHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "mileage service not configured"))
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}

// readSubmission maps the multipart form onto a submission. The returned func
// closes every opened upload and must be called once the service returns.
func readSubmission(c *gin.Context) (service.MileageSubmission, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close() //nolint:errcheck
		}
	}

	in := service.MileageSubmission{
		Action:  c.PostForm("action"),
		StartKM: c.PostForm("start_km"),
		EndKM:   c.PostForm("end_km"),
	}
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return in, closeAll, nil
		}
		return in, closeAll, appErrors.Clone(appErrors.ErrValidation, "invalid multipart payload")
	}

	open := func(fh *multipart.FileHeader) (*service.ImageUpload, error) {
		src, err := fh.Open()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
		}
		opened = append(opened, src)
		return &service.ImageUpload{
			Filename: fh.Filename,
			Size:     fh.Size,
			MimeType: fh.Header.Get("Content-Type"),
			Content:  src,
		}, nil
	}

	if files := form.File["start_photo"]; len(files) > 0 {
		if in.StartPhoto, err = open(files[0]); err != nil {
			closeAll()
			return in, func() {}, err
		}
	}
	if files := form.File["end_photo"]; len(files) > 0 {
		if in.EndPhoto, err = open(files[0]); err != nil {
			closeAll()
			return in, func() {}, err
		}
	}
	images := append(append([]*multipart.FileHeader{}, form.File["images[]"]...), form.File["images"]...)
	for _, fh := range images {
		upload, err := open(fh)
		if err != nil {
			closeAll()
			return in, func() {}, err
		}
		in.Images = append(in.Images, *upload)
	}
	return in, closeAll, nil
}

// rangeFilter reads trainer, date_from and date_to, returning the raw format value too.
func rangeFilter(c *gin.Context) (models.MileageFilter, string, error) {
	var query dto.MileageRangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return models.MileageFilter{}, "", appErrors.Clone(appErrors.ErrValidation, "invalid query parameters")
	}
	from, err := parseDay(query.DateFrom, "date_from")
	if err != nil {
		return models.MileageFilter{}, "", err
	}
	to, err := parseDay(query.DateTo, "date_to")
	if err != nil {
		return models.MileageFilter{}, "", err
	}
	if from != nil && to != nil && from.After(*to) {
		return models.MileageFilter{}, "", appErrors.Clone(appErrors.ErrValidation, "date_from must not be after date_to")
	}
	return models.MileageFilter{
		Trainer:  strings.TrimSpace(query.Trainer),
		DateFrom: from,
		DateTo:   to,
	}, query.Format, nil
}

func parseDay(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	day, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must use YYYY-MM-DD", field))
	}
	return &day, nil
}
