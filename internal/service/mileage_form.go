package service

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/mileage-api/internal/models"
	appErrors "github.com/noah-isme/mileage-api/pkg/errors"
)

const defaultMaxImageBytes int64 = 5 * 1024 * 1024

// ImageUpload is one uploaded file as declared by the client.
type ImageUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

// MileageSubmission carries the raw form fields of a save, submit or edit request.
type MileageSubmission struct {
	Action     string
	StartKM    string
	EndKM      string
	StartPhoto *ImageUpload
	EndPhoto   *ImageUpload
	Images     []ImageUpload
}

// acceptImage applies the upload rule shared by photos and extra images.
func acceptImage(upload *ImageUpload, maxBytes int64) bool {
	if upload == nil || upload.Content == nil {
		return false
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(upload.MimeType)), "image/") {
		return false
	}
	return upload.Size > 0 && upload.Size <= maxBytes
}

type formMode int

const (
	formSave formMode = iota
	formSubmit
	formEdit
)

func modeForAction(action models.MileageAction) formMode {
	if action == models.MileageActionSubmit {
		return formSubmit
	}
	return formSave
}

func (m formMode) required(field string) string {
	if m == formSubmit {
		return field + " is required for submission."
	}
	return field + " is required."
}

// mileageForm is a submission after upload filtering.
type mileageForm struct {
	mode       formMode
	startKMRaw string
	endKMRaw   string
	startPhoto *ImageUpload
	endPhoto   *ImageUpload
	images     []ImageUpload
	skipped    int
}

func newMileageForm(mode formMode, in MileageSubmission, maxBytes int64) *mileageForm {
	form := &mileageForm{
		mode:       mode,
		startKMRaw: strings.TrimSpace(in.StartKM),
		endKMRaw:   strings.TrimSpace(in.EndKM),
	}
	if acceptImage(in.StartPhoto, maxBytes) {
		form.startPhoto = in.StartPhoto
	}
	if acceptImage(in.EndPhoto, maxBytes) {
		form.endPhoto = in.EndPhoto
	}
	for i := range in.Images {
		if acceptImage(&in.Images[i], maxBytes) {
			form.images = append(form.images, in.Images[i])
			continue
		}
		form.skipped++
	}
	return form
}

// validatedKM holds readings that passed presence, type and sign checks.
type validatedKM struct {
	start int
	end   *int
}

// validate checks the form against stored photos of current, which may be nil.
// Presence and per-field errors are collected together; the ordering check
// runs only once both readings are individually valid.
func (f *mileageForm) validate(current *models.MileageRecord) (*validatedKM, error) {
	var details []string

	hasStartPhoto := f.startPhoto != nil || (current != nil && current.StartPhoto != "")
	hasEndPhoto := f.endPhoto != nil || (current != nil && current.EndPhoto != nil && *current.EndPhoto != "")
	needEnd := f.mode != formSave

	if f.startKMRaw == "" {
		details = append(details, f.mode.required("Start KM"))
	}
	if !hasStartPhoto {
		details = append(details, f.mode.required("Start Photo"))
	}
	if needEnd && f.endKMRaw == "" {
		details = append(details, f.mode.required("End KM"))
	}
	if needEnd && !hasEndPhoto {
		details = append(details, f.mode.required("End Photo"))
	}

	var result validatedKM
	startOK := false
	if f.startKMRaw != "" {
		v, msg := parseKM(f.startKMRaw, "Start KM")
		if msg != "" {
			details = append(details, msg)
		} else {
			result.start = v
			startOK = true
		}
	}
	endOK := false
	if f.endKMRaw != "" {
		v, msg := parseKM(f.endKMRaw, "End KM")
		if msg != "" {
			details = append(details, msg)
		} else {
			result.end = &v
			endOK = true
		}
	}

	if len(details) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, details[0], details)
	}

	end := result.end
	if !endOK && f.mode == formSave && current != nil {
		end = current.EndKM
	}
	if startOK && end != nil {
		if err := checkOrdering(result.start, *end); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

func checkOrdering(start, end int) error {
	if end <= start {
		msg := "End KM must be greater than Start KM."
		return appErrors.WithDetails(appErrors.ErrValidation, msg, []string{msg})
	}
	return nil
}

// parseKM accepts integer strings and decimals, truncating toward zero before
// the sign check, so "-0.5" reads as 0.
func parseKM(raw, field string) (int, string) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
		return 0, fmt.Sprintf("%s must be a valid number.", field)
	}
	km := int(math.Trunc(v))
	if km < 0 {
		return 0, fmt.Sprintf("%s cannot be negative.", field)
	}
	return km, ""
}
