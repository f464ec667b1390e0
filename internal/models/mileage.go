package models

import "time"

// DateLayout is the calendar-day format used in queries and exports.
const DateLayout = "2006-01-02"

// MileageStatus is the alert tier derived from a day's distance.
type MileageStatus string

const (
	MileageStatusOK      MileageStatus = "OK"
	MileageStatusWarning MileageStatus = "WARNING"
	MileageStatusAlert   MileageStatus = "ALERT"
)

// Valid reports whether s is one of the known tiers.
func (s MileageStatus) Valid() bool {
	switch s {
	case MileageStatusOK, MileageStatusWarning, MileageStatusAlert:
		return true
	}
	return false
}

// SubmissionStatus tracks the record lifecycle.
type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "DRAFT"
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
)

// MileageAction selects between saving a draft and submitting the day.
type MileageAction string

const (
	MileageActionSave   MileageAction = "save"
	MileageActionSubmit MileageAction = "submit"
)

// UpsertOutcome tags whether the daily upsert inserted or updated a row.
type UpsertOutcome string

const (
	UpsertCreated UpsertOutcome = "created"
	UpsertUpdated UpsertOutcome = "updated"
)

// MileageRecord is one trainer's odometer log for one day.
type MileageRecord struct {
	ID               string           `db:"id" json:"id"`
	TrainerID        string           `db:"trainer_id" json:"trainer_id"`
	TrainerName      string           `db:"trainer_name" json:"trainer_name,omitempty"`
	Date             time.Time        `db:"date" json:"date"`
	StartKM          int              `db:"start_km" json:"start_km"`
	EndKM            *int             `db:"end_km" json:"end_km,omitempty"`
	StartPhoto       string           `db:"start_photo" json:"-"`
	EndPhoto         *string          `db:"end_photo" json:"-"`
	Distance         *int             `db:"distance" json:"distance,omitempty"`
	Status           *MileageStatus   `db:"status" json:"status,omitempty"`
	SubmissionStatus SubmissionStatus `db:"submission_status" json:"submission_status"`
	EditCount        int              `db:"edit_count" json:"edit_count"`
	StatusOverridden bool             `db:"status_overridden" json:"status_overridden"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// Submitted reports whether the record has left the draft state.
func (r *MileageRecord) Submitted() bool {
	return r != nil && r.SubmissionStatus == SubmissionSubmitted
}

// Clone returns a deep copy so mutations never alias the stored row.
func (r *MileageRecord) Clone() *MileageRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.EndKM = cloneInt(r.EndKM)
	c.Distance = cloneInt(r.Distance)
	if r.EndPhoto != nil {
		v := *r.EndPhoto
		c.EndPhoto = &v
	}
	if r.Status != nil {
		v := *r.Status
		c.Status = &v
	}
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// MileageImage is a supplementary photo attached to a record.
type MileageImage struct {
	ID         string    `db:"id" json:"id"`
	RecordID   string    `db:"record_id" json:"record_id"`
	ImagePath  string    `db:"image_path" json:"-"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// MileageFilter scopes and narrows record listings. TrainerID and SupervisorID
// carry the access scope; Trainer and Date are the optional caller filters.
type MileageFilter struct {
	TrainerID    *string
	SupervisorID *string
	Trainer      string
	Date         *time.Time
	DateFrom     *time.Time
	DateTo       *time.Time
	Page         int
	PageSize     int
}

// MileageSummary counts records per tier and lifecycle state.
type MileageSummary struct {
	Total     int `db:"total" json:"total"`
	OK        int `db:"ok" json:"ok"`
	Warning   int `db:"warning" json:"warning"`
	Alert     int `db:"alert" json:"alert"`
	Drafts    int `db:"drafts" json:"drafts"`
	Submitted int `db:"submitted" json:"submitted"`
}
