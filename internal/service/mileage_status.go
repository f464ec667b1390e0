package service

import "github.com/noah-isme/mileage-api/internal/models"

const (
	defaultWarningAboveKM = 120
	defaultAlertAboveKM   = 125
)

// StatusEngine maps odometer readings to a distance and an alert tier.
// A distance strictly above WarningAboveKM is a WARNING and strictly above
// AlertAboveKM an ALERT.
type StatusEngine struct {
	WarningAboveKM int
	AlertAboveKM   int
}

// NewStatusEngine returns an engine with the given thresholds, using the
// standard 120/125 km tiers for non-positive values.
func NewStatusEngine(warningAbove, alertAbove int) StatusEngine {
	if warningAbove <= 0 {
		warningAbove = defaultWarningAboveKM
	}
	if alertAbove <= 0 {
		alertAbove = defaultAlertAboveKM
	}
	return StatusEngine{WarningAboveKM: warningAbove, AlertAboveKM: alertAbove}
}

// Derive returns distance and status when both readings are present and nil
// for both otherwise. It does not validate ordering, so end < start yields a
// negative distance classified as OK.
func (e StatusEngine) Derive(startKM, endKM *int) (*int, *models.MileageStatus) {
	if startKM == nil || endKM == nil {
		return nil, nil
	}
	distance := *endKM - *startKM
	status := e.Classify(distance)
	return &distance, &status
}

// Classify returns the tier for a distance.
func (e StatusEngine) Classify(distance int) models.MileageStatus {
	switch {
	case distance > e.AlertAboveKM:
		return models.MileageStatusAlert
	case distance > e.WarningAboveKM:
		return models.MileageStatusWarning
	default:
		return models.MileageStatusOK
	}
}

// Apply rederives distance and status on record in place. An overridden status
// is kept when the distance can still be computed.
func (e StatusEngine) Apply(record *models.MileageRecord) {
	start := record.StartKM
	distance, status := e.Derive(&start, record.EndKM)
	record.Distance = distance
	if distance == nil {
		record.Status = nil
		record.StatusOverridden = false
		return
	}
	if record.StatusOverridden && record.Status != nil {
		return
	}
	record.Status = status
}
