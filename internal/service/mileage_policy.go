package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/noah-isme/mileage-api/internal/models"
	appErrors "github.com/noah-isme/mileage-api/pkg/errors"
)

// CallerClass groups JWT roles by what they may see in the mileage workflow.
type CallerClass int

const (
	CallerOwner CallerClass = iota
	CallerSupervisor
	CallerAdmin
)

func (c CallerClass) String() string {
	switch c {
	case CallerAdmin:
		return "admin"
	case CallerSupervisor:
		return "supervisor"
	default:
		return "owner"
	}
}

// ClassifyCaller maps a role onto its caller class. Unknown roles are owners.
func ClassifyCaller(caller *models.JWTClaims) CallerClass {
	if caller == nil {
		return CallerOwner
	}
	for _, role := range models.AdminRoles {
		if caller.Role == role {
			return CallerAdmin
		}
	}
	if caller.Role == models.RoleSupervisor {
		return CallerSupervisor
	}
	return CallerOwner
}

type trainerProfileReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.TrainerProfile, bool, error)
	ListOptions(ctx context.Context, supervisorID *string) ([]models.TrainerOption, error)
}

// MileagePolicy decides which records a caller may read and change.
type MileagePolicy struct {
	profiles trainerProfileReader
}

// NewMileagePolicy constructs the policy.
func NewMileagePolicy(profiles trainerProfileReader) *MileagePolicy {
	return &MileagePolicy{profiles: profiles}
}

// Scope combines the caller's visibility with the requested filters. Owners are
// locked to their own records and their trainer and date filters are dropped.
func (p *MileagePolicy) Scope(caller *models.JWTClaims, requested models.MileageFilter) (models.MileageFilter, error) {
	if caller == nil {
		return models.MileageFilter{}, appErrors.ErrUnauthorized
	}
	scoped := models.MileageFilter{
		DateFrom: requested.DateFrom,
		DateTo:   requested.DateTo,
		Page:     requested.Page,
		PageSize: requested.PageSize,
	}
	class := ClassifyCaller(caller)
	if class != CallerOwner && requested.Trainer != "" {
		if _, err := uuid.Parse(requested.Trainer); err != nil {
			msg := "trainer must be a trainer id."
			return models.MileageFilter{}, appErrors.WithDetails(appErrors.ErrValidation, msg, []string{msg})
		}
	}
	switch class {
	case CallerAdmin:
		scoped.Trainer = requested.Trainer
		scoped.Date = requested.Date
	case CallerSupervisor:
		supervisorID := caller.UserID
		scoped.SupervisorID = &supervisorID
		scoped.Trainer = requested.Trainer
		scoped.Date = requested.Date
	default:
		ownerID := caller.UserID
		scoped.TrainerID = &ownerID
	}
	return scoped, nil
}

// CanView reports whether the caller may read record.
func (p *MileagePolicy) CanView(ctx context.Context, caller *models.JWTClaims, record *models.MileageRecord) (bool, error) {
	if caller == nil || record == nil {
		return false, nil
	}
	if record.TrainerID == caller.UserID {
		return true, nil
	}
	switch ClassifyCaller(caller) {
	case CallerAdmin:
		return true, nil
	case CallerSupervisor:
		if p.profiles == nil {
			return false, nil
		}
		profile, found, err := p.profiles.FindByUserID(ctx, record.TrainerID)
		if err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainer profile")
		}
		return found && profile.SupervisedBy(caller.UserID), nil
	default:
		return false, nil
	}
}

// CanOverride reports whether the caller may set a record status by hand.
func (p *MileagePolicy) CanOverride(caller *models.JWTClaims) bool {
	return caller != nil && ClassifyCaller(caller) == CallerAdmin
}

// Trainers lists the trainers the caller may filter by.
func (p *MileagePolicy) Trainers(ctx context.Context, caller *models.JWTClaims) ([]models.TrainerOption, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var supervisorID *string
	switch ClassifyCaller(caller) {
	case CallerAdmin:
	case CallerSupervisor:
		id := caller.UserID
		supervisorID = &id
	default:
		return []models.TrainerOption{}, nil
	}
	options, err := p.profiles.ListOptions(ctx, supervisorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trainers")
	}
	if options == nil {
		options = []models.TrainerOption{}
	}
	return options, nil
}
