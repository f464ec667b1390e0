package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mileage-api/internal/models"
	appErrors "github.com/noah-isme/mileage-api/pkg/errors"
)

type profileReaderStub struct {
	profiles     map[string]*models.TrainerProfile
	options      []models.TrainerOption
	err          error
	lastSupervis *string
}

func (s *profileReaderStub) FindByUserID(_ context.Context, userID string) (*models.TrainerProfile, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	p, ok := s.profiles[userID]
	return p, ok, nil
}

func (s *profileReaderStub) ListOptions(_ context.Context, supervisorID *string) ([]models.TrainerOption, error) {
	s.lastSupervis = supervisorID
	return s.options, s.err
}

func claims(id string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: role}
}

func strPtr(v string) *string { return &v }

func TestClassifyCaller(t *testing.T) {
	cases := map[models.UserRole]CallerClass{
		models.RoleSuperAdmin:        CallerAdmin,
		models.RoleAdmin:             CallerAdmin,
		models.RoleProjectManager:    CallerAdmin,
		models.RoleMonitoringManager: CallerAdmin,
		models.RoleSupervisor:        CallerSupervisor,
		models.RoleTrainer:           CallerOwner,
		models.UserRole("GUEST"):     CallerOwner,
	}
	for role, want := range cases {
		assert.Equal(t, want, ClassifyCaller(claims("u", role)), string(role))
	}
}

func TestPolicyScopeOwnerIgnoresFilters(t *testing.T) {
	policy := NewMileagePolicy(&profileReaderStub{})
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	scoped, err := policy.Scope(claims("trainer-1", models.RoleTrainer), models.MileageFilter{Trainer: "someone", Date: &day, Page: 2})
	require.NoError(t, err)
	require.NotNil(t, scoped.TrainerID)
	assert.Equal(t, "trainer-1", *scoped.TrainerID)
	assert.Empty(t, scoped.Trainer)
	assert.Nil(t, scoped.Date)
	assert.Nil(t, scoped.SupervisorID)
	assert.Equal(t, 2, scoped.Page)
}

func TestPolicyScopeSupervisorAndAdmin(t *testing.T) {
	policy := NewMileagePolicy(&profileReaderStub{})
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	trainerID := "3c9f7e21-4b8a-4d2e-a1f0-5e6b7c8d9a10"
	requested := models.MileageFilter{Trainer: trainerID, Date: &day}

	sup, err := policy.Scope(claims("sup-1", models.RoleSupervisor), requested)
	require.NoError(t, err)
	require.NotNil(t, sup.SupervisorID)
	assert.Equal(t, "sup-1", *sup.SupervisorID)
	assert.Equal(t, trainerID, sup.Trainer)
	assert.Nil(t, sup.TrainerID)

	admin, err := policy.Scope(claims("admin-1", models.RoleProjectManager), requested)
	require.NoError(t, err)
	assert.Nil(t, admin.SupervisorID)
	assert.Nil(t, admin.TrainerID)
	assert.Equal(t, &day, admin.Date)

	_, err = policy.Scope(nil, requested)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = policy.Scope(claims("sup-1", models.RoleSupervisor), models.MileageFilter{Trainer: "alice"})
	assert.Equal(t, []string{"trainer must be a trainer id."}, validationDetails(t, err))
}

func TestPolicyCanView(t *testing.T) {
	stub := &profileReaderStub{profiles: map[string]*models.TrainerProfile{
		"trainer-1": {UserID: "trainer-1", SupervisorID: strPtr("sup-1")},
	}}
	policy := NewMileagePolicy(stub)
	record := &models.MileageRecord{ID: "rec-1", TrainerID: "trainer-1"}
	ctx := context.Background()

	cases := []struct {
		name   string
		caller *models.JWTClaims
		want   bool
	}{
		{"owner", claims("trainer-1", models.RoleTrainer), true},
		{"other trainer", claims("trainer-2", models.RoleTrainer), false},
		{"supervisor of trainer", claims("sup-1", models.RoleSupervisor), true},
		{"other supervisor", claims("sup-2", models.RoleSupervisor), false},
		{"admin", claims("admin-1", models.RoleAdmin), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := policy.CanView(ctx, tc.caller, record)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}

	ok, err := policy.CanView(ctx, claims("sup-1", models.RoleSupervisor), &models.MileageRecord{TrainerID: "no-profile"})
	require.NoError(t, err)
	assert.False(t, ok)

	stub.err = errors.New("db down")
	_, err = policy.CanView(ctx, claims("sup-1", models.RoleSupervisor), record)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestPolicyCanOverride(t *testing.T) {
	policy := NewMileagePolicy(nil)
	assert.True(t, policy.CanOverride(claims("a", models.RoleMonitoringManager)))
	assert.False(t, policy.CanOverride(claims("s", models.RoleSupervisor)))
	assert.False(t, policy.CanOverride(claims("t", models.RoleTrainer)))
	assert.False(t, policy.CanOverride(nil))
}

func TestPolicyTrainers(t *testing.T) {
	stub := &profileReaderStub{options: []models.TrainerOption{{UserID: "trainer-1", FullName: "Asha"}}}
	policy := NewMileagePolicy(stub)
	ctx := context.Background()

	options, err := policy.Trainers(ctx, claims("sup-1", models.RoleSupervisor))
	require.NoError(t, err)
	assert.Len(t, options, 1)
	require.NotNil(t, stub.lastSupervis)
	assert.Equal(t, "sup-1", *stub.lastSupervis)

	_, err = policy.Trainers(ctx, claims("admin-1", models.RoleAdmin))
	require.NoError(t, err)
	assert.Nil(t, stub.lastSupervis)

	options, err = policy.Trainers(ctx, claims("trainer-1", models.RoleTrainer))
	require.NoError(t, err)
	assert.Empty(t, options)
}
