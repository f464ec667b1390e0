package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/mileage-api/internal/models"
	appErrors "github.com/noah-isme/mileage-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	findByEmailErr   error
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthServiceForTest(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "mileage-api"})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: true, Role: models.RoleTrainer}}
	svc := newAuthServiceForTest(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: " user@example.com ", Password: "password", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleTrainer, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, "10.0.0.1", repo.auditLogs[0].IPAddress)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "123", claims.UserID)
	assert.Equal(t, "mileage-api", claims.Issuer)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: false}}
	svc := newAuthServiceForTest(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", PasswordHash: string(password), Active: true}}
	svc := newAuthServiceForTest(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	repo.findByEmailErr = sql.ErrNoRows
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "password"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "password"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestValidateToken(t *testing.T) {
	svc := newAuthServiceForTest(&mockAuthRepo{})
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, err := svc.generateAccessToken(user, time.Now().UTC())
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	other := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "different"})
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceAuditsFailedLogin(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "t-1", PasswordHash: string(password), Active: true, Role: models.RoleTrainer}}
	svc := newAuthServiceForTest(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "Trainer@Example.com", Password: "nope", IP: "10.0.0.9"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLoginFailed, repo.auditLogs[0].Action)
	assert.JSONEq(t, `{"status":"bad_password"}`, string(repo.auditLogs[0].NewValues))
	assert.False(t, repo.lastLoginUpdated)
}

func TestValidateTokenRejectsForeignClaims(t *testing.T) {
	svc := newAuthServiceForTest(&mockAuthRepo{})

	unknownRole, err := svc.generateAccessToken(&models.User{ID: "u1", Role: "JANITOR"}, time.Now().UTC())
	require.NoError(t, err)
	_, err = svc.ValidateToken(unknownRole)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	foreign := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "someone-else"})
	token, err := foreign.generateAccessToken(&models.User{ID: "u1", Role: models.RoleTrainer}, time.Now().UTC())
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
