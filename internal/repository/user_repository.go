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

	"github.com/noah-isme/mileage-api/internal/models"
)

// UserRepository reads login accounts and writes the shared audit trail.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail looks an account up case-insensitively. sql.ErrNoRows is returned unwrapped.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `
SELECT id, email, password_hash, full_name, role, active, last_login, created_at, updated_at
FROM users
WHERE LOWER(email) = $1
LIMIT 1`
	var user models.User
	err := r.db.GetContext(ctx, &user, query, strings.ToLower(strings.TrimSpace(email)))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("find user %q: %w", email, err)
	}
	return &user, nil
}

// UpdateLastLogin stamps a successful sign-in.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, ts)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateAuditLog appends an entry to audit_logs, filling in id and timestamp
// when the caller left them empty.
func (r *UserRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit log %s: %w", entry.Action, err)
	}
	return nil
}
