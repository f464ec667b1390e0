package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mileage-api/internal/models"
)

// TrainerProfileRepository reads the trainer to supervisor mapping.
type TrainerProfileRepository struct {
	db *sqlx.DB
}

// NewTrainerProfileRepository constructs the repository.
func NewTrainerProfileRepository(db *sqlx.DB) *TrainerProfileRepository {
	return &TrainerProfileRepository{db: db}
}

// FindByUserID returns the profile for a trainer. The bool is false when no
// profile exists; that is not an error.
func (r *TrainerProfileRepository) FindByUserID(ctx context.Context, userID string) (*models.TrainerProfile, bool, error) {
	const query = `SELECT user_id, supervisor_id, pu_code, created_at, updated_at FROM trainer_profiles WHERE user_id = $1`
	var profile models.TrainerProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("find trainer profile: %w", err)
	}
	return &profile, true, nil
}

// ListOptions returns trainers for the filter dropdown, optionally limited to one supervisor.
func (r *TrainerProfileRepository) ListOptions(ctx context.Context, supervisorID *string) ([]models.TrainerOption, error) {
	query := `SELECT tp.user_id, u.full_name, u.email, tp.pu_code FROM trainer_profiles tp JOIN users u ON u.id = tp.user_id WHERE u.active = TRUE`
	var args []interface{}
	if supervisorID != nil {
		query += ` AND tp.supervisor_id = $1`
		args = append(args, *supervisorID)
	}
	query += ` ORDER BY u.full_name ASC`

	var options []models.TrainerOption
	if err := r.db.SelectContext(ctx, &options, query, args...); err != nil {
		return nil, fmt.Errorf("list trainer options: %w", err)
	}
	return options, nil
}
