package models

import "time"

// TrainerProfile links a trainer to the supervisor responsible for them.
type TrainerProfile struct {
	UserID       string    `db:"user_id" json:"user_id"`
	SupervisorID *string   `db:"supervisor_id" json:"supervisor_id,omitempty"`
	PUCode       *string   `db:"pu_code" json:"pu_code,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SupervisedBy reports whether supervisorID is this trainer's supervisor.
func (p *TrainerProfile) SupervisedBy(supervisorID string) bool {
	return p != nil && p.SupervisorID != nil && *p.SupervisorID == supervisorID
}

// TrainerOption is an entry of the trainer filter dropdown.
type TrainerOption struct {
	UserID   string  `db:"user_id" json:"user_id"`
	FullName string  `db:"full_name" json:"full_name"`
	Email    string  `db:"email" json:"email"`
	PUCode   *string `db:"pu_code" json:"pu_code,omitempty"`
}
