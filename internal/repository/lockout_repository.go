package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/oadeyemi/clinic-messenger/internal/models"
)

type lockoutRepository struct {
	db *sqlx.DB
}

func NewLockoutRepository(db *sqlx.DB) LockoutRepository {
	return &lockoutRepository{
		db: db,
	}
}

// Get reads the singleton lockout row. A missing row reads as a clean state.
func (r *lockoutRepository) Get() (*models.LockoutState, error) {
	query := `SELECT failed_attempts, lockout_until, updated_at FROM auth_lockout WHERE id = 1`

	var state models.LockoutState
	err := r.db.Get(&state, query)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.LockoutState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lockout state: %w", err)
	}

	return &state, nil
}

// Save upserts the singleton lockout row in one atomic statement.
func (r *lockoutRepository) Save(failedAttempts int, lockoutUntil *time.Time) error {
	query := `
		INSERT INTO auth_lockout (id, failed_attempts, lockout_until, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET failed_attempts = EXCLUDED.failed_attempts,
		    lockout_until = EXCLUDED.lockout_until,
		    updated_at = EXCLUDED.updated_at
	`

	var until sql.NullTime
	if lockoutUntil != nil {
		until = sql.NullTime{Time: *lockoutUntil, Valid: true}
	}

	if _, err := r.db.Exec(query, failedAttempts, until); err != nil {
		return fmt.Errorf("failed to save lockout state: %w", err)
	}

	return nil
}
