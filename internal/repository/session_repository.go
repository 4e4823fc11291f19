package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oadeyemi/clinic-messenger/internal/models"
)

type sessionRepository struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepository{
		db: db,
	}
}

// CreateSession persists a new session row.
func (r *sessionRepository) CreateSession(session *models.AuthSession) error {
	query := `
		INSERT INTO auth_sessions (id, user_id, device_key, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(query, session.ID, session.UserID, session.DeviceKey,
		session.CreatedAt, session.LastSeenAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// DeleteSession removes a session row on logout.
func (r *sessionRepository) DeleteSession(id uuid.UUID) error {
	res, err := r.db.Exec(`DELETE FROM auth_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// TouchSession updates last_seen_at for an active session. A missing session
// returns ErrNotFound, matching DeleteSession.
func (r *sessionRepository) TouchSession(id uuid.UUID, seenAt time.Time) error {
	res, err := r.db.Exec(`UPDATE auth_sessions SET last_seen_at = $2 WHERE id = $1`, id, seenAt)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
