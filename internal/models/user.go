package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User represents a clinic staff member able to log in with a PIN.
// PinHash is the hex-encoded PBKDF2 output; the PIN itself is never stored.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	PinHash   string    `db:"pin_hash" json:"-"`
	PinSalt   string    `db:"pin_salt" json:"-"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AuthSession represents a row in the auth_sessions table. Created on
// successful login, deleted on logout. Multiple concurrent sessions per user
// are permitted.
type AuthSession struct {
	ID         uuid.UUID `db:"id" json:"id"`
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	DeviceKey  string    `db:"device_key" json:"device_key"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	LastSeenAt time.Time `db:"last_seen_at" json:"last_seen_at"`
}

// LockoutState is the process-wide login lockout counter, persisted so it
// survives restarts. LockoutUntil set and in the future means login attempts
// are rejected without consulting credentials.
type LockoutState struct {
	FailedAttempts int          `db:"failed_attempts" json:"failed_attempts"`
	LockoutUntil   sql.NullTime `db:"lockout_until" json:"lockout_until,omitempty"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// Locked reports whether the lockout window is active at the given instant.
func (s *LockoutState) Locked(now time.Time) bool {
	return s.LockoutUntil.Valid && now.Before(s.LockoutUntil.Time)
}
