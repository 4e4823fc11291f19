package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/oadeyemi/clinic-messenger/internal/models"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("not found")

// Repository interface defines all repository operations.
type Repository interface {
	// Ping checks database connectivity
	Ping() error

	// Outbox returns the outbound message repository
	Outbox() OutboxRepository

	// Template returns the message template repository
	Template() TemplateRepository

	// User returns the user repository
	User() UserRepository

	// Session returns the auth session repository
	Session() SessionRepository

	// Lockout returns the login lockout repository
	Lockout() LockoutRepository
}

// OutboxRepository defines operations on the durable outbound message table.
// Every mutation updates a single row atomically.
type OutboxRepository interface {
	CreateMessage(msg *models.OutboundMessage) error
	GetMessage(id uuid.UUID) (*models.OutboundMessage, error)

	// ClaimPending atomically flips up to limit eligible queued messages to
	// the sending state and returns them. A message claimed here is invisible
	// to concurrent claims until it is marked sent/failed or its lease is
	// requeued.
	ClaimPending(limit int) ([]*models.OutboundMessage, error)

	// MarkSent marks a message sent. Calling it again for an already sent
	// message is a no-op success.
	MarkSent(id uuid.UUID, gatewayMessageID *string) error

	// MarkFailed records a failed attempt: attempts is incremented and the
	// message goes back to queued, or to failed once attempts reaches
	// maxAttempts. Returns false when no matching row was updated.
	MarkFailed(id uuid.UUID, errMsg string, maxAttempts int) (bool, error)

	// MarkDelivered records an external delivery receipt for a sent message.
	MarkDelivered(id uuid.UUID, receivedAt time.Time) error

	// RequeueStale returns messages stuck in sending since before the given
	// instant to the queued state. Crash recovery for abandoned leases.
	RequeueStale(before time.Time) (int64, error)

	GetStats() (*models.OutboxStats, error)
}

// TemplateRepository defines read access to the seeded message templates.
type TemplateRepository interface {
	Get(key, locale string, channel models.Channel) (*models.MessageTemplate, error)
	Count() (int64, error)
}

// UserRepository defines operations on the clinic staff user table.
type UserRepository interface {
	GetActiveUsers() ([]*models.User, error)
	CreateUser(user *models.User) error
}

// SessionRepository defines operations on the auth session table.
type SessionRepository interface {
	CreateSession(session *models.AuthSession) error
	DeleteSession(id uuid.UUID) error
	TouchSession(id uuid.UUID, seenAt time.Time) error
}

// LockoutRepository persists the process-wide login lockout state.
type LockoutRepository interface {
	Get() (*models.LockoutState, error)
	Save(failedAttempts int, lockoutUntil *time.Time) error
}
