package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/oadeyemi/clinic-messenger/internal/models"
)

// Gateway sends one fully rendered message over a concrete channel. Ordinary
// delivery failures (rejected numbers, provider errors) come back as a result
// with Success=false; a returned error means the attempt never reached the
// provider. The outbox processor treats both identically.
type Gateway interface {
	Send(ctx context.Context, channel models.Channel, to, body string) (*GatewayResult, error)
}

// OutboxService owns the durable outbound message queue.
type OutboxService interface {
	QueueMessage(params QueueMessageParams) (uuid.UUID, error)
	ProcessOutbox() (*ProcessResult, error)
	RecordDeliveryReceipt(id uuid.UUID, receivedAt time.Time) error
	GetMessage(id uuid.UUID) (*models.OutboundMessage, error)
	GetStats() (*models.OutboxStats, error)
	GetCircuitBreakerStatus() (state CircuitState, requests, failures uint32)
}

// AuthService owns PIN login, the lockout counter and the current session.
type AuthService interface {
	Login(pin, deviceKey string) (*LoginResult, error)
	Logout(sessionID uuid.UUID) error

	// Touch records activity on a session by advancing its last-seen
	// timestamp.
	Touch(sessionID uuid.UUID) error

	CurrentSession() *models.AuthSession
	RegisterUser(name, pin string) (*models.User, error)
}

type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool
}

type HealthService interface {
	GetHealth() *HealthStatus
}
