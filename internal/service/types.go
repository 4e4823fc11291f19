package service

import (
	"time"

	"github.com/oadeyemi/clinic-messenger/internal/models"
)

// GatewayResult is the gateway's report for one send attempt.
type GatewayResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// QueueMessageParams carries the caller's input for queueing one message.
// Channel and Locale are optional and default to sms and the configured
// default locale.
type QueueMessageParams struct {
	PatientID    string
	To           string
	Channel      models.Channel
	Locale       string
	TemplateKey  string
	Payload      models.Payload
	ScheduledFor *time.Time
}

// ProcessResult aggregates one outbox batch.
type ProcessResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// LoginOutcome classifies a login attempt. Failures are signals, not errors;
// the caller gets no hint about which user (if any) was close to matching.
type LoginOutcome string

const (
	LoginOK                 LoginOutcome = "ok"
	LoginLockedOut          LoginOutcome = "locked_out"
	LoginInvalidFormat      LoginOutcome = "invalid_format"
	LoginInvalidCredentials LoginOutcome = "invalid_credentials"
)

// LoginResult is the outcome of one login attempt. Session is set only for
// LoginOK. LockedUntil is set for LoginLockedOut.
type LoginResult struct {
	Outcome     LoginOutcome        `json:"outcome"`
	Session     *models.AuthSession `json:"session,omitempty"`
	LockedUntil *time.Time          `json:"locked_until,omitempty"`
}

type HealthStatus struct {
	Status               string       `json:"status"`
	SchedulerStatus      string       `json:"scheduler_status"`
	DatabaseStatus       string       `json:"database_status"`
	RedisStatus          string       `json:"redis_status"`
	CircuitBreakerStatus string       `json:"circuit_breaker_status,omitempty"`
	CircuitBreakerState  CircuitState `json:"circuit_breaker_state,omitempty"`
}

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"

	ComponentStatusRunning      = "running"
	ComponentStatusStopped      = "stopped"
	ComponentStatusConnected    = "connected"
	ComponentStatusDisconnected = "disconnected"
)
