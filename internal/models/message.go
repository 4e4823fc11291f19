// Package models defines data structures used throughout the application.
package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
)

type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Payload is a flat mapping of placeholder name to string or numeric value,
// stored as jsonb.
type Payload map[string]any

// Value implements driver.Valuer.
func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *Payload) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = nil
		return nil
	default:
		return fmt.Errorf("unsupported payload type %T", src)
	}
}

// OutboundMessage represents a row in the messages table. A message is queued
// durably before any delivery attempt and moves through the status lifecycle
// queued -> sending -> sent -> delivered, or back to queued on a retryable
// failure until attempts reaches the configured maximum, at which point it is
// failed permanently.
type OutboundMessage struct {
	ID                uuid.UUID      `db:"id" json:"id"`
	PatientID         string         `db:"patient_id" json:"patient_id"`
	Channel           Channel        `db:"channel" json:"channel"`
	To                string         `db:"to_address" json:"to"`
	Locale            string         `db:"locale" json:"locale"`
	TemplateKey       string         `db:"template_key" json:"template_key"`
	Payload           Payload        `db:"payload" json:"payload"`
	Status            MessageStatus  `db:"status" json:"status"`
	Attempts          int            `db:"attempts" json:"attempts"`
	Error             sql.NullString `db:"error" json:"error,omitempty"`
	GatewayMessageID  sql.NullString `db:"gateway_message_id" json:"gateway_message_id,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	ScheduledFor      sql.NullTime   `db:"scheduled_for" json:"scheduled_for,omitempty"`
	LastAttemptAt     sql.NullTime   `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	DeliveryReceiptAt sql.NullTime   `db:"delivery_receipt_at" json:"delivery_receipt_at,omitempty"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// MessageTemplate represents a row in the message_templates table. Templates
// are keyed by (key, locale, channel) and are read-only after seeding.
type MessageTemplate struct {
	Key       string        `db:"key" json:"key"`
	Locale    string        `db:"locale" json:"locale"`
	Channel   Channel       `db:"channel" json:"channel"`
	Body      string        `db:"body" json:"body"`
	MaxLength sql.NullInt32 `db:"max_length" json:"max_length,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// OutboxStats holds message counts grouped by status.
type OutboxStats struct {
	Queued    int64 `json:"queued"`
	Sending   int64 `json:"sending"`
	Sent      int64 `json:"sent"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}
