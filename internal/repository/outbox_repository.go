package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oadeyemi/clinic-messenger/internal/models"
)

const messageColumns = `id, patient_id, channel, to_address, locale, template_key, payload, status,
	attempts, error, gateway_message_id, created_at, scheduled_for, last_attempt_at,
	delivery_receipt_at, updated_at`

type outboxRepository struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) OutboxRepository {
	return &outboxRepository{
		db: db,
	}
}

// CreateMessage inserts a new queued message.
func (r *outboxRepository) CreateMessage(msg *models.OutboundMessage) error {
	query := `
		INSERT INTO messages (id, patient_id, channel, to_address, locale, template_key,
		                      payload, status, attempts, created_at, scheduled_for, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	_, err := r.db.Exec(query,
		msg.ID, msg.PatientID, msg.Channel, msg.To, msg.Locale, msg.TemplateKey,
		msg.Payload, msg.Status, msg.Attempts, msg.CreatedAt, msg.ScheduledFor, msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// GetMessage retrieves a single message by id.
func (r *outboxRepository) GetMessage(id uuid.UUID) (*models.OutboundMessage, error) {
	query := fmt.Sprintf(`SELECT %s FROM messages WHERE id = $1`, messageColumns)

	var msg models.OutboundMessage
	err := r.db.Get(&msg, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &msg, nil
}

// ClaimPending flips eligible queued messages to sending and returns them.
// SKIP LOCKED keeps two concurrent processor runs from claiming the same row.
func (r *outboxRepository) ClaimPending(limit int) ([]*models.OutboundMessage, error) {
	query := fmt.Sprintf(`
		UPDATE messages
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM messages
			WHERE status = $2
			  AND (scheduled_for IS NULL OR scheduled_for <= NOW())
			ORDER BY created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s
	`, messageColumns)

	var messages []*models.OutboundMessage
	err := r.db.Select(&messages, query, models.MessageStatusSending, models.MessageStatusQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending messages: %w", err)
	}

	return messages, nil
}

// MarkSent marks a message as sent. Repeat calls on an already sent message
// succeed without touching attempts.
func (r *outboxRepository) MarkSent(id uuid.UUID, gatewayMessageID *string) error {
	query := `
		UPDATE messages
		SET status = $2,
		    gateway_message_id = COALESCE($3, gateway_message_id),
		    last_attempt_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $5, $2)
	`

	var msgID sql.NullString
	if gatewayMessageID != nil {
		msgID = sql.NullString{String: *gatewayMessageID, Valid: true}
	}

	_, err := r.db.Exec(query, id, models.MessageStatusSent, msgID,
		models.MessageStatusQueued, models.MessageStatusSending)
	if err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}

	return nil
}

// MarkFailed records a failed attempt. The attempts increment and the status
// transition happen in one statement so a crash cannot split them. A missing
// id updates nothing and reports found=false; the caller decides whether
// that deserves a diagnostic.
func (r *outboxRepository) MarkFailed(id uuid.UUID, errMsg string, maxAttempts int) (bool, error) {
	query := `
		UPDATE messages
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= $3 THEN $4 ELSE $5 END,
		    error = $2,
		    last_attempt_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status IN ($5, $6)
	`

	res, err := r.db.Exec(query, id, errMsg, maxAttempts,
		models.MessageStatusFailed, models.MessageStatusQueued, models.MessageStatusSending)
	if err != nil {
		return false, fmt.Errorf("failed to mark message failed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// MarkDelivered records a delivery receipt for a sent message.
func (r *outboxRepository) MarkDelivered(id uuid.UUID, receivedAt time.Time) error {
	query := `
		UPDATE messages
		SET status = $2, delivery_receipt_at = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $2)
	`

	res, err := r.db.Exec(query, id, models.MessageStatusDelivered, receivedAt, models.MessageStatusSent)
	if err != nil {
		return fmt.Errorf("failed to mark message delivered: %w", err)
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

// RequeueStale returns abandoned sending leases to the queue.
func (r *outboxRepository) RequeueStale(before time.Time) (int64, error) {
	query := `
		UPDATE messages
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND updated_at < $3
	`

	res, err := r.db.Exec(query, models.MessageStatusQueued, models.MessageStatusSending, before)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale messages: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// GetStats returns message counts grouped by status.
func (r *outboxRepository) GetStats() (*models.OutboxStats, error) {
	query := `SELECT status, COUNT(*) AS count FROM messages GROUP BY status`

	rows, err := r.db.Queryx(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox stats: %w", err)
	}
	defer rows.Close()

	stats := &models.OutboxStats{}
	for rows.Next() {
		var (
			status models.MessageStatus
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan outbox stats: %w", err)
		}

		switch status {
		case models.MessageStatusQueued:
			stats.Queued = count
		case models.MessageStatusSending:
			stats.Sending = count
		case models.MessageStatusSent:
			stats.Sent = count
		case models.MessageStatusDelivered:
			stats.Delivered = count
		case models.MessageStatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outbox stats: %w", err)
	}

	return stats, nil
}
