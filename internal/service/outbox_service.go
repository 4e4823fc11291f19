package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oadeyemi/clinic-messenger/internal/config"
	"github.com/oadeyemi/clinic-messenger/internal/models"
	"github.com/oadeyemi/clinic-messenger/internal/phone"
	"github.com/oadeyemi/clinic-messenger/internal/repository"
	"github.com/oadeyemi/clinic-messenger/internal/template"
)

// ErrEmptyRecipient is returned by QueueMessage when no destination is given.
var ErrEmptyRecipient = errors.New("recipient phone number is required")

// ErrEmptyTemplateKey is returned by QueueMessage when no template key is given.
var ErrEmptyTemplateKey = errors.New("template key is required")

const errTemplateNotFound = "Template not found"

type outboxService struct {
	cfg            *config.Config
	repo           repository.Repository
	gateway        Gateway
	redisClient    *redis.Client
	normalizer     *phone.Normalizer
	logger         *zap.Logger
	circuitBreaker *CircuitBreaker
}

func NewOutboxService(
	cfg *config.Config,
	repo repository.Repository,
	gateway Gateway,
	redisClient *redis.Client,
	logger *zap.Logger,
) OutboxService {
	return &outboxService{
		cfg:            cfg,
		repo:           repo,
		gateway:        gateway,
		redisClient:    redisClient,
		normalizer:     phone.NewNormalizer(cfg.Messaging.CountryCode),
		logger:         logger,
		circuitBreaker: NewCircuitBreaker(&cfg.Gateway.CircuitBreaker, logger),
	}
}

// QueueMessage normalizes the destination, fills defaults and durably
// persists a new queued message. The message id is returned; delivery happens
// later, in ProcessOutbox.
func (s *outboxService) QueueMessage(params QueueMessageParams) (uuid.UUID, error) {
	if params.To == "" {
		return uuid.Nil, ErrEmptyRecipient
	}
	if params.TemplateKey == "" {
		return uuid.Nil, ErrEmptyTemplateKey
	}

	channel := params.Channel
	if channel == "" {
		channel = models.ChannelSMS
	}

	locale := params.Locale
	if locale == "" {
		locale = s.cfg.Messaging.DefaultLocale
	}

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	msg := &models.OutboundMessage{
		ID:          id,
		PatientID:   params.PatientID,
		Channel:     channel,
		To:          s.normalizer.Format(params.To),
		Locale:      locale,
		TemplateKey: params.TemplateKey,
		Payload:     params.Payload,
		Status:      models.MessageStatusQueued,
		Attempts:    0,
	}
	if params.ScheduledFor != nil {
		// A past instant is allowed; the message is simply eligible at once.
		msg.ScheduledFor.Time = *params.ScheduledFor
		msg.ScheduledFor.Valid = true
	}

	if err := s.repo.Outbox().CreateMessage(msg); err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("Message queued",
		zap.String("messageID", id.String()),
		zap.String("patientID", params.PatientID),
		zap.String("channel", string(channel)),
		zap.String("templateKey", params.TemplateKey))

	return id, nil
}

// ProcessOutbox drives one batch cycle of delivery: claim a batch of pending
// messages, render and send each one, and record the outcome. Per-message
// failures never abort the batch.
func (s *outboxService) ProcessOutbox() (*ProcessResult, error) {
	s.logger.Info("Starting outbox processing run")

	stale := time.Now().Add(-s.cfg.Outbox.LeaseTimeout())
	requeued, err := s.repo.Outbox().RequeueStale(stale)
	if err != nil {
		s.logger.Error("Failed to requeue stale leases", zap.Error(err))
	} else if requeued > 0 {
		s.logger.Warn("Requeued abandoned sending leases", zap.Int64("count", requeued))
	}

	messages, err := s.repo.Outbox().ClaimPending(s.cfg.Outbox.BatchSize)
	if err != nil {
		s.logger.Error("Failed to claim pending messages", zap.Error(err))
		return nil, fmt.Errorf("failed to claim pending messages: %w", err)
	}

	result := &ProcessResult{}
	if len(messages) == 0 {
		s.logger.Info("No pending messages to send")
		return result, nil
	}

	s.logger.Info("Claimed pending messages", zap.Int("count", len(messages)))

	for _, msg := range messages {
		if s.deliverMessage(msg) {
			result.Sent++
		} else {
			result.Failed++
		}
	}

	s.logger.Info("Outbox processing run finished",
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed))

	return result, nil
}

// deliverMessage runs one message's template lookup, render, send and status
// update to completion. Returns true when the gateway accepted the message.
func (s *outboxService) deliverMessage(msg *models.OutboundMessage) bool {
	tmpl, err := s.repo.Template().Get(msg.TemplateKey, msg.Locale, msg.Channel)
	if err != nil {
		reason := errTemplateNotFound
		if !errors.Is(err, repository.ErrNotFound) {
			reason = fmt.Sprintf("template lookup failed: %v", err)
		}
		s.markFailed(msg, reason)
		return false
	}

	body := template.Render(tmpl.Body, msg.Payload)

	var gwResult *GatewayResult
	sendErr := s.circuitBreaker.Execute(context.Background(), func() error {
		var err error
		gwResult, err = s.gateway.Send(context.Background(), msg.Channel, msg.To, body)
		if err != nil {
			return err
		}
		if !gwResult.Success {
			return errors.New(gwResult.Error)
		}
		return nil
	})

	if sendErr != nil {
		s.markFailed(msg, sendErr.Error())
		return false
	}

	var gatewayMessageID *string
	if gwResult.MessageID != "" {
		gatewayMessageID = &gwResult.MessageID
	}

	if err := s.repo.Outbox().MarkSent(msg.ID, gatewayMessageID); err != nil {
		// The gateway confirmed the send; the lease requeue will retry the
		// status update path and the receiver must tolerate the duplicate.
		s.logger.Error("Failed to mark message sent",
			zap.String("messageID", msg.ID.String()),
			zap.Error(err))
	}

	s.cacheGatewayMessageID(msg.ID, gwResult.MessageID)

	s.logger.Info("Message sent",
		zap.String("messageID", msg.ID.String()),
		zap.String("gatewayMessageID", gwResult.MessageID),
		zap.String("circuitBreakerState", string(s.circuitBreaker.GetState())))

	return true
}

// markFailed records one failed attempt. A message the store no longer knows
// stays a no-op for the batch, but is logged: the processor and the store
// disagreeing about a message's existence is worth an operator's attention.
func (s *outboxService) markFailed(msg *models.OutboundMessage, reason string) {
	found, err := s.repo.Outbox().MarkFailed(msg.ID, reason, s.cfg.Outbox.MaxAttempts)
	if err != nil {
		s.logger.Error("Failed to record message failure",
			zap.String("messageID", msg.ID.String()),
			zap.Error(err))
		return
	}
	if !found {
		s.logger.Warn("Tried to fail a message the store no longer has",
			zap.String("messageID", msg.ID.String()))
		return
	}

	s.logger.Error("Message delivery failed",
		zap.String("messageID", msg.ID.String()),
		zap.String("reason", reason),
		zap.Int("attempt", msg.Attempts+1),
		zap.String("circuitBreakerState", string(s.circuitBreaker.GetState())))
}

// cacheGatewayMessageID stores the provider's message id in Redis so delivery
// receipts can be correlated quickly. Best effort.
func (s *outboxService) cacheGatewayMessageID(id uuid.UUID, gatewayMessageID string) {
	if gatewayMessageID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cacheKey := fmt.Sprintf("gateway_message:%s", gatewayMessageID)
	if err := s.redisClient.Set(ctx, cacheKey, id.String(), 24*time.Hour).Err(); err != nil {
		s.logger.Warn("Failed to cache gateway message id",
			zap.String("gatewayMessageID", gatewayMessageID),
			zap.Error(err))
	}
}

// RecordDeliveryReceipt flips a sent message to delivered. Called by the
// external receipt handler, not by the processor.
func (s *outboxService) RecordDeliveryReceipt(id uuid.UUID, receivedAt time.Time) error {
	return s.repo.Outbox().MarkDelivered(id, receivedAt)
}

// GetMessage retrieves one message by id.
func (s *outboxService) GetMessage(id uuid.UUID) (*models.OutboundMessage, error) {
	return s.repo.Outbox().GetMessage(id)
}

// GetStats returns message counts grouped by status.
func (s *outboxService) GetStats() (*models.OutboxStats, error) {
	return s.repo.Outbox().GetStats()
}

func (s *outboxService) GetCircuitBreakerStatus() (state CircuitState, requests, failures uint32) {
	state = s.circuitBreaker.GetState()
	requests, failures = s.circuitBreaker.GetCounts()
	return
}
