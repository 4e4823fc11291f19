package service

import (
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/oadeyemi/clinic-messenger/internal/config"
	"github.com/oadeyemi/clinic-messenger/internal/repository"
)

type Service struct {
	Outbox    OutboxService
	Auth      AuthService
	Scheduler SchedulerService
	Health    HealthService
}

// NewService wires the service layer. The gateway is injected so callers can
// swap the production webhook gateway for a test double.
func NewService(
	cfg *config.Config,
	repo repository.Repository,
	gateway Gateway,
	redisClient *redis.Client,
	logger *zap.Logger,
) *Service {
	outboxService := NewOutboxService(cfg, repo, gateway, redisClient, logger)
	authService := NewAuthService(&cfg.Auth, repo, logger)
	schedulerService := NewSchedulerService(cfg, outboxService, logger)
	healthService := NewHealthService(repo, redisClient, schedulerService, outboxService)

	return &Service{
		Outbox:    outboxService,
		Auth:      authService,
		Scheduler: schedulerService,
		Health:    healthService,
	}
}
