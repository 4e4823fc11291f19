package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/oadeyemi/clinic-messenger/internal/repository"
)

type healthService struct {
	repo             repository.Repository
	redisClient      *redis.Client
	schedulerService SchedulerService
	outboxService    OutboxService
}

func NewHealthService(
	repo repository.Repository,
	redisClient *redis.Client,
	schedulerService SchedulerService,
	outboxService OutboxService,
) HealthService {
	return &healthService{
		repo:             repo,
		redisClient:      redisClient,
		schedulerService: schedulerService,
		outboxService:    outboxService,
	}
}

func (s *healthService) GetHealth() *HealthStatus {
	status := &HealthStatus{
		Status: HealthStatusHealthy,
	}

	if s.schedulerService.IsRunning() {
		status.SchedulerStatus = ComponentStatusRunning
	} else {
		status.SchedulerStatus = ComponentStatusStopped
	}

	status.DatabaseStatus = s.checkDatabaseHealth()
	status.RedisStatus = s.checkRedisHealth()

	state, requests, failures := s.outboxService.GetCircuitBreakerStatus()
	status.CircuitBreakerState = state
	if requests > 0 {
		failureRate := float64(failures) / float64(requests) * 100
		status.CircuitBreakerStatus = fmt.Sprintf("Requests: %d, Failures: %d (%.1f%%)", requests, failures, failureRate)
	} else {
		status.CircuitBreakerStatus = "No requests yet"
	}

	if status.DatabaseStatus != ComponentStatusConnected || status.RedisStatus != ComponentStatusConnected {
		status.Status = HealthStatusUnhealthy
	}

	// An open circuit breaker means delivery is paused, not that the service
	// is down.
	if state == CircuitOpen {
		status.Status = HealthStatusDegraded
	}

	return status
}

func (s *healthService) checkDatabaseHealth() string {
	if err := s.repo.Ping(); err != nil {
		return ComponentStatusDisconnected
	}
	return ComponentStatusConnected
}

func (s *healthService) checkRedisHealth() string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		return ComponentStatusDisconnected
	}

	return ComponentStatusConnected
}
