package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/oadeyemi/clinic-messenger/internal/config"
	"github.com/oadeyemi/clinic-messenger/internal/scheduler"
)

type schedulerService struct {
	scheduler     *scheduler.Scheduler
	outboxService OutboxService
	logger        *zap.Logger
}

func NewSchedulerService(
	cfg *config.Config,
	outboxService OutboxService,
	logger *zap.Logger,
) SchedulerService {
	interval := time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute

	svc := &schedulerService{
		outboxService: outboxService,
		logger:        logger,
	}

	svc.scheduler = scheduler.NewScheduler(logger, interval, svc.executeProcessTask)
	return svc
}

func (s *schedulerService) Start() error {
	ctx := context.Background()
	return s.scheduler.Start(ctx)
}

func (s *schedulerService) Stop() error {
	return s.scheduler.Stop()
}

func (s *schedulerService) IsRunning() bool {
	return s.scheduler.IsRunning()
}

func (s *schedulerService) executeProcessTask(_ context.Context) error {
	_, err := s.outboxService.ProcessOutbox()
	return err
}
