// Package service provides business logic implementation for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/oadeyemi/clinic-messenger/internal/config"
)

// CircuitState mirrors the gobreaker state for health reporting.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitHalfOpen CircuitState = "half_open"
	CircuitOpen     CircuitState = "open"
)

type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

func NewCircuitBreaker(cfg *config.CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        "gateway-circuit-breaker",
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.ConsecutiveFails && failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	}

	return &CircuitBreaker{
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

// Execute runs the given function through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	_, err := cb.cb.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			return nil, fn()
		}
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			cb.logger.Warn("Circuit breaker is open, request blocked")
			return fmt.Errorf("gateway unavailable: circuit breaker is open")
		}
		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			cb.logger.Warn("Circuit breaker: too many requests")
			return fmt.Errorf("gateway unavailable: too many requests")
		}
		return err
	}

	return nil
}

// GetState returns the current state of the circuit breaker.
func (cb *CircuitBreaker) GetState() CircuitState {
	switch cb.cb.State() {
	case gobreaker.StateClosed:
		return CircuitClosed
	case gobreaker.StateHalfOpen:
		return CircuitHalfOpen
	case gobreaker.StateOpen:
		return CircuitOpen
	default:
		return CircuitClosed
	}
}

// GetCounts returns the current counts of the circuit breaker.
func (cb *CircuitBreaker) GetCounts() (requests, failures uint32) {
	counts := cb.cb.Counts()
	return counts.Requests, counts.TotalFailures
}
