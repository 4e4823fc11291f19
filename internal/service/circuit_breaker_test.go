package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/oadeyemi/clinic-messenger/internal/config"
	"github.com/oadeyemi/clinic-messenger/internal/service"
)

func newTestBreaker(consecutiveFails uint32) *service.CircuitBreaker {
	return service.NewCircuitBreaker(&config.CircuitBreakerConfig{
		MaxRequests:      3,
		Interval:         10,
		Timeout:          60,
		FailureRatio:     0.6,
		ConsecutiveFails: consecutiveFails,
	}, zap.NewNop())
}

func TestCircuitBreaker_Execute(t *testing.T) {
	t.Run("passes through a successful call", func(t *testing.T) {
		cb := newTestBreaker(5)

		err := cb.Execute(context.Background(), func() error { return nil })
		assert.NoError(t, err)
		assert.Equal(t, service.CircuitClosed, cb.GetState())
	})

	t.Run("propagates the wrapped error", func(t *testing.T) {
		cb := newTestBreaker(5)

		wantErr := errors.New("gateway rejected")
		err := cb.Execute(context.Background(), func() error { return wantErr })
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("a cancelled context short-circuits the call", func(t *testing.T) {
		cb := newTestBreaker(5)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := cb.Execute(ctx, func() error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("opens after consecutive failures and blocks further calls", func(t *testing.T) {
		cb := newTestBreaker(3)

		for i := 0; i < 3; i++ {
			_ = cb.Execute(context.Background(), func() error { return errors.New("down") })
		}
		assert.Equal(t, service.CircuitOpen, cb.GetState())

		err := cb.Execute(context.Background(), func() error { return nil })
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "circuit breaker is open")
	})
}

func TestCircuitBreaker_GetCounts(t *testing.T) {
	cb := newTestBreaker(100)

	_ = cb.Execute(context.Background(), func() error { return nil })
	_ = cb.Execute(context.Background(), func() error { return errors.New("fail") })

	requests, failures := cb.GetCounts()
	assert.Equal(t, uint32(2), requests)
	assert.Equal(t, uint32(1), failures)
}
