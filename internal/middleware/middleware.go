// Package middleware provides the HTTP cross-cutting layers shared by every
// route: request ids, request logging, panic recovery, CORS, per-client rate
// limiting, and handler timeouts.
package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config carries the knobs for the full middleware stack.
type Config struct {
	Logger *zap.Logger

	CORS *CORSConfig

	RateLimit      rate.Limit
	RateLimitBurst int

	RequestTimeout time.Duration
}

// Chain assembles the middleware stack around a handler. RequestID sits
// outermost so every inner layer, Logger included, can read the id from the
// request context. Timeout is innermost so the budget covers only handler
// work, not the bookkeeping layers above it.
func Chain(config *Config) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(config.RateLimit, config.RateLimitBurst)

	return func(handler http.Handler) http.Handler {
		h := Timeout(config.RequestTimeout)(handler)
		h = limiter.Middleware()(h)
		if config.CORS != nil {
			h = CORS(config.CORS)(h)
		}
		h = Recovery(config.Logger)(h)
		h = Logger(config.Logger)(h)
		return RequestID(h)
	}
}
