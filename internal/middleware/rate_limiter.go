package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"
)

const (
	visitorSweepInterval = time.Minute
	visitorIdleTTL       = 3 * time.Minute
)

// RateLimiter enforces a per-client token bucket keyed by remote IP. Clients
// that go quiet are evicted by a background sweep so the map does not grow
// without bound.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter allowing r events per second with the
// given burst per client IP.
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    b,
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) sweep() {
	for {
		time.Sleep(visitorSweepInterval)

		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > visitorIdleTTL {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Middleware rejects requests over budget with 429. The bucket key is the
// host part of RemoteAddr so connections from different source ports on the
// same machine share one budget.
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !rl.limiterFor(ip).Allow() {
				w.WriteHeader(http.StatusTooManyRequests)
				render.JSON(w, r, map[string]interface{}{
					"error":   ErrorCodeRateLimitExceeded,
					"message": ErrorMessageRateLimitExceeded,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
