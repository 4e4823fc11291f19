// Package scheduler provides the interval loop that drives outbox delivery.
package scheduler

import "errors"

// Start and Stop reject redundant transitions with these sentinels so the
// HTTP layer can answer with 409 instead of 500.
var (
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)
