package middleware

// Error codes shared by the middleware chain and the handlers.
const (
	ErrorCodeInternal          = "INTERNAL_ERROR"
	ErrorCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrorCodeRequestTimeout    = "REQUEST_TIMEOUT"
)

// Matching human-readable messages.
const (
	ErrorMessageInternal          = "An internal error occurred"
	ErrorMessageRateLimitExceeded = "Too many requests"
	ErrorMessageRequestTimeout    = "Request timeout"
)
