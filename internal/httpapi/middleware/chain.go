// Package middleware provides the HTTP middleware chain for the sidecar's
// control-plane server.
package middleware

import (
	"log/slog"
	"net/http"
)

// Option is a function that applies middleware to a handler.
type Option func(http.Handler) http.Handler

// Apply applies a chain of middleware options to a base handler. Options
// are applied in the order provided (the first option becomes the
// outermost middleware in the chain).
//
// Example:
//
//	handler := middleware.Apply(mux,
//	    middleware.WithCorrelationID(),
//	    middleware.WithRecovery(logger),
//	    middleware.WithRequestLogger(logger),
//	)
func Apply(handler http.Handler, options ...Option) http.Handler {
	for i := len(options) - 1; i >= 0; i-- {
		handler = options[i](handler)
	}

	return handler
}

// WithCorrelationID returns an option that adds correlation ID middleware.
func WithCorrelationID() Option {
	return func(next http.Handler) http.Handler {
		return CorrelationID()(next)
	}
}

// WithRecovery returns an option that adds panic recovery middleware.
func WithRecovery(logger *slog.Logger) Option {
	return func(next http.Handler) http.Handler {
		return Recovery(logger)(next)
	}
}

// WithRequestLogger returns an option that adds request logging middleware.
func WithRequestLogger(logger *slog.Logger) Option {
	return func(next http.Handler) http.Handler {
		return RequestLogger(logger)(next)
	}
}

// WithBearerAuth returns an option that requires a bearer token matching
// tokenHash. If tokenHash is empty, the option is a no-op — the endpoint it
// guards is left unauthenticated, which the caller is responsible for
// refusing to do in production (see Server.NewServer's startup log).
func WithBearerAuth(tokenHash string, logger *slog.Logger) Option {
	if tokenHash == "" {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return BearerAuth(tokenHash, logger)(next)
	}
}

// WithRateLimit returns an option that rate-limits requests through
// limiter. If limiter is nil, the option is a no-op.
func WithRateLimit(limiter *Limiter, logger *slog.Logger) Option {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return RateLimit(limiter, logger)(next)
	}
}
