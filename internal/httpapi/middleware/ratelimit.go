package middleware

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

const burstCapacityMultiplier = 2

// Limiter is a single global token bucket, guarding POST /sidecar/config/reload.
// Reload is a single-operator action, not a per-plugin one, so there is no
// per-caller tier. No other control-plane endpoint is rate-limited.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a Limiter allowing rps requests per second with a burst
// capacity of 2*rps.
func NewLimiter(rps int) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), rps*burstCapacityMultiplier),
	}
}

// RateLimit returns middleware that rejects requests with 429 once limiter's
// budget is exhausted.
func RateLimit(limiter *Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.limiter.Allow() {
				correlationID := GetCorrelationID(r.Context())

				detail := "Rate limit exceeded. Please retry after some time."
				if err := writeProblem(w, r, http.StatusTooManyRequests, detail); err != nil && logger != nil {
					logger.Error("failed to write rate limit error response",
						slog.String("correlation_id", correlationID),
						slog.String("error", err.Error()),
					)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
