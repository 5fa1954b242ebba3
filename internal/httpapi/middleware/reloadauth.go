package middleware

import (
	"crypto/sha256"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcryptLimit is bcrypt's input-length limit; tokens longer than this are
// pre-hashed with SHA-256 before comparison, mirroring the same
// pre-hash-then-bcrypt discipline the teacher's API key hashing uses.
const bcryptLimit = 72

// BearerAuth requires an "Authorization: Bearer <token>" header whose token
// matches tokenHash via constant-time bcrypt comparison. It guards
// POST /sidecar/config/reload only — every other route is unauthenticated,
// matching the control-plane contract.
func BearerAuth(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || !compareTokenHash(tokenHash, token) {
				correlationID := GetCorrelationID(r.Context())

				if logger != nil {
					logger.Warn("reload request rejected: invalid or missing bearer token",
						slog.String("correlation_id", correlationID),
						slog.String("path", r.URL.Path),
					)
				}

				if err := writeProblem(w, r, http.StatusUnauthorized, "A valid bearer token is required"); err != nil && logger != nil {
					logger.Error("failed to write bearer auth error response", slog.String("error", err.Error()))
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "

	if !strings.HasPrefix(header, prefix) {
		return "", false
	}

	token := strings.TrimPrefix(header, prefix)
	if token == "" {
		return "", false
	}

	return token, true
}

// compareTokenHash mirrors the teacher's CompareAPIKeyHash: tokens longer
// than bcrypt's 72-byte limit are pre-hashed with SHA-256 first, then
// compared in constant time via bcrypt.
func compareTokenHash(hash, token string) bool {
	if hash == "" || token == "" {
		return false
	}

	input := []byte(token)
	if len(token) > bcryptLimit {
		sum := sha256.Sum256(input)
		input = sum[:]
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), input) == nil
}
