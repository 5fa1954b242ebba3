package middleware

import (
	"crypto/sha256"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// hashToken mirrors compareTokenHash's own pre-hash-then-bcrypt discipline,
// so a hash produced here is comparable by BearerAuth.
func hashToken(t *testing.T, token string) string {
	t.Helper()

	input := []byte(token)
	if len(token) > bcryptLimit {
		sum := sha256.Sum256(input)
		input = sum[:]
	}

	hash, err := bcrypt.GenerateFromPassword(input, bcrypt.DefaultCost)
	require.NoError(t, err)
	return string(hash)
}

func TestBearerAuth_AllowsMatchingToken(t *testing.T) {
	hash := hashToken(t, "s3cret")
	handler := BearerAuth(hash, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/sidecar/config/reload", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerAuth_RejectsMissingHeader(t *testing.T) {
	hash := hashToken(t, "s3cret")
	handler := BearerAuth(hash, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/sidecar/config/reload", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerAuth_RejectsWrongToken(t *testing.T) {
	hash := hashToken(t, "s3cret")
	handler := BearerAuth(hash, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/sidecar/config/reload", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCompareTokenHash_PreHashesLongTokens(t *testing.T) {
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}

	hash := hashToken(t, string(long))
	assert.True(t, compareTokenHash(hash, string(long)))
	assert.False(t, compareTokenHash(hash, string(long[:99])+"b"))
}
