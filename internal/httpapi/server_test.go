package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidecar-io/sidecar/internal/config"
)

func TestNewServer_PanicsWithoutRequiredDependencies(t *testing.T) {
	cfg := config.Default()
	snap := config.NewSnapshot(cfg)

	assert.Panics(t, func() {
		NewServer(snap, nil, nil, nil, nil, nil, nil)
	})
}

func TestNewServer_ConstructsWithReloadTokenConfigured(t *testing.T) {
	t.Setenv("SIDECAR_RELOAD_TOKEN_HASH", "some-hash")

	cfg := config.Default()
	srv, _, _, _ := newTestServer(t, cfg)
	require.NotNil(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
