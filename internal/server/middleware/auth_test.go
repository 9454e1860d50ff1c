package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/edgesync/internal/auth"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testAuth = auth.Config{
	Secret: []byte("test-secret-key-0123"),
	TTL:    15 * time.Minute,
}

func TestAuthMiddleware(t *testing.T) {
	valid, _, err := auth.IssueToken(testAuth, "edge-1", time.Now())
	require.NoError(t, err)

	expired, _, err := auth.IssueToken(testAuth, "edge-1", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	foreign, _, err := auth.IssueToken(auth.Config{Secret: []byte("other-secret-key-0123"), TTL: time.Minute}, "edge-1", time.Now())
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantPeer   string
	}{
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusOK, wantPeer: "edge-1"},
		{name: "case insensitive scheme", header: "bearer " + valid, wantStatus: http.StatusOK, wantPeer: "edge-1"},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "expired token", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "foreign secret", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPeer string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPeer, _ = auth.PeerFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/push", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			AuthMiddleware(setupTestLogger(), testAuth)(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantPeer, gotPeer)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)
			}
		})
	}
}
