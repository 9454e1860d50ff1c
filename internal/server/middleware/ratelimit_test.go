package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/edgesync/internal/auth"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute, setupTestLogger())
	defer limiter.Stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("edge-1"), "request %d", i+1)
	}
	assert.False(t, limiter.Allow("edge-1"))
	assert.True(t, limiter.Allow("edge-2"), "keys are independent")

	now = now.Add(time.Minute)
	assert.True(t, limiter.Allow("edge-1"), "window refills the bucket")

	now = now.Add(3 * time.Minute)
	limiter.cleanupOldBuckets()
	limiter.mu.Lock()
	assert.Empty(t, limiter.buckets)
	limiter.mu.Unlock()
}

func TestRateLimiter_Middleware(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute, setupTestLogger())
	defer limiter.Stop()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := limiter.Middleware(next)

	request := func(peer, addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/pull", nil)
		req.RemoteAddr = addr
		if peer != "" {
			req = req.WithContext(auth.WithPeer(req.Context(), peer))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// одна реплика с разных адресов делит лимит
	assert.Equal(t, http.StatusOK, request("edge-1", "10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, request("edge-1", "10.0.0.2:1000"))

	// без реплики ключом служит адрес
	assert.Equal(t, http.StatusOK, request("", "10.0.0.3:1000"))
	assert.Equal(t, http.StatusTooManyRequests, request("", "10.0.0.3:1000"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded list", headers: map[string]string{"X-Forwarded-For": "1.1.1.1,2.2.2.2"}, remote: "3.3.3.3:1", want: "1.1.1.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "4.4.4.4"}, remote: "3.3.3.3:1", want: "4.4.4.4"},
		{name: "remote addr", remote: "3.3.3.3:1", want: "3.3.3.3:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
