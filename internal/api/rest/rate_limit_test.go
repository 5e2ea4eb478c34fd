package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/itrc/evaluation-workflow/internal/infrastructure/cache"
)

func rateLimitedHandler(l *RateLimiter) http.Handler {
	base := NewBaseHandler(discardLogger())
	return l.Middleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil)
	req.RemoteAddr = ip + ":51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 3, Burst: 3},
		cache.NewRedisRateLimiter(client, zaptest.NewLogger(t)), discardLogger())
	h := rateLimitedHandler(limiter)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1").Code, "request %d", i)
	}
	rec := hit(h, "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")

	// other clients have their own window
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2").Code)
	assert.NotEmpty(t, mr.Keys())
}

func TestRateLimiter_FallsBackWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	limiter := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 2},
		cache.NewRedisRateLimiter(client, zaptest.NewLogger(t)), discardLogger())
	h := rateLimitedHandler(limiter)

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.9").Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.9").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.9").Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	h := rateLimitedHandler(NewRateLimiter(RateLimitConfig{}, nil, discardLogger()))
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, hit(h, "10.0.0.3").Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "forwarded chain", header: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.1:80", want: "203.0.113.7"},
		{name: "real ip", header: map[string]string{"X-Real-IP": "198.51.100.4"}, remote: "10.0.0.1:80", want: "198.51.100.4"},
		{name: "remote addr", remote: "192.0.2.1:4444", want: "192.0.2.1"},
		{name: "remote without port", remote: "192.0.2.1", want: "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
