package rest

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/itrc/evaluation-workflow/internal/domain/errors"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/cache"
)

// DistributedLimiter is the shared sliding-window limiter, normally redis.
type DistributedLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimitConfig configures request rate limiting per client.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// RateLimiter limits requests per client address. It uses the distributed
// limiter when one is configured and reachable, and an in-process token
// bucket per client otherwise.
type RateLimiter struct {
	config      RateLimitConfig
	distributed DistributedLimiter
	logger      *slog.Logger
	local       sync.Map // key -> *rate.Limiter
}

func NewRateLimiter(config RateLimitConfig, distributed DistributedLimiter, logger *slog.Logger) *RateLimiter {
	if config.Burst < config.RequestsPerSecond {
		config.Burst = config.RequestsPerSecond
	}
	return &RateLimiter{config: config, distributed: distributed, logger: logger}
}

func (l *RateLimiter) allow(ctx context.Context, key string) bool {
	if l.distributed != nil {
		ok, err := l.distributed.Allow(ctx, key, l.config.Burst, time.Second)
		if err == nil {
			return ok
		}
		if !errors.Is(err, cache.ErrCircuitOpen) {
			l.logger.WarnContext(ctx, "distributed rate limiter unavailable, using local limiter", "error", err)
		}
	}
	v, _ := l.local.LoadOrStore(key, rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.Burst))
	return v.(*rate.Limiter).Allow()
}

func (l *RateLimiter) Middleware(base *BaseHandler) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.config.RequestsPerSecond <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			if !l.allow(r.Context(), "ip:"+clientIP(r)) {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.config.RequestsPerSecond))
				w.Header().Set("Retry-After", "1")
				base.writeError(w, r, apperrors.NewRateLimitError("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
