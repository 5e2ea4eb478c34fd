package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Key prefixes
const (
	KeyPrefix       = "eval:"
	StatsPrefix     = KeyPrefix + "stats:"
	RateLimitPrefix = KeyPrefix + "ratelimit:"
)

// Cache is a JSON key/value cache with TTLs.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	Close() error
}

// RateLimiter decides whether a caller may proceed within a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
}

// ErrCacheKeyNotFound is returned on a cache miss.
type ErrCacheKeyNotFound struct {
	Key string
}

func (e ErrCacheKeyNotFound) Error() string {
	return fmt.Sprintf("cache key not found: %s", e.Key)
}

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	var miss ErrCacheKeyNotFound
	return errors.As(err, &miss)
}
