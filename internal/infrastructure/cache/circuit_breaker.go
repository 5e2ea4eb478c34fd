package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while redis is considered down.
var ErrCircuitOpen = errors.New("cache circuit open")

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calls to redis after threshold consecutive failures
// and lets one probe through once cooldown has passed.
type CircuitBreaker struct {
	mu              sync.Mutex
	failureCount    int
	lastFailureTime time.Time
	state           CircuitState
	cooldown        time.Duration
	threshold       int
	now             func() time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     CircuitClosed,
		now:       time.Now,
	}
}

func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailureTime) >= cb.cooldown {
			cb.state = CircuitHalfOpen
			return true
		}
	}
	// half open: the probe is already in flight
	return false
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.state = CircuitClosed
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = cb.now()
	if cb.failureCount >= cb.threshold || cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// breakerLimiter short-circuits a RateLimiter with a CircuitBreaker so a
// redis outage costs one failed round trip per cooldown instead of one per
// request.
type breakerLimiter struct {
	next    RateLimiter
	breaker *CircuitBreaker
}

// WithCircuitBreaker guards l. While the circuit is open every call returns
// ErrCircuitOpen and callers fall back to their local limiter.
func WithCircuitBreaker(l RateLimiter, breaker *CircuitBreaker) RateLimiter {
	return &breakerLimiter{next: l, breaker: breaker}
}

func (b *breakerLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !b.breaker.Allow() {
		return false, ErrCircuitOpen
	}
	ok, err := b.next.Allow(ctx, key, limit, window)
	b.record(err)
	return ok, err
}

func (b *breakerLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	if !b.breaker.Allow() {
		return 0, ErrCircuitOpen
	}
	n, err := b.next.Remaining(ctx, key, limit, window)
	b.record(err)
	return n, err
}

func (b *breakerLimiter) Reset(ctx context.Context, key string) error {
	if !b.breaker.Allow() {
		return ErrCircuitOpen
	}
	err := b.next.Reset(ctx, key)
	b.record(err)
	return err
}

func (b *breakerLimiter) record(err error) {
	if err != nil {
		b.breaker.RecordFailure()
		return
	}
	b.breaker.RecordSuccess()
}
