package mocks

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/itrc/evaluation-workflow/internal/domain/workflow"
)

// Transactor runs fn directly and counts units of work. Set Err to make
// WithinTx fail after fn succeeds, as a failed commit would.
type Transactor struct {
	mu    sync.Mutex
	Calls int
	Err   error
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.Calls++
	t.mu.Unlock()
	if err := fn(ctx); err != nil {
		return err
	}
	return t.Err
}

// Publisher records published workflow events.
type Publisher struct {
	mu     sync.Mutex
	Events []*workflow.Event
}

func (p *Publisher) Publish(_ context.Context, e *workflow.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, e)
}

// Types returns the types of the recorded events in order.
func (p *Publisher) Types() []workflow.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]workflow.EventType, len(p.Events))
	for i, e := range p.Events {
		out[i] = e.Type
	}
	return out
}

// Cache mock
type Cache struct {
	mock.Mock
}

func (m *Cache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *Cache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *Cache) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Cache) Close() error {
	return m.Called().Error(0)
}

// ArtifactStore mock
type ArtifactStore struct {
	mock.Mock
}

func (m *ArtifactStore) Put(ctx context.Context, name string, data []byte) (string, int64, error) {
	args := m.Called(ctx, name, data)
	return args.String(0), args.Get(1).(int64), args.Error(2)
}

func (m *ArtifactStore) Open(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(int64), args.Error(2)
}

func (m *ArtifactStore) Delete(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}
