package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/itrc/evaluation-workflow/internal/infrastructure/cache"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/config"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Transactor runs fn inside one unit of work. Repositories called with the
// ctx passed to fn join the same transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// ConnectionPool wraps a pgx pool with a circuit breaker, transaction
// propagation through context and basic metrics.
type ConnectionPool struct {
	primary         *pgxpool.Pool
	config          *config.DatabaseConfig
	logger          *zap.Logger
	healthCheckStop chan struct{}
	closeOnce       sync.Once
	metrics         *ConnectionMetrics
	circuitBreaker  *cache.CircuitBreaker
}

// ConnectionMetrics tracks pool and transaction counters.
type ConnectionMetrics struct {
	mu sync.RWMutex

	TotalConnections    int64
	ActiveConnections   int64
	IdleConnections     int64
	MaxLifetimeClosures int64

	TransactionsStarted    int64
	TransactionsCommitted  int64
	TransactionsRolledBack int64

	LastHealthCheck time.Time
}

// Snapshot returns a copy of the counters.
func (m *ConnectionMetrics) Snapshot() ConnectionMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ConnectionMetrics{
		TotalConnections:       m.TotalConnections,
		ActiveConnections:      m.ActiveConnections,
		IdleConnections:        m.IdleConnections,
		MaxLifetimeClosures:    m.MaxLifetimeClosures,
		TransactionsStarted:    m.TransactionsStarted,
		TransactionsCommitted:  m.TransactionsCommitted,
		TransactionsRolledBack: m.TransactionsRolledBack,
		LastHealthCheck:        m.LastHealthCheck,
	}
}

// NewConnectionPool connects to the primary database and starts health checks.
func NewConnectionPool(cfg *config.DatabaseConfig, logger *zap.Logger) (*ConnectionPool, error) {
	pool := &ConnectionPool{
		config:          cfg,
		logger:          logger,
		healthCheckStop: make(chan struct{}),
		metrics:         &ConnectionMetrics{},
		circuitBreaker:  cache.NewCircuitBreaker(10, 30*time.Second),
	}

	pgxCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse primary database URL: %w", err)
	}
	pool.configurePgxPool(pgxCfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool.primary, err = pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create primary connection pool: %w", err)
	}
	if err := pool.primary.Ping(ctx); err != nil {
		pool.primary.Close()
		return nil, fmt.Errorf("failed to ping primary database: %w", err)
	}

	go pool.healthCheckRoutine()

	logger.Info("database connection pool initialized",
		zap.Int32("max_connections", pgxCfg.MaxConns),
		zap.Int32("min_connections", pgxCfg.MinConns))

	return pool, nil
}

func (p *ConnectionPool) configurePgxPool(c *pgxpool.Config) {
	c.MaxConns = 25
	if p.config.MaxOpenConns > 0 {
		c.MaxConns = int32(p.config.MaxOpenConns)
	}
	c.MinConns = 2
	if p.config.MaxIdleConns > 0 {
		c.MinConns = int32(p.config.MaxIdleConns)
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	c.MaxConnLifetime = 30 * time.Minute
	if p.config.ConnMaxLifetime > 0 {
		c.MaxConnLifetime = p.config.ConnMaxLifetime
	}
	c.MaxConnIdleTime = 10 * time.Minute
	if p.config.ConnMaxIdleTime > 0 {
		c.MaxConnIdleTime = p.config.ConnMaxIdleTime
	}
	c.HealthCheckPeriod = time.Minute

	c.ConnConfig.ConnectTimeout = 5 * time.Second
	c.ConnConfig.RuntimeParams["application_name"] = "evaluation_workflow"
	c.ConnConfig.RuntimeParams["timezone"] = "UTC"
	c.ConnConfig.RuntimeParams["lock_timeout"] = "10s"
	c.ConnConfig.RuntimeParams["statement_timeout"] = "30s"
	c.ConnConfig.RuntimeParams["idle_in_transaction_session_timeout"] = "60s"

	c.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		p.metrics.mu.Lock()
		p.metrics.TotalConnections++
		p.metrics.mu.Unlock()
		return nil
	}

	c.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
		return p.circuitBreaker.Allow()
	}
}

// Pool returns the underlying pgx pool.
func (p *ConnectionPool) Pool() *pgxpool.Pool {
	return p.primary
}

// Querier returns the transaction bound to ctx, or the pool.
func (p *ConnectionPool) Querier(ctx context.Context) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return p.primary
}

// WithinTx runs fn in a transaction. Nested calls reuse the outer transaction.
func (p *ConnectionPool) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return p.Transaction(ctx, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Transaction executes fn within a database transaction.
func (p *ConnectionPool) Transaction(ctx context.Context, fn func(pgx.Tx) error) error {
	return p.TransactionWithOptions(ctx, pgx.TxOptions{}, fn)
}

func (p *ConnectionPool) TransactionWithOptions(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	p.metrics.mu.Lock()
	p.metrics.TransactionsStarted++
	p.metrics.mu.Unlock()

	err := pgx.BeginTxFunc(ctx, p.primary, opts, fn)

	p.metrics.mu.Lock()
	if err != nil {
		p.metrics.TransactionsRolledBack++
	} else {
		p.metrics.TransactionsCommitted++
	}
	p.metrics.mu.Unlock()

	// Only connectivity problems should trip the breaker, not domain errors.
	if err != nil && pgconn.SafeToRetry(err) {
		p.circuitBreaker.RecordFailure()
	} else if err == nil {
		p.circuitBreaker.RecordSuccess()
	}
	return err
}

// Ping checks connectivity.
func (p *ConnectionPool) Ping(ctx context.Context) error {
	return p.primary.Ping(ctx)
}

// Metrics returns the live counters.
func (p *ConnectionPool) Metrics() *ConnectionMetrics {
	return p.metrics
}

func (p *ConnectionPool) healthCheckRoutine() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.performHealthCheck()
		case <-p.healthCheckStop:
			return
		}
	}
}

func (p *ConnectionPool) performHealthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.primary.Ping(ctx); err != nil {
		p.logger.Error("primary database health check failed", zap.Error(err))
		p.circuitBreaker.RecordFailure()
	} else {
		p.circuitBreaker.RecordSuccess()
	}

	stats := p.primary.Stat()
	p.metrics.mu.Lock()
	p.metrics.ActiveConnections = int64(stats.AcquiredConns())
	p.metrics.IdleConnections = int64(stats.IdleConns())
	p.metrics.MaxLifetimeClosures = stats.MaxLifetimeDestroyCount()
	p.metrics.LastHealthCheck = time.Now()
	p.metrics.mu.Unlock()
}

// Close stops health checks and closes the pool.
func (p *ConnectionPool) Close() error {
	p.closeOnce.Do(func() {
		close(p.healthCheckStop)
		p.primary.Close()
		p.logger.Info("database connection pool closed")
	})
	return nil
}

// GetDB returns a database/sql handle sharing the pool.
func (p *ConnectionPool) GetDB() (*sql.DB, error) {
	return stdlib.OpenDBFromPool(p.primary), nil
}
