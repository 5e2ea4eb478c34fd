package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/itrc/evaluation-workflow/internal/infrastructure/database"
)

const (
	postgresImage = "postgres:16-alpine"
	postgresDB    = "evaluation_test"
	postgresUser  = "postgres"
	postgresPass  = "postgres"
)

// PostgresContainer wraps the testcontainers postgres module.
type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnectionString string
}

// NewPostgresContainer starts PostgreSQL and waits until it accepts SQL.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	pgContainer, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithDatabase(postgresDB),
		postgres.WithUsername(postgresUser),
		postgres.WithPassword(postgresPass),
		testcontainers.WithWaitStrategy(
			wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
				return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
					postgresUser, postgresPass, host, port.Port(), postgresDB)
			}).WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: pgContainer,
		ConnectionString:  connStr,
	}, nil
}

// MigratedPostgres starts a container, applies the schema and returns its URL.
// Skipped under -short.
func MigratedPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	pg, err := NewPostgresContainer(ctx)
	if pg != nil {
		testcontainers.CleanupContainer(t, pg.PostgresContainer)
	}
	require.NoError(t, err)

	m, err := database.NewMigrator(pg.ConnectionString, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer m.Close()
	require.NoError(t, m.Up(0))

	return pg.ConnectionString
}
