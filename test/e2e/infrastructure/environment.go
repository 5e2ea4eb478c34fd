//go:build e2e

// Package infrastructure assembles the full API against real PostgreSQL and
// Redis containers for end-to-end tests.
package infrastructure

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/itrc/evaluation-workflow/internal/api/rest"
	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/user"
	"github.com/itrc/evaluation-workflow/internal/domain/workflow"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/cache"
	catalogseed "github.com/itrc/evaluation-workflow/internal/infrastructure/catalog"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/config"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/database"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/render"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/repository"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/storage"
	"github.com/itrc/evaluation-workflow/internal/service/evaluation"
	"github.com/itrc/evaluation-workflow/internal/service/intake"
	"github.com/itrc/evaluation-workflow/internal/service/reporting"
	"github.com/itrc/evaluation-workflow/internal/service/securitytarget"
	"github.com/itrc/evaluation-workflow/internal/testutil/containers"
)

// Environment is a running API backed by containers.
type Environment struct {
	APIURL string
	WSURL  string
	Auth   *rest.Authenticator
	Repos  *repository.Repositories
}

// NewEnvironment starts PostgreSQL and Redis, applies migrations and serves
// the router from an httptest server. Everything is torn down with t.
func NewEnvironment(t *testing.T) *Environment {
	t.Helper()

	dbURL := containers.MigratedPostgres(t)
	rdb := containers.RedisClient(t)
	zlog := zaptest.NewLogger(t)
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelWarn}))

	pool, err := database.NewConnectionPool(&config.DatabaseConfig{
		URL:             dbURL,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
	}, zlog)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	repos := repository.NewRepositories(pool)

	cat, err := catalogseed.Load("")
	require.NoError(t, err)
	store, err := storage.NewStore(t.TempDir(), zlog)
	require.NoError(t, err)
	renderer, err := render.New("markdown")
	require.NoError(t, err)
	statsCache, err := cache.NewRedisCache(rdb, zlog)
	require.NoError(t, err)

	auth := rest.NewAuthenticator(rest.AuthConfig{
		JWTSecret:   []byte("e2e-secret-e2e-secret-e2e-secret"),
		Issuer:      "itrc-evaluation",
		TokenExpiry: time.Hour,
	}, repos.Users)

	var hub *rest.EventHub
	broadcast := workflow.PublisherFunc(func(ctx context.Context, e *workflow.Event) {
		if hub != nil {
			hub.Publish(ctx, e)
		}
	})
	intakeSvc := intake.NewService(repos.Applications, repos.Evaluations, cat, zlog,
		intake.WithPublisher(broadcast),
		intake.WithStatsCache(statsCache, time.Minute))
	hub = rest.NewEventHub(auth, intakeSvc, rest.DefaultWebSocketConfig(), logger)
	t.Cleanup(hub.Close)
	publisher := workflow.Fanout(broadcast, intakeSvc.StatsInvalidator())

	contract, err := rest.NewContractValidator()
	require.NoError(t, err)

	targetSvc := securitytarget.NewService(repos.Applications, repos.SecurityTargets, pool, cat, zlog,
		securitytarget.WithPublisher(publisher))
	evalSvc := evaluation.NewService(repos.Applications, repos.Evaluations, repos.SecurityTargets, repos.Users, pool, cat, zlog,
		evaluation.WithPublisher(publisher))
	reportSvc := reporting.NewService(reporting.Dependencies{
		Applications:    repos.Applications,
		Evaluations:     repos.Evaluations,
		SecurityTargets: repos.SecurityTargets,
		Users:           repos.Users,
		Reports:         repos.Reports,
		Store:           store,
		Renderer:        renderer,
		Tx:              pool,
		Catalog:         cat,
	}, zlog, reporting.WithPublisher(publisher))
	limiter := rest.NewRateLimiter(rest.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		cache.NewRedisRateLimiter(rdb, zlog), logger)

	router := rest.NewRouter(rest.Dependencies{
		Logger:          logger,
		Auth:            auth,
		Catalog:         cat,
		Applications:    intakeSvc,
		SecurityTargets: targetSvc,
		Evaluations:     evalSvc,
		Reports:         reportSvc,
		Health:          rest.NewHealthHandler("e2e", "test", map[string]rest.Pinger{"database": pool}),
		Hub:             hub,
		Metrics:         rest.NewHTTPMetrics(prometheus.NewRegistry()),
		RateLimiter:     limiter,
		Contract:        contract,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &Environment{
		APIURL: server.URL,
		WSURL:  "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
		Auth:   auth,
		Repos:  repos,
	}
}

// CreateUser inserts an active user with role and returns a token for them.
func (e *Environment) CreateUser(t *testing.T, role authz.Role, email string) (*user.User, string) {
	t.Helper()
	u := &user.User{
		ID:        uuid.New(),
		Email:     email,
		FullName:  strings.Split(email, "@")[0],
		Role:      role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, e.Repos.Users.Create(context.Background(), u))

	token, err := e.Auth.GenerateToken(u.Actor(), u.FullName)
	require.NoError(t, err)
	return u, token
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
