package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/itrc/evaluation-workflow/internal/infrastructure/config"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/database"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/telemetry"
)

const migrationsDir = "migrations"

func main() {
	var (
		action  = flag.String("action", "up", "Migration action: up, down, status, force, create")
		name    = flag.String("name", "", "Migration name (for create action)")
		steps   = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
		version = flag.Int("version", -1, "Version to force (for force action)")
		dir     = flag.String("dir", migrationsDir, "Migrations directory (for create action)")
	)
	flag.Parse()

	if *action == "create" {
		up, down, err := createMigration(*dir, *name)
		if err != nil {
			slog.Error("failed to create migration", "error", err)
			os.Exit(1)
		}
		slog.Info("created migration", "up", up, "down", down)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := telemetry.NewZapLogger(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(*action, *steps, *version, cfg, logger); err != nil {
		logger.Error("migration failed", zap.String("action", *action), zap.Error(err))
		os.Exit(1)
	}
}

func run(action string, steps, version int, cfg *config.Config, logger *zap.Logger) error {
	m, err := database.NewMigrator(cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	switch action {
	case "up":
		return m.Up(steps)
	case "down":
		return m.Down(steps)
	case "force":
		if version < 0 {
			return fmt.Errorf("-version is required for force")
		}
		return m.Force(version)
	case "status":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version: %d\ndirty:   %t\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

var (
	migrationFile = regexp.MustCompile(`^(\d+)_.+\.(up|down)\.sql$`)
	nonWord       = regexp.MustCompile(`[^a-z0-9]+`)
)

// createMigration writes an empty up/down pair numbered after the highest
// existing migration in dir.
func createMigration(dir, name string) (string, string, error) {
	slug := strings.Trim(nonWord.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", "", fmt.Errorf("migration name is required")
	}

	next, err := nextSequence(dir)
	if err != nil {
		return "", "", err
	}

	base := fmt.Sprintf("%06d_%s", next, slug)
	up := filepath.Join(dir, base+".up.sql")
	down := filepath.Join(dir, base+".down.sql")
	for _, f := range []string{up, down} {
		if err := os.WriteFile(f, []byte("-- "+base+"\n"), 0o644); err != nil {
			return "", "", fmt.Errorf("writing %s: %w", f, err)
		}
	}
	return up, down, nil
}

func nextSequence(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", dir, err)
	}
	var seqs []int
	for _, e := range entries {
		m := migrationFile.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		seqs = append(seqs, n)
	}
	if len(seqs) == 0 {
		return 1, nil
	}
	sort.Ints(seqs)
	return seqs[len(seqs)-1] + 1, nil
}
