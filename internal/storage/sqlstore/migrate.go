package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// goose keeps its dialect, base FS and logger in package state.
var gooseMu sync.Mutex

// Migrate applies every pending migration.
func (s *Store) Migrate(ctx context.Context) error {
	return s.RunMigrations(ctx, "up")
}

// RunMigrations executes a goose command (up, down, status, version, redo,
// reset) against the embedded migrations for the store's dialect.
func (s *Store) RunMigrations(ctx context.Context, command string, args ...string) error {
	return runGoose(ctx, s.db, s.d, s.logger, command, args...)
}

// MigrateToVersion migrates up or down until the schema is at targetVersion.
func (s *Store) MigrateToVersion(ctx context.Context, targetVersion string) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", targetVersion, err)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()
	dir, err := configureGoose(s.d, s.logger)
	if err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, s.db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, s.db, dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		if err := goose.DownToContext(ctx, s.db, dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}

func runGoose(ctx context.Context, db *sql.DB, d dialect, logger *slog.Logger, command string, args ...string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir, err := configureGoose(d, logger)
	if err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func configureGoose(d dialect, logger *slog.Logger) (string, error) {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{logger: logger})
	if err := goose.SetDialect(d.goose); err != nil {
		return "", fmt.Errorf("set goose dialect: %w", err)
	}
	return path.Join("migrations", d.name), nil
}

// gooseLogger routes goose output through slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
	os.Exit(1)
}
