package database

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/quizbot/core/logger"
)

// RunMigrations brings the schema in <MigrationsDir>/<driver> up to date
// on an already open connection.
func RunMigrations(cfg Config, db *sqlx.DB) error {
	cfg.Normalize()

	dir, err := filepath.Abs(filepath.Join(cfg.MigrationsDir, cfg.Driver))
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}
	files := upFiles(dir)
	logResolved(dir, files)

	driver, err := migrationDriver(cfg.Driver, db)
	if err != nil {
		return err
	}
	// m is never closed: that would close db too.
	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(dir), cfg.Driver, driver)
	if err != nil {
		logger.LogEvent(logger.Background(), logger.MIG, slog.LevelError, "db.migrate",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("init migrations: %w", err)
	}

	from, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	to, _, _ := m.Version()

	attrs := []slog.Attr{
		slog.String("driver", cfg.Driver),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Duration("duration", logger.Took(start)),
	}
	switch {
	case errors.Is(upErr, migrate.ErrNoChange):
		logger.LogEvent(logger.Background(), logger.MIG, slog.LevelInfo, "db.migrate",
			append(attrs, slog.String("status", "skip"))...)
		return nil
	case upErr != nil:
		logger.LogEvent(logger.Background(), logger.MIG, slog.LevelError, "db.migrate",
			append(attrs, slog.String("status", "fail"), slog.String("err", upErr.Error()))...)
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	applied := appliedBetween(files, uint64(from), uint64(to))
	logger.LogEvent(logger.Background(), logger.MIG, slog.LevelInfo, "db.migrate",
		append(attrs, slog.String("status", "ok"), slog.Int("files", len(applied)))...)
	return nil
}

func logResolved(dir string, files []string) {
	attrs := []slog.Attr{
		slog.String("path", dir),
		slog.Int("files_total", len(files)),
	}
	if preview, truncated := logger.SummarizeStrings(files, 6); preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview), slog.Bool("files_truncated", truncated))
	}
	logger.LogEvent(logger.Background(), logger.MIG, slog.LevelDebug, "db.migrate.resolve", attrs...)
}

func migrationDriver(name string, db *sqlx.DB) (database.Driver, error) {
	switch name {
	case DriverPostgres:
		return postgres.WithInstance(db.DB, &postgres.Config{})
	case DriverSQLite:
		return sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	}
	return nil, fmt.Errorf("unsupported database driver %q", name)
}

// upFiles lists the *.up.sql files of dir in version order.
func upFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if name := e.Name(); !e.IsDir() && strings.HasSuffix(name, ".up.sql") {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// appliedBetween returns the files with a version in (from, to].
func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		if v, err := strconv.ParseUint(prefix, 10, 64); err == nil && v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
