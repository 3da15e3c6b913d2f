package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DefaultMigrationsDir is resolved relative to the working directory.
const DefaultMigrationsDir = "migrations"

// Execer runs a statement. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

// RunMigrations applies the .sql files in dir in lexical order. Files must be
// idempotent; every start replays them all.
func RunMigrations(ctx context.Context, db Execer, dir string, logger *zap.Logger) error {
	if db == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}
	if dir == "" {
		dir = DefaultMigrationsDir
	}

	migrations, err := loadMigrations(dir)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		started := time.Now()
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		logger.Info("migration applied", zap.String("file", m.name), zap.Duration("took", time.Since(started)))
	}
	return nil
}

// loadMigrations reads dir, skipping non-sql and blank files.
func loadMigrations(dir string) ([]migration, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(paths) == 0 {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("read migrations: %w", err)
		}
	}
	sort.Strings(paths)

	out := make([]migration, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", filepath.Base(path), err)
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		out = append(out, migration{name: filepath.Base(path), sql: string(content)})
	}
	return out, nil
}
