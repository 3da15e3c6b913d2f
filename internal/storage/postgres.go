package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool used by PostgresStore.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the long lived device storage. Older clients persisted
// auth keys here; current ones only read it once to migrate.
type PostgresStore struct {
	db    Querier
	scope string
}

// NewPostgresStore scopes a store to the device id scope.
func NewPostgresStore(db Querier, scope string) *PostgresStore {
	return &PostgresStore{db: db, scope: scope}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM portal_legacy_storage WHERE scope = $1 AND key = $2`

	var value string
	err := s.db.QueryRow(ctx, query, s.scope, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	const query = `
        INSERT INTO portal_legacy_storage (scope, key, value)
        VALUES ($1, $2, $3)
        ON CONFLICT (scope, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	if _, err := s.db.Exec(ctx, query, s.scope, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	const query = `DELETE FROM portal_legacy_storage WHERE scope = $1 AND key = ANY($2)`

	if _, err := s.db.Exec(ctx, query, s.scope, keys); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

func (s *PostgresStore) Keys(ctx context.Context) ([]string, error) {
	const query = `SELECT key FROM portal_legacy_storage WHERE scope = $1 ORDER BY key`

	rows, err := s.db.Query(ctx, query, s.scope)
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
