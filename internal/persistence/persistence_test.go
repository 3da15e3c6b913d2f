package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/courier-portal/internal/config"
	"github.com/spec-kit/courier-portal/internal/storage"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestRunMigrations_AppliesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "002_second.sql", "SELECT 2")
	writeFile(t, dir, "001_first.sql", "SELECT 1")
	writeFile(t, dir, "README.md", "not sql")

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("SELECT 2").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, RunMigrations(context.Background(), mock, dir, zap.NewNop()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_StopsOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "001_bad.sql", "CREATE nonsense")

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectExec("CREATE nonsense").WillReturnError(errors.New("syntax error"))

	err = RunMigrations(context.Background(), mock, dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_bad.sql")
}

func TestRunMigrations_ShippedSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS portal_legacy_storage").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, RunMigrations(context.Background(), mock, filepath.Join("..", "..", "migrations"), zap.NewNop()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_NilPool(t *testing.T) {
	assert.NoError(t, RunMigrations(context.Background(), nil, "does-not-matter", zap.NewNop()))
}

func TestPostgres_DisabledWithoutDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, pg.Enabled())
	assert.ErrorIs(t, pg.Ping(context.Background()), ErrPostgresDisabled)
	assert.NotPanics(t, pg.Close)
}

func TestRedis_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	defer r.Close()

	require.NoError(t, r.Ping(context.Background()))

	mr.Close()
	assert.Error(t, r.Ping(context.Background()))
}

func TestRedis_TabStoreIsScopedPerTab(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	defer r.Close()
	ctx := context.Background()

	a := r.TabStore("tab-a", time.Hour)
	b := r.TabStore("tab-b", time.Hour)
	require.NoError(t, a.Set(ctx, storage.KeyUser, `{"userType":"admin"}`))

	_, ok, err := b.Get(ctx, storage.KeyUser)
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := a.Get(ctx, storage.KeyUser)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"userType":"admin"}`, v)
}

func TestPostgres_DeviceStoreDisabled(t *testing.T) {
	pg := &Postgres{}

	assert.Nil(t, pg.DeviceStore("device"))
}

func TestRunMigrations_SkipsBlankFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "001_placeholder.sql", "  \n")
	writeFile(t, dir, "002_real.sql", "SELECT 2")

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectExec("SELECT 2").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, RunMigrations(context.Background(), mock, dir, zap.NewNop()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_MissingDir(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	err = RunMigrations(context.Background(), mock, filepath.Join(t.TempDir(), "absent"), zap.NewNop())
	assert.ErrorContains(t, err, "read migrations")
}
