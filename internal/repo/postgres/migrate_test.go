package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/diagnosis/natours/internal/repo"
	"github.com/diagnosis/natours/internal/repo/postgres/migrations"
	mw "github.com/diagnosis/natours/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ repo.UsersRepo      = (*UsersRepoImpl)(nil)
	_ mw.IdempotencyStore = (*IdempotencyRepoImpl)(nil)
)

func TestEveryMigrationIsReversible(t *testing.T) {
	t.Parallel()

	names, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"00001_create_users.sql", "00002_create_idempotency_keys.sql"}, names)
	for _, name := range names {
		raw, err := fs.ReadFile(migrations.FS, name)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "-- +goose Up", name)
		assert.Contains(t, string(raw), "-- +goose Down", name)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	t.Parallel()

	names, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "00001_create_users.sql", names[0])

	raw, err := fs.ReadFile(migrations.FS, names[0])
	require.NoError(t, err)
	sql := string(raw)
	assert.True(t, strings.Contains(sql, "-- +goose Up"))
	assert.True(t, strings.Contains(sql, "-- +goose Down"))
	for _, col := range []string{"password_changed_at", "reset_token_hash", "reset_expires", "active"} {
		assert.Contains(t, sql, col)
	}
}

func TestUserColumnsMatchScanOrder(t *testing.T) {
	t.Parallel()

	cols := strings.Split(strings.ReplaceAll(userColumns, "\n", " "), ",")
	require.Len(t, cols, 12)
	assert.Equal(t, "id", strings.TrimSpace(cols[0]))
	assert.Equal(t, "updated_at", strings.TrimSpace(cols[11]))
}

func TestSaveUserSQL_ScopedToProfileAndPassword(t *testing.T) {
	t.Parallel()

	for _, col := range []string{"reset_token_hash", "reset_expires", "active="} {
		assert.NotContains(t, saveUserSQL, col)
	}
	assert.Contains(t, saveUserSQL, "WHERE id=$1 AND active")
	assert.Contains(t, saveUserSQL, "password_hash=$6")
}
