package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestRebind(t *testing.T) {
	sqlite := &DB{driver: DriverSQLite}
	pg := &DB{driver: DriverPostgres}

	q := `UPDATE users SET coins = coins - $1 WHERE id = $2 AND coins >= $1`
	assert.Equal(t, `UPDATE users SET coins = coins - ?1 WHERE id = ?2 AND coins >= ?1`, sqlite.Rebind(q))
	assert.Equal(t, q, pg.Rebind(q))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "whatever")
	assert.Error(t, err)
}

func TestOpenFailsOnUnreachableDatabase(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "missing", "cogbot.db")
	_, err := Open(DriverSQLite, dsn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot ping db")
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.Migrate(context.Background()))
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(newTestDB(t))

	_, ok, err := s.Get(ctx, ScopeChannel, "c1", "triggers")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, ScopeChannel, "c1", "triggers", "off"))
	require.NoError(t, s.Set(ctx, ScopeChannel, "c1", "triggers", "on"))

	v, ok, err := s.Get(ctx, ScopeChannel, "c1", "triggers")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "on", v)

	// Scopes do not leak into each other.
	_, ok, err = s.Get(ctx, ScopeGuild, "c1", "triggers")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx, ScopeChannel, "c1", "triggers"))
	_, ok, err = s.Get(ctx, ScopeChannel, "c1", "triggers")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettingsBool(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(newTestDB(t))

	v, err := s.GetBool(ctx, ScopeGuild, "g", "enabled", true)
	require.NoError(t, err)
	assert.True(t, v)

	require.NoError(t, s.SetBool(ctx, ScopeGuild, "g", "enabled", false))
	v, err = s.GetBool(ctx, ScopeGuild, "g", "enabled", true)
	require.NoError(t, err)
	assert.False(t, v)
}
