package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "party.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEnsureSchemaSQLite(t *testing.T) {
	db := openSQLite(t)

	v, dirty, err := Version(db, SQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	assert.False(t, dirty)

	require.NoError(t, EnsureSchema(db, SQLite))
	require.NoError(t, EnsureSchema(db, SQLite), "second run is a no-op")

	v, dirty, err = Version(db, SQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	for _, table := range []string{"_parties", "_party_joins"} {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n))
		assert.Equal(t, 1, n, table)
	}

	require.NoError(t, Down(db, SQLite))
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='_parties'`).Scan(&n))
	assert.Zero(t, n)
}

func TestParseDialect(t *testing.T) {
	t.Parallel()
	d, err := ParseDialect("")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)
	d, err = ParseDialect("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)
	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func TestUnknownDialect(t *testing.T) {
	t.Parallel()
	err := EnsureSchema(openSQLite(t), Dialect("oracle"))
	assert.Error(t, err)
}
