package utils

import (
	"crypto/tls"
	"path/filepath"
	"testing"

	"party-map/internal/migrate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNFromEnv(t *testing.T) {
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "")
	t.Setenv("PG_USER", "party")
	t.Setenv("PG_PASSWORD", "pw")
	t.Setenv("PG_DB", "")
	t.Setenv("PG_SSLMODE", "")
	assert.Equal(t, "postgres://party:pw@db:5432/partymap?sslmode=disable", BuildPostgresDSNFromEnv())
}

func TestOpenStoreFromEnvSQLite(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "sub", "p.db"))
	st, err := OpenStoreFromEnv()
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, migrate.SQLite, st.Dialect())
	require.NoError(t, migrate.EnsureSchema(st.DB(), st.Dialect()))
}

func TestOpenStoreFromEnvBadDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "oracle")
	_, err := OpenStoreFromEnv()
	assert.Error(t, err)
}

func TestOpenRedisFromEnv(t *testing.T) {
	t.Setenv("REDIS_DISABLE", "true")
	assert.Nil(t, OpenRedisFromEnv())

	t.Setenv("REDIS_DISABLE", "")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "x")
	rc := OpenRedisFromEnv()
	require.NotNil(t, rc)
	defer rc.Close()
	assert.Equal(t, "cache:6380", rc.Options().Addr)
	assert.Equal(t, 0, rc.Options().DB)
}

func TestEnsureSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "certs", "server.crt")
	key := filepath.Join(dir, "certs", "server.key")
	require.NoError(t, EnsureSelfSignedCert(cert, key, "party-map.local"))
	pair, err := tls.LoadX509KeyPair(cert, key)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Certificate)

	// 已存在时不重新生成
	require.NoError(t, EnsureSelfSignedCert(cert, key, "other"))
	again, err := tls.LoadX509KeyPair(cert, key)
	require.NoError(t, err)
	assert.Equal(t, pair.Certificate[0], again.Certificate[0])
}
