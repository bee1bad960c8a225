// internal/common/database/sqlite_test.go
package database

import (
	"context"
	"path/filepath"
	"testing"

	"trade-match-engine/internal/common/config"
	"trade-match-engine/internal/common/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLite_InMemory(t *testing.T) {
	client, err := NewSQLite(config.SQLiteConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	assert.Equal(t, DialectSQLite, client.Dialect)
	require.NoError(t, client.Ping(context.Background()))

	var fk int
	require.NoError(t, client.DB.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestNewSQLite_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match.db")
	client, err := NewSQLite(config.SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.DB.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	require.Error(t, err)
}

func TestRedis_PingFailureIsCacheFailed(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedis(config.RedisConfig{Address: mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping(context.Background()))

	mr.Close()
	err = client.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCacheFailed, errors.CodeOf(err))
}

func TestNewPostgres_SetsDialect(t *testing.T) {
	// sql.Open does not dial, so this needs no server
	client, err := NewPostgres(config.PostgresConfig{
		Host: "localhost", Port: 5432, User: "u", Database: "d",
		SSLMode: "disable", MaxConnections: 5, MaxIdle: 1,
	})
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, DialectPostgres, client.Dialect)
}
