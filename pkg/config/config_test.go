package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsPrefixedEnv(t *testing.T) {
	t.Setenv("TESTSVC_DB_HOST", "db.internal")
	t.Setenv("TESTSVC_DB_NAME", "bookings")
	t.Setenv("TESTSVC_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("TESTSVC_JWT_ACCESS_TTL", "5m")

	v, err := Load("TESTSVC", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	db := LoadDatabaseConfig(v, "DB_NAME")
	assert.Equal(t, "db.internal", db.Host)
	assert.Equal(t, "bookings", db.DBName)
	assert.Equal(t, "5432", db.Port)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, LoadKafkaConfig(v).Brokers)
	assert.Equal(t, 5*time.Minute, LoadJWTConfig(v).AccessTTL)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ENVFILESVC_SERVICE_PORT=9191\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("ENVFILESVC_SERVICE_PORT") })

	v, err := Load("ENVFILESVC", path)
	require.NoError(t, err)

	assert.Equal(t, ":9191", GetServicePort(v, "SERVICE_PORT"))
	assert.Equal(t, "development", GetAppEnv(v))
}

func TestGetServicePort_Default(t *testing.T) {
	v, err := Load("NOPORTSVC", filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", GetServicePort(v, "SERVICE_PORT"))
}
