package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "secret")
	require.NoError(t, Load(""))

	c := Get()
	assert.Equal(t, "dev", c.AppEnv)
	assert.Equal(t, "/api/v1", c.HttpBaseRequestUrl)
	assert.Equal(t, 10, c.PaginationDefaultLimit)
	assert.Equal(t, 100, c.PaginationMaxLimit)
	assert.Equal(t, "ledger:events", c.EventsStream)
	assert.Equal(t, 24*time.Hour, c.AuthTokenTTL)
	assert.Equal(t, 5*time.Second, c.WebhookTimeout)
	assert.Equal(t, "secret", c.AuthJWTSecret)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PAGINATION_DEFAULT_LIMIT=25\nWEBHOOK_URL=http://sink:8081/events\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("PAGINATION_DEFAULT_LIMIT")
		_ = os.Unsetenv("WEBHOOK_URL")
	})

	require.NoError(t, Load(path))
	assert.Equal(t, 25, Get().PaginationDefaultLimit)
	assert.Equal(t, "http://sink:8081/events", Get().WebhookURL)
}

func TestLoad_MissingFile(t *testing.T) {
	assert.Error(t, Load(filepath.Join(t.TempDir(), "nope.env")))
}

func TestValidate(t *testing.T) {
	c := &Config{PaginationDefaultLimit: 10, PaginationMaxLimit: 100}
	assert.NoError(t, c.Validate())

	c.PaginationDefaultLimit = 0
	assert.Error(t, c.Validate())

	c.PaginationDefaultLimit = 50
	c.PaginationMaxLimit = 20
	assert.Error(t, c.Validate())
}

func TestConnectionSettings(t *testing.T) {
	c := &Config{
		PostgresWriteHost: "db", PostgresWritePort: "5432", PostgresWriteUser: "u",
		PostgresWritePassword: "p", PostgresWriteDatabase: "ledger",
		RedisAddr: "redis:6379", RedisDatabase: 2,
	}
	assert.Equal(t, "host=db user=u password=p dbname=ledger port=5432 sslmode=disable", c.PostgresWrite().DSN())
	assert.Equal(t, []string{"redis:6379"}, c.Redis().Addrs)
	assert.Equal(t, 2, c.Redis().DB)
}
