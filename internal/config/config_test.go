package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServer_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORAGE", "DATABASE_URL", "JWT_SECRET", "TOKEN_TTL", "DEBUG"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageInMemory, cfg.Storage)
	assert.Equal(t, DevJWTSecret, cfg.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.Debug)
}

func TestLoadServer_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE", StoragePostgres)
	t.Setenv("DATABASE_URL", "postgres://localhost/comments")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("DEBUG", "true")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.Debug)
}

func TestServerConfig_Validate(t *testing.T) {
	cfg := &ServerConfig{Storage: StoragePostgres, TokenTTL: time.Hour}
	require.ErrorContains(t, cfg.Validate(), "DATABASE_URL")

	cfg.Storage = "sqlite"
	require.ErrorContains(t, cfg.Validate(), "unknown storage type")

	cfg.Storage = StorageInMemory
	require.NoError(t, cfg.Validate())
}

func TestLoadClient(t *testing.T) {
	t.Setenv("COMMENTS_SERVER_URL", "https://comments.example.com")
	t.Setenv("COMMENTS_PAGE_SIZE", "20")
	t.Setenv("COMMENTS_REPLY_PAGE_SIZE", "not-a-number")
	t.Setenv("COMMENTS_CACHE_TTL", "30s")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "https://comments.example.com", cfg.ServerURL)
	assert.Equal(t, 20, cfg.PageSize)
	assert.Equal(t, 5, cfg.ReplyPageSize)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoadClient_Invalid(t *testing.T) {
	t.Setenv("COMMENTS_SERVER_URL", "localhost:8080")
	_, err := LoadClient()
	require.ErrorContains(t, err, "COMMENTS_SERVER_URL")

	t.Setenv("COMMENTS_SERVER_URL", "http://localhost:8080")
	t.Setenv("COMMENTS_PAGE_SIZE", "0")
	_, err = LoadClient()
	require.ErrorContains(t, err, "page sizes")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	logger, err = NewLogger(false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
}
