package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "text-embedding-004", cfg.Gemini.EmbeddingModel)
	assert.Equal(t, 30*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, 5, cfg.Agent.MaxToolRounds)
	assert.Equal(t, 10*time.Minute, cfg.Agent.QueryCacheTTL)
	assert.False(t, cfg.Gemini.HasCredentials())
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoad_GeminiAndAgentOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_CHAT_MODEL", "gemini-test")
	t.Setenv("AGENT_MAX_TOOL_ROUNDS", "3")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Gemini.HasCredentials())
	assert.Equal(t, "gemini-test", cfg.Gemini.ChatModel)
	assert.Equal(t, 3, cfg.Agent.MaxToolRounds)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestLoad_RejectsNonPositiveToolRounds(t *testing.T) {
	t.Setenv("AGENT_MAX_TOOL_ROUNDS", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseConfig_MigrationURL(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "app",
		Password: "p@ss",
		Database: "hms",
		SSLMode:  "disable",
	}

	assert.Equal(t, "postgres://app:p%40ss@db:5433/hms?sslmode=disable", cfg.MigrationURL())
	assert.Contains(t, cfg.DatabaseDSN(), "dbname=hms")
}
