package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: "9090"
database:
  postgres:
    dsn: "host=db"
embedding:
  api_key: "file-key"
  model: "text-embedding-004"
pipeline:
  auto_embed: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("SUPABASE_JWT_SECRET", "")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "host=db", cfg.Database.Postgres.DSN)
	assert.Equal(t, "file-key", cfg.Embedding.APIKey)
	assert.True(t, cfg.Pipeline.AutoEmbed)

	assert.Equal(t, 5, cfg.Pipeline.BatchSize)
	assert.Equal(t, 1000, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 200, cfg.Pipeline.ChunkOverlap)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.JobLease())
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.InDelta(t, 0.7, cfg.Search.DefaultThreshold, 1e-9)
	assert.InDelta(t, 0.2, cfg.LLM.Generation.Temperature, 1e-9)
	assert.Equal(t, 1024, cfg.LLM.Generation.MaxOutputTokens)
	assert.Equal(t, "admin", cfg.Auth.AdminRole)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("DATABASE_DSN", "host=env")
	t.Setenv("SUPABASE_JWT_SECRET", "shh")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Embedding.APIKey)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "host=env", cfg.Database.Postgres.DSN)
	assert.Equal(t, "shh", cfg.Auth.JWTSecret)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
