package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esche888/appcollab-sub000/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.AI.RequestTimeout)
	assert.Equal(t, "ANTHROPIC_API_KEY", cfg.AI.Providers["claude"].APIKeyEnv)

	order, err := cfg.FallbackOrder()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultFallbackOrder, order)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Usage.BatchSize)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	content := `
http_port: "9090"
ai:
  request_timeout: 15s
  fallback_order: [gemini, claude]
  providers:
    openai:
      api_key_env: MY_OPENAI_KEY
      model: gpt-4o
redis:
  address: localhost:6379
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("APPCOLLAB_DATABASE__URL", "postgres://localhost/appcollab")
	t.Setenv("APPCOLLAB_HTTP_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.HTTPPort, "env overrides file")
	assert.Equal(t, "postgres://localhost/appcollab", cfg.Database.URL)
	assert.Equal(t, 15*time.Second, cfg.AI.RequestTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, "MY_OPENAI_KEY", cfg.AI.Providers["openai"].APIKeyEnv)
	assert.Equal(t, "gpt-4o", cfg.AI.Providers["openai"].Model)
	// untouched providers keep their defaults
	assert.Equal(t, "GEMINI_API_KEY", cfg.AI.Providers["gemini"].APIKeyEnv)

	order, err := cfg.FallbackOrder()
	require.NoError(t, err)
	assert.Equal(t, []models.ModelID{models.ModelGemini, models.ModelClaude}, order)
}

func TestLoad_PartialProviderOverrideKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	content := `
ai:
  providers:
    claude:
      model: claude-opus
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("APPCOLLAB_AI__PROVIDERS__GEMINI__MODEL", "gemini-2.5-pro")
	t.Setenv("APPCOLLAB_AI__PROVIDERS__OPENAI__BASE_URL", "http://localhost:9999/v1")

	cfg, err := Load(path)
	require.NoError(t, err)

	claude := cfg.AI.Providers["claude"]
	assert.Equal(t, "claude-opus", claude.Model)
	assert.Equal(t, "ANTHROPIC_API_KEY", claude.APIKeyEnv)

	gemini := cfg.AI.Providers["gemini"]
	assert.Equal(t, "gemini-2.5-pro", gemini.Model)
	assert.Equal(t, "GEMINI_API_KEY", gemini.APIKeyEnv)

	openai := cfg.AI.Providers["openai"]
	assert.Equal(t, "http://localhost:9999/v1", openai.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", openai.APIKeyEnv)
	assert.Equal(t, "gpt-4o-mini", openai.Model)

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	assert.Equal(t, "sk-ant-test", claude.APIKey())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.AI.RequestTimeout = 0 }},
		{"unknown fallback model", func(c *Config) { c.AI.FallbackOrder = []string{"claude", "llama"} }},
		{"unknown provider key", func(c *Config) { c.AI.Providers["mistral"] = ProviderConfig{} }},
		{"zero batch size", func(c *Config) { c.Usage.BatchSize = 0 }},
	}

	require.NoError(t, Default().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestProviderConfig_APIKey(t *testing.T) {
	t.Setenv("TEST_VENDOR_KEY", "  sk-123 \n")

	assert.Equal(t, "sk-123", ProviderConfig{APIKeyEnv: "TEST_VENDOR_KEY"}.APIKey())
	assert.Empty(t, ProviderConfig{APIKeyEnv: "TEST_VENDOR_KEY_UNSET"}.APIKey())
	assert.Empty(t, ProviderConfig{}.APIKey())
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "ai.request_timeout", envKey("APPCOLLAB_AI__REQUEST_TIMEOUT"))
	assert.Equal(t, "database.max_open_conns", envKey("APPCOLLAB_DATABASE__MAX_OPEN_CONNS"))
}
