package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/esche888/appcollab-sub000/internal/models"
)

// EnvPrefix is the prefix for environment overrides. Nested keys are
// separated by a double underscore: APPCOLLAB_DATABASE__MAX_OPEN_CONNS.
const EnvPrefix = "APPCOLLAB_"

// Config holds configuration for the gateway.
type Config struct {
	HTTPPort string         `koanf:"http_port"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	AI       AIConfig       `koanf:"ai"`
	Usage    UsageConfig    `koanf:"usage"`
}

// LogConfig controls the component loggers
type LogConfig struct {
	Level string `koanf:"level"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
}

// RedisConfig holds Redis connection settings. An empty Address keeps the
// usage queue in memory.
type RedisConfig struct {
	Address  string `koanf:"address"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// AIConfig holds provider-related settings
type AIConfig struct {
	RequestTimeout time.Duration             `koanf:"request_timeout"`
	MaxTokens      int                       `koanf:"max_tokens"`
	FallbackOrder  []string                  `koanf:"fallback_order"`
	PromptDir      string                    `koanf:"prompt_dir"`
	Providers      map[string]ProviderConfig `koanf:"providers"`
}

// ProviderConfig holds the settings for a single vendor. The credential
// itself is never stored in config, only the name of the env var holding it.
type ProviderConfig struct {
	APIKeyEnv string `koanf:"api_key_env"`
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
}

// UsageConfig controls the asynchronous usage log pipeline
type UsageConfig struct {
	QueueName      string        `koanf:"queue_name"`
	BatchSize      int           `koanf:"batch_size"`
	BatchTimeout   time.Duration `koanf:"batch_timeout"`
	MaxRetries     int           `koanf:"max_retries"`
	RetryBackoff   time.Duration `koanf:"retry_backoff"`
	EnqueueTimeout time.Duration `koanf:"enqueue_timeout"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		HTTPPort: "8080",
		Log:      LogConfig{Level: "info"},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 1 * time.Minute,
			QueryTimeout:    5 * time.Second,
		},
		AI: AIConfig{
			RequestTimeout: 60 * time.Second,
			MaxTokens:      1024,
			FallbackOrder:  modelNames(models.DefaultFallbackOrder),
			PromptDir:      "prompts",
			Providers: map[string]ProviderConfig{
				string(models.ModelClaude): {APIKeyEnv: "ANTHROPIC_API_KEY", Model: "claude-3-5-sonnet-latest"},
				string(models.ModelOpenAI): {APIKeyEnv: "OPENAI_API_KEY", Model: "gpt-4o-mini"},
				string(models.ModelGemini): {APIKeyEnv: "GEMINI_API_KEY", Model: "gemini-2.0-flash"},
			},
		},
		Usage: UsageConfig{
			QueueName:      "ai-usage",
			BatchSize:      100,
			BatchTimeout:   5 * time.Second,
			MaxRetries:     3,
			RetryBackoff:   1 * time.Second,
			EnqueueTimeout: 2 * time.Second,
		},
	}
}

// Load reads configuration from an optional YAML file, layers environment
// variable overrides on top, and returns a validated Config.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	k := koanf.New(".")

	// map entries are decoded whole, so seed per-field defaults for each
	// vendor before the file and env layers merge on top of them
	if err := seedProviderDefaults(k, Default().AI.Providers); err != nil {
		return nil, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func seedProviderDefaults(k *koanf.Koanf, providers map[string]ProviderConfig) error {
	for id, pc := range providers {
		prefix := "ai.providers." + id + "."
		for key, val := range map[string]string{
			"api_key_env": pc.APIKeyEnv,
			"model":       pc.Model,
			"base_url":    pc.BaseURL,
		} {
			if err := k.Set(prefix+key, val); err != nil {
				return fmt.Errorf("seeding %s defaults: %w", id, err)
			}
		}
	}
	return nil
}

// envKey maps APPCOLLAB_AI__REQUEST_TIMEOUT to ai.request_timeout.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	if c.AI.RequestTimeout <= 0 {
		return fmt.Errorf("ai.request_timeout must be positive")
	}
	if _, err := c.FallbackOrder(); err != nil {
		return err
	}
	for name := range c.AI.Providers {
		if _, err := models.ParseModelID(name); err != nil {
			return fmt.Errorf("ai.providers: %w", err)
		}
	}
	if c.Usage.BatchSize <= 0 {
		return fmt.Errorf("usage.batch_size must be positive")
	}
	return nil
}

// FallbackOrder returns ai.fallback_order as model identifiers.
func (c *Config) FallbackOrder() ([]models.ModelID, error) {
	order := make([]models.ModelID, 0, len(c.AI.FallbackOrder))
	for _, name := range c.AI.FallbackOrder {
		id, err := models.ParseModelID(name)
		if err != nil {
			return nil, fmt.Errorf("ai.fallback_order: %w", err)
		}
		order = append(order, id)
	}
	return order, nil
}

// APIKey resolves the credential for a vendor from its env var.
// An empty string means the vendor is not configured.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(p.APIKeyEnv))
}

func modelNames(ids []models.ModelID) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return names
}
