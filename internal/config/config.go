// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest):
//  1. Environment variables (DESKD_* runtime override)
//  2. Config file (~/.deskd/config.yaml)
//  3. Default values
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidMaxIterations indicates the agent loop ceiling is out of range.
	ErrInvalidMaxIterations = errors.New("invalid max iterations")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top k")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

const (
	// DefaultModelName is the default chat model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultEmbedderModel is the default embedding model.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultMaxIterations bounds the agent loop's model round-trips.
	DefaultMaxIterations = 50

	// DefaultTopK is the number of chunks requested per policy search.
	DefaultTopK = 4

	// MaxAllowedIterations is the absolute ceiling regardless of config.
	MaxAllowedIterations = 200
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider"`
	ModelName     string `mapstructure:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model"`

	// Agent loop
	MaxIterations int `mapstructure:"max_iterations"`

	// Retrieval
	TopK int `mapstructure:"top_k"`

	// Storage paths. Empty values are derived from DataDir.
	DataDir      string `mapstructure:"data_dir"`
	PoliciesDir  string `mapstructure:"policies_dir"`
	DatabasePath string `mapstructure:"database_path"`
	VectorPath   string `mapstructure:"vector_path"`
	LedgerPath   string `mapstructure:"ledger_path"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration from file, environment, and defaults.
// A missing config file is not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".deskd"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("DESKD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.applyPathDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("max_iterations", DefaultMaxIterations)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// applyPathDefaults derives unset storage paths from DataDir.
func (c *Config) applyPathDefaults() {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.DataDir = filepath.Join(home, ".deskd")
	}
	if c.PoliciesDir == "" {
		c.PoliciesDir = filepath.Join(c.DataDir, "policies")
	}
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "support.db")
	}
	if c.VectorPath == "" {
		c.VectorPath = filepath.Join(c.DataDir, "vectors")
	}
	if c.LedgerPath == "" {
		c.LedgerPath = filepath.Join(c.DataDir, "indexed_state.json")
	}
}

// Validate checks configuration values and returns a sentinel error on failure.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOpenAI)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidModelName)
	}

	if c.MaxIterations < 1 || c.MaxIterations > MaxAllowedIterations {
		return fmt.Errorf("%w: %d (expected 1..%d)",
			ErrInvalidMaxIterations, c.MaxIterations, MaxAllowedIterations)
	}

	if c.TopK < 1 || c.TopK > 20 {
		return fmt.Errorf("%w: %d (expected 1..20)", ErrInvalidTopK, c.TopK)
	}

	return nil
}

// EnsureDirs creates the data and policies directories if missing.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.PoliciesDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}
