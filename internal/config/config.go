// Package config loads service configuration from defaults, an optional
// config file, and FATHOM_-prefixed environment variables, in that
// order of increasing precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment variable overrides, e.g.
// FATHOM_SERVER_PORT=9000.
const EnvPrefix = "FATHOM"

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Research ResearchConfig `mapstructure:"research"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Search   SearchConfig   `mapstructure:"search"`
	Store    StoreConfig    `mapstructure:"store"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`
	Debug    DebugConfig    `mapstructure:"debug"`
	Workers  int            `mapstructure:"workers"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// ResearchConfig carries the default research budgets applied when a
// job is created without explicit values.
type ResearchConfig struct {
	DefaultBreadth int `mapstructure:"default_breadth"`
	DefaultDepth   int `mapstructure:"default_depth"`
}

// LLMConfig configures the generation client.
type LLMConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	MaxRetries        int     `mapstructure:"max_retries"`
}

// SearchConfig configures the browser-backed web search provider.
type SearchConfig struct {
	Headless    bool          `mapstructure:"headless"`
	PageTimeout time.Duration `mapstructure:"page_timeout"`
	Allow       []string      `mapstructure:"allow"`
	Block       []string      `mapstructure:"block"`
}

// StoreConfig configures job persistence.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ArchiveConfig configures completed-report archival. An empty backend
// disables archival.
type ArchiveConfig struct {
	Backend        string `mapstructure:"backend"`
	Dir            string `mapstructure:"dir"`
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	Profile        string `mapstructure:"profile"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig configures the health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig configures debug facilities.
type DebugConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// SetDefaults registers every default on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("research.default_breadth", 4)
	v.SetDefault("research.default_depth", 2)

	// api_key has an explicit empty default so the env override
	// FATHOM_LLM_API_KEY binds even without a config file.
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.requests_per_second", 1.0)
	v.SetDefault("llm.max_retries", 3)

	v.SetDefault("search.headless", true)
	v.SetDefault("search.page_timeout", "20s")

	v.SetDefault("store.path", "fathom.db")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	v.SetDefault("workers", 4)

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}

// Load builds the configuration from defaults, an optional config file,
// and environment overrides.
//
// The config file is looked up as fathom.yaml in the working directory
// unless an explicit path is given. A missing file is not an error; a
// malformed one is.
func Load(ctx context.Context, configFile string) (*Config, error) {
	_ = ctx

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("fathom")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Research.DefaultBreadth < 1 || c.Research.DefaultBreadth > 5 {
		return fmt.Errorf("research.default_breadth %d out of range [1,5]", c.Research.DefaultBreadth)
	}
	if c.Research.DefaultDepth < 1 || c.Research.DefaultDepth > 5 {
		return fmt.Errorf("research.default_depth %d out of range [1,5]", c.Research.DefaultDepth)
	}
	switch c.Archive.Backend {
	case "", "file", "s3":
	default:
		return fmt.Errorf("archive.backend %q must be file or s3", c.Archive.Backend)
	}
	return nil
}
