// Package config loads application configuration from file and
// environment and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/humtech/outreach-cli/internal/monitoring"
	"github.com/humtech/outreach-cli/internal/pipeline"
	"github.com/humtech/outreach-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig       `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  pipeline.Config   `yaml:"pipeline" mapstructure:"pipeline"`
	Truth     TruthConfig       `yaml:"truth" mapstructure:"truth"`
	Dispatch  DispatchConfig    `yaml:"dispatch" mapstructure:"dispatch"`
	Server    ServerConfig      `yaml:"server" mapstructure:"server"`
	Monitor   monitoring.Config `yaml:"monitor" mapstructure:"monitor"`
	Log       LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// TruthConfig configures the truth validator.
type TruthConfig struct {
	DenylistPath string `yaml:"denylist_path" mapstructure:"denylist_path"`
}

// DispatchConfig configures the outbound webhook.
type DispatchConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
}

// ServerConfig configures the review/dispatch HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "outreach.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.rate_per_second", 2.0)
	v.SetDefault("anthropic.rate_burst", 4)
	v.SetDefault("pipeline.prompt_version", "v1.0")
	v.SetDefault("pipeline.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("pipeline.template_context", "HumTech builds lead-generation and marketing-automation systems for UK trade and construction businesses.")
	v.SetDefault("pipeline.max_tokens", 500)
	v.SetDefault("pipeline.generation_timeout", 60*time.Second)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("monitor.block_rate_threshold", 0.5)
	v.SetDefault("monitor.failure_rate_threshold", 0.2)
	v.SetDefault("monitor.review_backlog_max", 50)
	v.SetDefault("monitor.check_interval_secs", 300)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration needed for the given command mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > 32 {
		problems = append(problems, "pipeline.concurrency must be between 1 and 32")
	}

	switch mode {
	case "pipeline":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Pipeline.PromptVersion == "" {
			problems = append(problems, "pipeline.prompt_version is required")
		}
		if c.Pipeline.Model == "" {
			problems = append(problems, "pipeline.model is required")
		}
	case "send":
		if c.Dispatch.WebhookURL == "" {
			problems = append(problems, "dispatch.webhook_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "store":
		// Base checks only.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
