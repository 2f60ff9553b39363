package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Recommend RecommendConfig `yaml:"recommend" mapstructure:"recommend"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key                string  `yaml:"key" mapstructure:"key"`
	SelectionModel     string  `yaml:"selection_model" mapstructure:"selection_model"`
	CommunicationModel string  `yaml:"communication_model" mapstructure:"communication_model"`
	RequestsPerSecond  float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst              int     `yaml:"burst" mapstructure:"burst"`
}

// RecommendConfig tunes the two-stage recommendation engine.
type RecommendConfig struct {
	SelectionTimeoutSecs     int     `yaml:"selection_timeout_secs" mapstructure:"selection_timeout_secs"`
	CommunicationTimeoutSecs int     `yaml:"communication_timeout_secs" mapstructure:"communication_timeout_secs"`
	SelectionTemperature     float64 `yaml:"selection_temperature" mapstructure:"selection_temperature"`
	SelectionMaxTokens       int64   `yaml:"selection_max_tokens" mapstructure:"selection_max_tokens"`
	CommunicationMaxTokens   int64   `yaml:"communication_max_tokens" mapstructure:"communication_max_tokens"`
	StylesPath               string  `yaml:"styles_path" mapstructure:"styles_path"`
}

// SessionConfig governs session lifecycle.
type SessionConfig struct {
	StaleAfterMins      int `yaml:"stale_after_mins" mapstructure:"stale_after_mins"`
	CleanupIntervalMins int `yaml:"cleanup_interval_mins" mapstructure:"cleanup_interval_mins"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("SOMM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("anthropic.selection_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.communication_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.requests_per_second", 5)
	v.SetDefault("anthropic.burst", 10)
	v.SetDefault("recommend.selection_timeout_secs", 60)
	v.SetDefault("recommend.communication_timeout_secs", 30)
	v.SetDefault("recommend.selection_temperature", 0.3)
	v.SetDefault("recommend.selection_max_tokens", 2048)
	v.SetDefault("recommend.communication_max_tokens", 1024)
	v.SetDefault("recommend.styles_path", "styles.yaml")
	v.SetDefault("session.stale_after_mins", 120)
	v.SetDefault("session.cleanup_interval_mins", 15)

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

// Validate checks that the configuration is usable for the given command
// mode. Modes map to cobra commands: "serve", "migrate", "catalog".
func (c *Config) Validate(mode string) error {
	var missing []string

	requireDB := func() {
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	}

	switch mode {
	case "serve":
		requireDB()
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required")
		}
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
		if c.Recommend.SelectionTimeoutSecs <= 0 {
			missing = append(missing, "recommend.selection_timeout_secs must be > 0")
		}
		if c.Recommend.CommunicationTimeoutSecs <= 0 {
			missing = append(missing, "recommend.communication_timeout_secs must be > 0")
		}
		if c.Recommend.SelectionTemperature < 0 || c.Recommend.SelectionTemperature > 1 {
			missing = append(missing, "recommend.selection_temperature must be between 0 and 1")
		}
	case "migrate", "catalog":
		requireDB()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: invalid for %s mode: %s", mode, strings.Join(missing, "; "))
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
