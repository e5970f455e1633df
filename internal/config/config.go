package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/amosWeiskopf/seosession/internal/models"
)

// Config holds all application configuration
type Config struct {
	// Session configuration
	Session SessionConfig `mapstructure:"session"`

	// Issue analyzer configuration
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`

	// Query aggregation configuration
	Query QueryConfig `mapstructure:"query"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SessionConfig holds crawl session configuration
type SessionConfig struct {
	Type                string        `mapstructure:"type"` // "spider", "list" or "single-page"
	QueueSize           int           `mapstructure:"queue_size"`
	ProgressLogInterval time.Duration `mapstructure:"progress_log_interval"`
}

// AnalyzerConfig holds issue rule configuration
type AnalyzerConfig struct {
	RobotsTxt   string `mapstructure:"robots_txt"` // optional path to a robots.txt file
	RobotsAgent string `mapstructure:"robots_agent"`
}

// QueryConfig holds query aggregation configuration
type QueryConfig struct {
	TopQueries int `mapstructure:"top_queries"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "json" or "text"
	OutputPath string `mapstructure:"output_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// MetricsConfig holds the prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.seosession")
	}

	setDefaults(v)
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error, we'll use defaults and env
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &config, nil
}

// Default returns the configuration with only defaults applied
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Session defaults
	v.SetDefault("session.type", string(models.SessionSpider))
	v.SetDefault("session.queue_size", 1024)
	v.SetDefault("session.progress_log_interval", "2s")

	// Analyzer defaults
	v.SetDefault("analyzer.robots_txt", "")
	v.SetDefault("analyzer.robots_agent", "SEOSession")

	// Query defaults
	v.SetDefault("query.top_queries", 5)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stderr")
	v.SetDefault("logging.max_size_mb", 5)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", ":9090")
}

// bindEnvVars binds environment variables, e.g. SEOSESSION_LOGGING_LEVEL
func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix("SEOSESSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, ok := models.ParseSessionType(c.Session.Type); !ok {
		return fmt.Errorf("session.type %q is not one of spider, list, single-page", c.Session.Type)
	}
	if c.Session.QueueSize <= 0 {
		return fmt.Errorf("session.queue_size must be positive")
	}
	if c.Session.ProgressLogInterval < 0 {
		return fmt.Errorf("session.progress_log_interval must not be negative")
	}
	if c.Query.TopQueries <= 0 {
		return fmt.Errorf("query.top_queries must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format %q must be json or text", c.Logging.Format)
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics.address is required when metrics are enabled")
	}
	return nil
}
