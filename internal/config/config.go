package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// App holds the runtime configuration.
type App struct {
	Env             string        `mapstructure:"app_env"`
	HTTPPort        string        `mapstructure:"http_port"`
	LogLevel        string        `mapstructure:"log_level"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_min"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	Store           Store         `mapstructure:",squash"`
}

// Store selects and configures the key-value backend.
type Store struct {
	Backend     string `mapstructure:"store_backend"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	StateDir    string `mapstructure:"state_dir"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix"`
	DatabaseURL string `mapstructure:"database_url"`
}

var defaults = map[string]any{
	"app_env":            "dev",
	"http_port":          "8081",
	"log_level":          "info",
	"rate_limit_per_min": 120,
	"shutdown_timeout":   10 * time.Second,
	"cors_origins":       []string{"*"},
	"store_backend":      "sqlite",
	"sqlite_path":        "./roster.db",
	"state_dir":          "./data",
	"redis_addr":         "localhost:6379",
	"redis_prefix":       "",
	"database_url":       "",
}

// Load reads defaults, an optional roster.yaml from . or ./configs, and
// environment variables named after the upper-cased keys (APP_ENV,
// STORE_BACKEND, ...). Environment variables win.
func Load() (App, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	v.SetConfigName("roster")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return App{}, fmt.Errorf("read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg App
	if err := v.Unmarshal(&cfg); err != nil {
		return App{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.RateLimitPerMin <= 0 {
		return App{}, fmt.Errorf("rate_limit_per_min must be positive, got %d", cfg.RateLimitPerMin)
	}
	return cfg, nil
}
