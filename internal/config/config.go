// Package config loads the daemon's configuration with spf13/viper:
// defaults first, then an optional config file, then environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// EngineConfig is the full configuration surface of muesd. It mirrors
// engine.Config and engine.ConnectionDefaults but in mapstructure-tagged,
// viper-friendly form.
type EngineConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`

	Queue struct {
		MinWorkers          int           `mapstructure:"min_workers"`
		MaxWorkers          int           `mapstructure:"max_workers"`
		SupervisorThreshold time.Duration `mapstructure:"supervisor_threshold"`
	} `mapstructure:"queue"`

	Login struct {
		MaxTries   int           `mapstructure:"max_tries"`
		Timeout    time.Duration `mapstructure:"timeout"`
		RateWindow time.Duration `mapstructure:"rate_window"`
		RateLimit  int           `mapstructure:"rate_limit"`
	} `mapstructure:"login"`

	Listen struct {
		Address string `mapstructure:"address"`
	} `mapstructure:"listen"`

	Log struct {
		Format string `mapstructure:"format"` // "json" or "console"
	} `mapstructure:"log"`

	ControlSocket string `mapstructure:"control_socket"`
}

// Default returns the configuration muesd starts with before any file or
// environment override is applied.
func Default() *EngineConfig {
	cfg := &EngineConfig{}
	cfg.TickInterval = time.Second
	cfg.Queue.MinWorkers = 2
	cfg.Queue.MaxWorkers = 16
	cfg.Queue.SupervisorThreshold = 200 * time.Millisecond
	cfg.Login.MaxTries = 3
	cfg.Login.Timeout = 60 * time.Second
	cfg.Login.RateWindow = time.Minute
	cfg.Login.RateLimit = 5
	cfg.Listen.Address = "127.0.0.1:6116"
	cfg.Log.Format = "json"
	cfg.ControlSocket = "/tmp/muesd.sock"
	return cfg
}

// Load reads configPath (if non-empty) over the defaults, then applies
// MUESD_-prefixed environment variable overrides, and validates the result.
// The environment is consulted only for keys the config file sets, under
// the upper-cased key with its dots kept (e.g. MUESD_QUEUE.MIN_WORKERS);
// without a config file no environment variable is read.
func Load(configPath string) (*EngineConfig, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix("MUESD")
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the Engine could not run with.
func (c *EngineConfig) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("config: tick_interval must be positive")
	}
	if c.Queue.MinWorkers <= 0 {
		return fmt.Errorf("config: queue.min_workers must be positive")
	}
	if c.Queue.MaxWorkers < c.Queue.MinWorkers {
		return fmt.Errorf("config: queue.max_workers must be >= queue.min_workers")
	}
	if c.Login.MaxTries <= 0 {
		return fmt.Errorf("config: login.max_tries must be positive")
	}
	if c.Listen.Address == "" {
		return fmt.Errorf("config: listen.address must be set")
	}
	return nil
}
