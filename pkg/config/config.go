package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EngineWorker    = "worker"
	EngineEventLoop = "eventloop"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Session SessionConfig `mapstructure:"session"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type SessionConfig struct {
	// Engine selects the session execution model: "worker" gives every
	// session a dedicated goroutine, "eventloop" confines all sessions to
	// one shared scheduling goroutine.
	Engine               string `mapstructure:"engine"`
	ExpireSeconds        int    `mapstructure:"expire_seconds"`
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds"`
	PushTimeoutSeconds   int    `mapstructure:"push_timeout_seconds"`
	EventBufferSize      int    `mapstructure:"event_buffer_size"`
	// StartEventLoop launches the shared scheduling goroutine at server boot.
	// When false the loop starts lazily with the first session instead.
	// Only meaningful for the "eventloop" engine.
	StartEventLoop bool `mapstructure:"start_event_loop"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func Load(configPath string) (*Config, error) {
	var cfg Config
	if err := loadConfigFile(configPath, "config", &cfg); err != nil {
		return nil, fmt.Errorf("could not load main config file: %w", err)
	}
	setDefaultValues(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadConfigFile(configPath, fileName string, out interface{}) error {
	viper.SetConfigName(fileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
		}
		// no file is fine, environment variables still apply
	}

	if err := viper.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}

	return nil
}

func setDefaultValues(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Session.Engine == "" {
		cfg.Session.Engine = EngineWorker
	}
	if cfg.Session.ExpireSeconds == 0 {
		cfg.Session.ExpireSeconds = 14400
	}
	if cfg.Session.SweepIntervalSeconds == 0 {
		cfg.Session.SweepIntervalSeconds = 120
	}
	if cfg.Session.PushTimeoutSeconds == 0 {
		cfg.Session.PushTimeoutSeconds = 10
	}
	if cfg.Session.EventBufferSize == 0 {
		cfg.Session.EventBufferSize = 64
	}
}

func (c *Config) Validate() error {
	switch c.Session.Engine {
	case EngineWorker, EngineEventLoop:
	default:
		return fmt.Errorf("invalid session engine %q, must be %q or %q",
			c.Session.Engine, EngineWorker, EngineEventLoop)
	}
	return nil
}

func (c *Config) SessionExpiry() time.Duration {
	return time.Duration(c.Session.ExpireSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Session.SweepIntervalSeconds) * time.Second
}

func (c *Config) PushTimeout() time.Duration {
	return time.Duration(c.Session.PushTimeoutSeconds) * time.Second
}
