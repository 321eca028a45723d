// Package config loads the hub's YAML configuration file, merges it over
// built-in defaults, and expands environment variables — grounded on
// tarsy's pkg/config/loader.go (dario.cat/mergo merge-over-defaults,
// gopkg.in/yaml.v3 parsing, ExpandEnv substitution) and cmd/tarsy/main.go's
// github.com/joho/godotenv .env loading (spec.md §4 AMBIENT "configuration").
package config

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the hub's fully resolved runtime configuration.
type Config struct {
	Server       ServerConfig     `yaml:"server"`
	Store        StoreConfig      `yaml:"store"`
	Dispatcher   DispatcherConfig `yaml:"dispatcher"`
	Trending     TrendingConfig   `yaml:"trending"`
	Enrollment   EnrollmentConfig `yaml:"enrollment"`
	HubSecretEnv string           `yaml:"hub_secret_env"`
}

// ServerConfig governs the HTTP API surface.
type ServerConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MetricsEnabled bool     `yaml:"metrics_enabled"`
}

// StoreConfig governs the SQLite database file.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// DispatcherConfig holds agent WebSocket session settings. It is loaded and
// defaulted but not read by pkg/dispatcher or pkg/router: the heartbeat
// interval and the agent call timeout are fixed at 30s in those packages.
type DispatcherConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
}

// TrendingConfig governs the rolling probe-result store.
type TrendingConfig struct {
	RetentionWindow time.Duration `yaml:"retention_window"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}

// EnrollmentConfig governs enrollment token lifecycle.
type EnrollmentConfig struct {
	DefaultTTL time.Duration `yaml:"default_ttl"`
	HubURL     string        `yaml:"hub_url"`
}

// defaults returns the built-in configuration every loaded file is merged
// over (tarsy: GetBuiltinConfig + mergeAgents/mergeMCPServers pattern,
// generalised here to a single flat struct since the hub has no
// multi-registry config surface).
func defaults() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr: ":8443",
		},
		Store: StoreConfig{
			Path: "hub.db",
		},
		Dispatcher: DispatcherConfig{
			HeartbeatInterval: 30 * time.Second,
			CallTimeout:       30 * time.Second,
		},
		Trending: TrendingConfig{
			RetentionWindow: 24 * time.Hour,
			SweepInterval:   15 * time.Minute,
		},
		Enrollment: EnrollmentConfig{
			DefaultTTL: 15 * time.Minute,
		},
		HubSecretEnv: "SONDE_HUB_SECRET",
	}
}

// Load reads envPath (if present, via godotenv) into the process
// environment, then reads and parses configPath, expands environment
// variables, and merges the result over defaults() (user config wins on
// every field it sets).
func Load(configPath, envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file %s: %w", envPath, err)
		}
	}

	cfg := defaults()

	if configPath == "" {
		return &cfg, nil
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	expanded := ExpandEnv(raw)

	var fileCfg Config
	if err := yaml.Unmarshal(expanded, &fileCfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
	}

	if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge config over defaults: %w", err)
	}

	return &cfg, nil
}

// HubSecret resolves the symmetric hub secret from the environment variable
// named by HubSecretEnv.
func (c *Config) HubSecret() ([]byte, error) {
	val := os.Getenv(c.HubSecretEnv)
	if val == "" {
		return nil, fmt.Errorf("environment variable %s is not set", c.HubSecretEnv)
	}
	return []byte(val), nil
}
