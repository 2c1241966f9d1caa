// Package config loads offpay settings from an optional YAML file and
// OFFPAY_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when reading the environment,
// e.g. db_path is read from OFFPAY_DB_PATH.
const EnvPrefix = "OFFPAY"

// Config holds settings shared by the device CLI and the sync server.
type Config struct {
	// DBPath is the SQLite file for the ledger and secrets (device) or the
	// receipt log (server).
	DBPath string `mapstructure:"db_path"`

	// KeyFile holds the vault master key. Created on first use.
	KeyFile string `mapstructure:"key_file"`

	// PayloadSecret enables sealed payloads when non-empty. Every device
	// that exchanges payloads must share it.
	PayloadSecret string `mapstructure:"payload_secret"`

	DeviceID     string `mapstructure:"device_id"`
	DeviceSecret string `mapstructure:"device_secret"`

	SyncURL     string        `mapstructure:"sync_url"`
	SyncTimeout time.Duration `mapstructure:"sync_timeout"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`

	ListenAddr string `mapstructure:"listen_addr"`

	// MetricsFile, when set, receives the device's flow and sync counters in
	// the Prometheus text format after every CLI command, for a node
	// exporter textfile collector to pick up.
	MetricsFile string `mapstructure:"metrics_file"`

	LogLevel   string `mapstructure:"log_level"`

	// PINHashCost is the bcrypt cost for the stored PIN hash. Zero uses the
	// bcrypt default.
	PINHashCost int `mapstructure:"pin_hash_cost"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "./data/offpay.db")
	v.SetDefault("key_file", "./data/master.key")
	v.SetDefault("payload_secret", "")
	v.SetDefault("device_id", "")
	v.SetDefault("device_secret", "")
	v.SetDefault("sync_url", "http://localhost:8080")
	v.SetDefault("sync_timeout", 10*time.Second)
	v.SetDefault("token_ttl", 5*time.Minute)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("metrics_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("pin_hash_cost", 0)
}

// Load reads configuration. If file is empty, offpay.yaml is looked up in
// ./config and the working directory, and a missing file is not an error.
// An explicit file must exist.
func Load(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("offpay")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.SyncTimeout <= 0 {
		return nil, fmt.Errorf("sync_timeout must be positive, got %s", cfg.SyncTimeout)
	}

	return &cfg, nil
}
