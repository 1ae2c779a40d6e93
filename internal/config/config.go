// Copyright 2025 Takhin Data, Inc.

// Package config loads tagent's layered configuration: built-in
// defaults, overridden by a settings file, overridden by environment
// variables — grounded on the teacher's pkg/config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix recognized for environment variable
// overrides (spec §6 "Environment variables").
const EnvPrefix = "TAGENT_"

// Config is tagent's full runtime configuration.
type Config struct {
	RootDirectory string `koanf:"root_directory"`
	PublicKeyURL  string `koanf:"public_key_url"`
	PublicKey     string `koanf:"public_key"`
	Address       string `koanf:"address"`
	Port          int    `koanf:"port"`
	DatabaseURL   string `koanf:"database_url"`

	Logging LoggingConfig `koanf:"logging"`
	Audit   AuditConfig   `koanf:"audit"`
}

// LoggingConfig controls the ambient logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AuditConfig controls the audit trail.
type AuditConfig struct {
	Enabled    bool   `koanf:"enabled"`
	OutputPath string `koanf:"output.path"`
}

// DefaultSettingsPath returns <user-config-dir>/tagent/settings.yaml,
// the settings file location named in spec §6.
func DefaultSettingsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "tagent", "settings.yaml"), nil
}

// Load builds a Config from built-in defaults, then configPath (if it
// exists), then TAGENT_-prefixed environment variables, in that order
// (last wins), per spec §6.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		// Only the logging and audit sections are nested; top-level keys
		// such as public_key keep their underscores.
		if strings.HasPrefix(key, "logging_") || strings.HasPrefix(key, "audit_") {
			return strings.ReplaceAll(key, "_", ".")
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = dbURL
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Address == "" {
		cfg.Address = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.RootDirectory == "" {
		cfg.RootDirectory = "/tmp/tagent-files"
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "/tmp/tagent.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.PublicKeyURL == "" && cfg.PublicKey == "" {
		return fmt.Errorf("one of public_key_url or public_key must be set")
	}
	return nil
}
