// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// Config is the top-level Strata configuration.
type Config struct {
	Server    ServerConfig              `mapstructure:"server" yaml:"server"`
	Storage   StorageConfig             `mapstructure:"storage" yaml:"storage"`
	Memory    MemoryConfig              `mapstructure:"memory" yaml:"memory"`
	GraphSync GraphSyncConfig           `mapstructure:"graph_sync" yaml:"graph_sync"`
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers,omitempty"`
}

// ServerConfig controls how the read-only HTTP surface listens.
type ServerConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// StorageConfig selects the storage backend and its boundary limits.
type StorageConfig struct {
	Backend          string `mapstructure:"backend" yaml:"backend"`
	DataPath         string `mapstructure:"data_path" yaml:"data_path,omitempty"`
	VectorDimensions int    `mapstructure:"vector_dimensions" yaml:"vector_dimensions"`
	MaxValueBytes    int    `mapstructure:"max_value_bytes" yaml:"max_value_bytes"`
	TxMode           string `mapstructure:"tx_mode" yaml:"tx_mode"`
}

// MemoryConfig controls the orchestration layer's defaults.
type MemoryConfig struct {
	BeliefRevision bool `mapstructure:"belief_revision" yaml:"belief_revision"`
	SearchLimit    int  `mapstructure:"search_limit" yaml:"search_limit"`
}

// GraphSyncConfig is the optional secondary graph sync path. Sync activates
// only when Enabled is set and both credentials are present.
type GraphSyncConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key,omitempty"`
}

// ProviderConfig holds credentials, endpoint, and model selection for an
// external provider (embeddings, fact extraction).
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Model    string `mapstructure:"model" yaml:"model,omitempty"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix STRATA_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.listen", "127.0.0.1:18990")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.vector_dimensions", 1536)
	v.SetDefault("storage.max_value_bytes", store.DefaultMaxValueBytes)
	v.SetDefault("storage.tx_mode", string(store.TxModeSequential))
	v.SetDefault("memory.belief_revision", true)
	v.SetDefault("memory.search_limit", 10)

	// Environment
	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, strataerr.Errorf(strataerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateMemory()...)
	errs = append(errs, c.validateGraphSync()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
		return errs
	}

	host, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}
	_ = host // host can be empty (e.g., ":8080"), which is valid

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q",
			portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d",
			port,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite], got %q",
			c.Storage.Backend,
		))
	}

	if c.Storage.VectorDimensions <= 0 {
		errs = append(errs, strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue,
			"config: storage.vector_dimensions must be greater than 0, got %d",
			c.Storage.VectorDimensions,
		))
	}

	if c.Storage.MaxValueBytes <= 0 {
		errs = append(errs, strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue,
			"config: storage.max_value_bytes must be greater than 0, got %d",
			c.Storage.MaxValueBytes,
		))
	}

	validModes := map[string]bool{
		string(store.TxModeSequential):  true,
		string(store.TxModePrevalidate): true,
	}
	if !validModes[c.Storage.TxMode] {
		errs = append(errs, strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue,
			"config: storage.tx_mode must be one of [sequential, prevalidate], got %q",
			c.Storage.TxMode,
		))
	}

	return errs
}

func (c *Config) validateMemory() []error {
	var errs []error

	if c.Memory.SearchLimit <= 0 || c.Memory.SearchLimit > store.MaxListLimit {
		errs = append(errs, strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue,
			"config: memory.search_limit must be between 1 and %d, got %d",
			store.MaxListLimit, c.Memory.SearchLimit,
		))
	}

	return errs
}

func (c *Config) validateGraphSync() []error {
	var errs []error

	if c.GraphSync.Endpoint != "" && !strings.HasPrefix(c.GraphSync.Endpoint, "http://") && !strings.HasPrefix(c.GraphSync.Endpoint, "https://") {
		errs = append(errs, strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue,
			"config: graph_sync.endpoint must be an http(s) URL, got %q",
			c.GraphSync.Endpoint,
		))
	}

	return errs
}

// Render serialises the effective configuration as YAML with every API key
// replaced by a placeholder, suitable for printing to a terminal.
func (c *Config) Render() ([]byte, error) {
	redacted := *c
	if redacted.GraphSync.APIKey != "" {
		redacted.GraphSync.APIKey = "<redacted>"
	}
	if len(c.Providers) > 0 {
		redacted.Providers = make(map[string]ProviderConfig, len(c.Providers))
		for name, p := range c.Providers {
			if p.APIKey != "" {
				p.APIKey = "<redacted>"
			}
			redacted.Providers[name] = p
		}
	}

	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeConfigValidateInvalidValue, "rendering config")
	}
	return out, nil
}

// StoreConfig converts the storage section into the store factory's form.
func (c *Config) StoreConfig() *store.StorageConfig {
	return &store.StorageConfig{
		Backend:          c.Storage.Backend,
		VectorDimensions: c.Storage.VectorDimensions,
		MaxValueBytes:    c.Storage.MaxValueBytes,
		TxMode:           store.TxMode(c.Storage.TxMode),
	}
}
