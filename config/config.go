// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads, validates and watches the filepay daemon's YAML
// configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bitfsorg/filepay-go/chain"
	"github.com/bitfsorg/filepay-go/storage"
)

// Config is the daemon configuration.
type Config struct {
	DataDir    string `yaml:"data_dir"`
	ListenAddr string `yaml:"listen"`
	Network    string `yaml:"network"`
	LogLevel   string `yaml:"log_level"`
	LogFile    string `yaml:"log_file,omitempty"`

	Ledger  LedgerConfig  `yaml:"ledger"`
	Storage StorageConfig `yaml:"storage"`
	Funding FundingConfig `yaml:"funding"`
	History HistoryConfig `yaml:"history"`
}

// LedgerConfig holds the persisted ledger settings.
type LedgerConfig struct {
	RatePerByte   uint64        `yaml:"rate_per_byte"`
	RefundWindow  time.Duration `yaml:"refund_window"`
	TokenLifetime time.Duration `yaml:"token_lifetime"`
	InvoiceTTL    time.Duration `yaml:"invoice_ttl"`
	Operators     []string      `yaml:"operators"`
	Provider      string        `yaml:"provider"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Backend     string           `yaml:"backend"` // "file" or "s3"
	Compression string           `yaml:"compression,omitempty"`
	PutRetries  uint64           `yaml:"put_retries"`
	Gateways    []string         `yaml:"gateways,omitempty"`
	S3          storage.S3Config `yaml:"s3,omitempty"`
}

// FundingConfig enables x402 account funding. An empty PayTo disables it.
type FundingConfig struct {
	PayTo            string           `yaml:"pay_to,omitempty"`
	MinConfirmations int64            `yaml:"min_confirmations"`
	Broadcast        bool             `yaml:"broadcast"`
	RPC              *chain.RPCConfig `yaml:"rpc,omitempty"`
}

// HistoryConfig enables the Postgres upload history. An empty DSN disables it.
type HistoryConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

// DefaultDataDir returns ~/.filepay, or .filepay when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".filepay"
	}
	return filepath.Join(home, ".filepay")
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		DataDir:    DefaultDataDir(),
		ListenAddr: ":8080",
		Network:    "mainnet",
		LogLevel:   "info",
		Ledger: LedgerConfig{
			RatePerByte:   1,
			RefundWindow:  7 * 24 * time.Hour,
			TokenLifetime: time.Hour,
			InvoiceTTL:    15 * time.Minute,
			Operators:     []string{"operator@localhost"},
			Provider:      "provider@localhost",
		},
		Storage: StorageConfig{
			Backend:    "file",
			PutRetries: 3,
		},
	}
}

// ConfigPath returns the configuration file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

// LedgerPath returns the bbolt ledger file path.
func (c Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// ObjectsPath returns the file storage directory.
func (c Config) ObjectsPath() string {
	return filepath.Join(c.DataDir, "objects")
}

// LoadConfig reads the YAML file at path. Keys absent from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %w", ErrMalformedConfig, path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	out := append([]byte("# filepay configuration\n"), data...)
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
