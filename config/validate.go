// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/bitfsorg/filepay-go/funding"
	"github.com/bitfsorg/filepay-go/storage"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return ErrInvalidNetwork
	}

	if err := validateAddr(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if err := validateLedger(cfg.Ledger); err != nil {
		return err
	}
	if err := validateStorage(cfg.Storage); err != nil {
		return err
	}

	if cfg.Funding.PayTo != "" {
		if err := funding.ValidateAddress(cfg.Funding.PayTo); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayTo, err)
		}
	}

	return nil
}

func validateLedger(l LedgerConfig) error {
	if l.RatePerByte == 0 {
		return ErrInvalidRate
	}
	if len(l.Operators) == 0 {
		return ErrNoOperators
	}
	for _, op := range l.Operators {
		if strings.TrimSpace(op) == "" {
			return fmt.Errorf("%w: empty operator entry", ErrNoOperators)
		}
	}
	if strings.TrimSpace(l.Provider) == "" {
		return ErrEmptyProvider
	}
	if l.RefundWindow < 0 || l.TokenLifetime < 0 || l.InvoiceTTL < 0 {
		return ErrInvalidDuration
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	switch s.Backend {
	case "file":
	case "s3":
		if s.S3.Bucket == "" {
			return fmt.Errorf("%w: s3 bucket is required", ErrInvalidBackend)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, s.Backend)
	}
	if _, err := storage.ParseCompression(s.Compression); err != nil {
		return err
	}
	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
