// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", or \"regtest\")")

	// ErrInvalidListenAddr indicates the listen address is malformed.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrMalformedConfig indicates the configuration file is not valid YAML.
	ErrMalformedConfig = errors.New("config: malformed configuration file")

	// ErrInvalidRate indicates a zero rate per byte.
	ErrInvalidRate = errors.New("config: rate_per_byte must be positive")

	// ErrNoOperators indicates the operator set is empty.
	ErrNoOperators = errors.New("config: at least one operator is required")

	// ErrEmptyProvider indicates no storage provider identity is configured.
	ErrEmptyProvider = errors.New("config: provider must not be empty")

	// ErrInvalidDuration indicates a negative window or lifetime.
	ErrInvalidDuration = errors.New("config: durations must not be negative")

	// ErrInvalidBackend indicates an unknown or incomplete storage backend.
	ErrInvalidBackend = errors.New("config: invalid storage backend (must be \"file\" or \"s3\")")

	// ErrInvalidPayTo indicates the funding address is not a valid BSV address.
	ErrInvalidPayTo = errors.New("config: invalid funding pay_to address")
)
