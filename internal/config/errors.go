// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "errors"

var (
	// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
	ErrUnknownConfigField = errors.New("unknown config field")

	// ErrInvalid wraps every validation failure returned by Validate.
	ErrInvalid = errors.New("invalid configuration")

	// ErrNoConfigPath is returned by Save when no config file is configured.
	ErrNoConfigPath = errors.New("no config file path")
)
