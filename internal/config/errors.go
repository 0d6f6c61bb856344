// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "errors"

var (
	// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
	ErrUnknownConfigField = errors.New("unknown config field")
	// ErrToolUnavailable is returned by startup checks when the media tool cannot be resolved.
	ErrToolUnavailable = errors.New("media tool unavailable")
)
