// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the daemon configuration.
//
// Precedence is ENV > YAML file > defaults. The YAML file is parsed strictly: unknown keys are a
// startup error. Every environment variable carries the PHANTOMCLIP_ prefix.
package config
