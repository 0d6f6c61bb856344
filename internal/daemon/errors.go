// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

var (
	// ErrMissingHandler is returned when no HTTP handler is provided.
	ErrMissingHandler = errors.New("API handler is required")

	// ErrMissingSweeper is returned when no retention sweeper is provided.
	ErrMissingSweeper = errors.New("retention sweeper is required")

	// ErrAlreadyStarted is returned when Run is called twice.
	ErrAlreadyStarted = errors.New("daemon already started")
)
