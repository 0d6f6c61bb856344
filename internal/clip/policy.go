// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clip

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMaxAge is how long a stored file survives before the sweeper evicts it.
const DefaultMaxAge = time.Hour

// RetentionPolicy is fixed for the lifetime of the process.
type RetentionPolicy struct {
	MaxAge        time.Duration
	SweepInterval time.Duration
}

// NewRetentionPolicy builds a policy; a zero interval defaults to maxAge.
func NewRetentionPolicy(maxAge, interval time.Duration) (RetentionPolicy, error) {
	if maxAge <= 0 {
		return RetentionPolicy{}, fmt.Errorf("retention max age must be positive, got %s", maxAge)
	}
	if interval == 0 {
		interval = maxAge
	}
	p := RetentionPolicy{MaxAge: maxAge, SweepInterval: interval}
	return p, p.Validate()
}

// Validate checks the policy invariants.
func (p RetentionPolicy) Validate() error {
	if p.MaxAge <= 0 {
		return errors.New("retention max age must be positive")
	}
	if p.SweepInterval <= 0 {
		return errors.New("retention sweep interval must be positive")
	}
	return nil
}

// Expired reports whether a file last modified at mod is older than MaxAge at now.
func (p RetentionPolicy) Expired(mod, now time.Time) bool {
	return now.Sub(mod) > p.MaxAge
}
