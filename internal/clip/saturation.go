// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clip

import (
	"fmt"
	"math"
	"strconv"
)

const (
	// DefaultSaturation boosts color saturation by 5%.
	DefaultSaturation Saturation = 1.05
	// MaxSaturation is the upper bound accepted by the ffmpeg eq filter.
	MaxSaturation Saturation = 3.0
)

// Saturation is a direct color-saturation multiplier: 1.0 is identity, 1.05 is +5%.
// Percentage deltas are not accepted anywhere in the public API.
type Saturation float64

// ParseSaturation parses and validates a multiplier given as text.
func ParseSaturation(raw string) (Saturation, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidSaturation, raw)
	}
	s := Saturation(f)
	return s, s.Validate()
}

// Validate enforces 0 < s <= MaxSaturation.
func (s Saturation) Validate() error {
	f := float64(s)
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 || s > MaxSaturation {
		return fmt.Errorf("%w: %v must be in (0, %v]", ErrInvalidSaturation, f, float64(MaxSaturation))
	}
	return nil
}

// IsIdentity reports whether the factor leaves colors unchanged.
func (s Saturation) IsIdentity() bool {
	return s == 1
}

// String formats the factor the way ffmpeg filter arguments expect it.
func (s Saturation) String() string {
	return strconv.FormatFloat(float64(s), 'f', -1, 64)
}
