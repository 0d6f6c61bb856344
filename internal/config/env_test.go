// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseBool(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		set      bool
		def      bool
		expected bool
	}{
		{"unset uses default", "", false, true, true},
		{"true", "true", true, false, true},
		{"one", "1", true, false, true},
		{"yes", "yes", true, false, true},
		{"on", "ON", true, false, true},
		{"off", "off", true, true, false},
		{"garbage keeps default", "maybe", true, true, true},
		{"blank keeps default", "  ", true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const key = "PHANTOMCLIP_TEST_BOOL"
			if tt.set {
				t.Setenv(key, tt.value)
			}
			assert.Equal(t, tt.expected, ParseBool(key, tt.def))
		})
	}
}

func TestParseDuration(t *testing.T) {
	const key = "PHANTOMCLIP_TEST_DURATION"

	assert.Equal(t, time.Minute, ParseDuration(key, time.Minute))

	t.Setenv(key, "90s")
	assert.Equal(t, 90*time.Second, ParseDuration(key, time.Minute))

	t.Setenv(key, "30")
	assert.Equal(t, 30*time.Second, ParseDuration(key, time.Minute), "bare integers are seconds")

	t.Setenv(key, "soon")
	assert.Equal(t, time.Minute, ParseDuration(key, time.Minute))
}

func TestParseNumbers(t *testing.T) {
	t.Setenv("PHANTOMCLIP_TEST_INT", "42")
	t.Setenv("PHANTOMCLIP_TEST_INT64", "536870912")
	t.Setenv("PHANTOMCLIP_TEST_FLOAT", "1.25")
	t.Setenv("PHANTOMCLIP_TEST_BAD", "x")

	assert.Equal(t, 42, ParseInt("PHANTOMCLIP_TEST_INT", 1))
	assert.Equal(t, int64(512<<20), ParseInt64("PHANTOMCLIP_TEST_INT64", 1))
	assert.InDelta(t, 1.25, ParseFloat("PHANTOMCLIP_TEST_FLOAT", 1), 1e-9)
	assert.Equal(t, 7, ParseInt("PHANTOMCLIP_TEST_BAD", 7))
	assert.InDelta(t, 2.0, ParseFloat("PHANTOMCLIP_TEST_BAD", 2), 1e-9)
}

func TestParseList(t *testing.T) {
	const key = "PHANTOMCLIP_TEST_LIST"
	assert.Equal(t, []string{"*"}, ParseList(key, []string{"*"}))

	t.Setenv(key, " https://a.example , ,https://b.example")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, ParseList(key, []string{"*"}))

	t.Setenv(key, "")
	assert.Nil(t, ParseList(key, []string{"*"}))
}
