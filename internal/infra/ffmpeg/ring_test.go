// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer(t *testing.T) {
	r := NewRingBuffer(3)
	assert.Empty(t, r.Lines())

	r.Add("a")
	r.Add("b")
	assert.Equal(t, []string{"a", "b"}, r.Lines())

	r.Add("c")
	r.Add("d")
	r.Add("e")
	assert.Equal(t, []string{"c", "d", "e"}, r.Lines())
}

func TestRingBufferMinimumSize(t *testing.T) {
	r := NewRingBuffer(0)
	r.Add("x")
	r.Add("y")
	assert.Equal(t, []string{"y"}, r.Lines())
}
