// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func argPairs(args []string) map[string][]string {
	m := map[string][]string{}
	for i := 0; i+1 < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			m[args[i]] = append(m[args[i]], args[i+1])
		}
	}
	return m
}

func TestStripArgs(t *testing.T) {
	args := StripArgs("/in/a.mp4", "/work/strip.mp4")
	pairs := argPairs(args)

	assert.Equal(t, "/work/strip.mp4", args[len(args)-1])
	assert.Equal(t, []string{"/in/a.mp4"}, pairs["-i"])
	assert.Equal(t, []string{"-1"}, pairs["-map_metadata"])
	assert.Equal(t, []string{"-1"}, pairs["-map_chapters"])
	assert.Equal(t, []string{"copy"}, pairs["-c"])
	assert.Equal(t, []string{"+bitexact"}, pairs["-fflags"])
	assert.Contains(t, args, "-nostdin")
	assert.NotContains(t, args, "-vf", "strip must not re-encode")
}

func TestPerturbArgs(t *testing.T) {
	args := PerturbArgs("strip.mp4", "perturb.mp4", 1.05)
	pairs := argPairs(args)

	assert.Equal(t, "perturb.mp4", args[len(args)-1])
	assert.Equal(t, []string{"eq=saturation=1.05"}, pairs["-vf"])
	assert.Equal(t, []string{"libx264"}, pairs["-c:v"])
	assert.Equal(t, []string{"copy"}, pairs["-c:a"])
	assert.Equal(t, []string{"1"}, pairs["-threads"])
	assert.Equal(t, []string{"-1"}, pairs["-map_metadata"])
	assert.Equal(t, []string{"0:v:0", "0:a?"}, pairs["-map"])
}

func TestPerturbArgsFactorFormatting(t *testing.T) {
	assert.Contains(t, PerturbArgs("a", "b", 2), "eq=saturation=2")
	assert.Contains(t, PerturbArgs("a", "b", 0.5), "eq=saturation=0.5")
}
