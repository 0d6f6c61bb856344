// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import "strconv"

// Output names used inside a transform work directory.
const (
	StripOutput   = "strip.mp4"
	PerturbOutput = "perturb.mp4"
)

func baseArgs(input string) []string {
	return []string{
		"-y", "-nostdin", "-hide_banner", "-loglevel", "error",
		"-i", input,
	}
}

// bitexact suppresses encoder and muxer version strings so identical inputs produce identical
// bytes.
var bitexact = []string{
	"-fflags", "+bitexact",
	"-flags:v", "+bitexact",
	"-flags:a", "+bitexact",
}

// StripArgs remuxes input into output without re-encoding, dropping global, stream and chapter
// metadata.
func StripArgs(input, output string) []string {
	args := baseArgs(input)
	args = append(args,
		"-map", "0:v?",
		"-map", "0:a?",
		"-map_metadata", "-1",
		"-map_chapters", "-1",
		"-c", "copy",
	)
	args = append(args, bitexact...)
	return append(args, "-movflags", "+faststart", output)
}

// PerturbArgs re-encodes the first video stream with its saturation scaled by factor and copies
// audio through. The encoder runs single-threaded so output is reproducible.
func PerturbArgs(input, output string, factor float64) []string {
	args := baseArgs(input)
	args = append(args,
		"-map", "0:v:0",
		"-map", "0:a?",
		"-vf", "eq=saturation="+strconv.FormatFloat(factor, 'f', -1, 64),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "18",
		"-threads", "1",
		"-c:a", "copy",
		"-map_metadata", "-1",
		"-map_chapters", "-1",
	)
	args = append(args, bitexact...)
	return append(args, "-movflags", "+faststart", output)
}
