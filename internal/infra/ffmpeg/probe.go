// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

// ProbeResult is the subset of ffprobe output used for diagnostics and verification.
type ProbeResult struct {
	Format   ProbeFormat   `json:"format"`
	Streams  []ProbeStream `json:"streams"`
	Chapters []struct{}    `json:"chapters"`
}

type ProbeFormat struct {
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	Tags       map[string]string `json:"tags,omitempty"`
}

type ProbeStream struct {
	Index     int               `json:"index"`
	CodecType string            `json:"codec_type"`
	CodecName string            `json:"codec_name"`
	Width     int               `json:"width,omitempty"`
	Height    int               `json:"height,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// HasVideo reports whether at least one video stream with a known codec is present.
func (p *ProbeResult) HasVideo() bool {
	for _, s := range p.Streams {
		if s.CodecType == "video" && s.CodecName != "" {
			return true
		}
	}
	return false
}

// Prober runs ffprobe.
type Prober struct {
	BinaryPath string
}

func NewProber(binaryPath string) *Prober {
	if binaryPath == "" {
		binaryPath = "ffprobe"
	}
	return &Prober{BinaryPath: binaryPath}
}

// Probe returns container, stream and chapter information for path.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-show_chapters",
		path,
	}

	// #nosec G204 -- binary comes from validated config; path is an opaque storage path
	cmd := exec.CommandContext(ctx, p.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBinaryNotFound, p.BinaryPath)
		}
		msg := stderr.String()
		if len(msg) > 4096 {
			msg = msg[:4096] + "..."
		}
		return nil, fmt.Errorf("ffprobe failed: %w (stderr: %s)", err, msg)
	}

	var res ProbeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	if res.Format.FormatName == "" {
		return nil, errors.New("ffprobe returned empty format")
	}
	return &res, nil
}
