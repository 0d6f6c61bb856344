// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DeriveFFprobeBin returns the ffprobe binary that sits next to ffmpegBin.
// A bare "ffmpeg" yields a bare "ffprobe" so PATH lookup still applies.
func DeriveFFprobeBin(ffmpegBin string) string {
	bin := strings.TrimSpace(ffmpegBin)
	if bin == "" {
		return "ffprobe"
	}
	dir, base := filepath.Split(bin)
	if strings.HasPrefix(base, "ffmpeg") {
		return filepath.Join(dir, "ffprobe"+strings.TrimPrefix(base, "ffmpeg"))
	}
	return "ffprobe"
}

// ResolveBinary resolves name to an executable path via PATH lookup.
func ResolveBinary(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolUnavailable, name, err)
	}
	return path, nil
}

// PerformStartupChecks fails fast when the media tool is missing or the storage directory cannot
// be written. It rewrites the ffmpeg and ffprobe paths to their resolved absolute form.
func PerformStartupChecks(cfg *AppConfig) error {
	ffmpeg, err := ResolveBinary(cfg.Media.FFmpegBin)
	if err != nil {
		return err
	}
	cfg.Media.FFmpegBin = ffmpeg

	// ffprobe is only used for diagnostics; keep the configured name if it is missing.
	if ffprobe, err := exec.LookPath(cfg.Media.FFprobeBin); err == nil {
		cfg.Media.FFprobeBin = ffprobe
	}

	if err := os.MkdirAll(cfg.StorageDir, 0o750); err != nil {
		return fmt.Errorf("create storage dir %s: %w", cfg.StorageDir, err)
	}
	f, err := os.CreateTemp(cfg.StorageDir, ".writecheck-*")
	if err != nil {
		return fmt.Errorf("storage dir %s is not writable: %w", cfg.StorageDir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
