// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ffmpeg runs the ffmpeg and ffprobe binaries.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/ManuGH/phantomclip/internal/procgroup"
	"github.com/rs/zerolog"
)

const stderrLines = 50

// ErrBinaryNotFound means the configured binary could not be executed at all.
var ErrBinaryNotFound = errors.New("ffmpeg binary not found")

// RunError is a non-zero exit. Stderr holds the last lines the process wrote.
type RunError struct {
	Err      error
	ExitCode int
	Stderr   []string
}

func (e *RunError) Error() string {
	if len(e.Stderr) > 0 {
		return fmt.Sprintf("ffmpeg exited with code %d: %s", e.ExitCode, e.Stderr[len(e.Stderr)-1])
	}
	return fmt.Sprintf("ffmpeg exited with code %d", e.ExitCode)
}

func (e *RunError) Unwrap() error { return e.Err }

// Executor runs one ffmpeg invocation at a time per call. It is safe for concurrent use.
type Executor struct {
	BinaryPath string
	Logger     zerolog.Logger
	// Grace is the SIGTERM to SIGKILL delay applied on cancellation.
	Grace time.Duration
}

func NewExecutor(binaryPath string, logger zerolog.Logger) *Executor {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &Executor{
		BinaryPath: binaryPath,
		Logger:     logger,
		Grace:      procgroup.DefaultGrace,
	}
}

// Run executes the binary with args and blocks until it exits. Cancelling ctx terminates the
// whole process group and returns ctx.Err().
func (e *Executor) Run(ctx context.Context, args []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// #nosec G204 -- binary comes from validated config; args are built by this package
	cmd := exec.Command(e.BinaryPath, args...)
	procgroup.Set(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("pipe stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %s: %v", ErrBinaryNotFound, e.BinaryPath, err)
		}
		return fmt.Errorf("start %s: %w", e.BinaryPath, err)
	}

	ring := NewRingBuffer(stderrLines)
	waitCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				ring.Add(line)
			}
		}
		waitCh <- cmd.Wait()
	}()

	e.Logger.Debug().Int("pid", cmd.Process.Pid).Strs("args", args).Msg("ffmpeg started")

	select {
	case <-ctx.Done():
		_ = procgroup.Terminate(cmd, waitCh, e.Grace)
		e.Logger.Warn().Int("pid", cmd.Process.Pid).Msg("ffmpeg cancelled")
		return ctx.Err()
	case err := <-waitCh:
		if err == nil {
			return nil
		}
		runErr := &RunError{Err: err, ExitCode: -1, Stderr: ring.Lines()}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			runErr.ExitCode = exitErr.ExitCode()
		}
		return runErr
	}
}
