// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package procgroup starts child processes in their own process group so that a cancelled ffmpeg
// run can be reaped together with any helpers it spawned.
package procgroup

import (
	"errors"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/phantomclip/internal/metrics"
)

// DefaultGrace is how long Terminate waits between SIGTERM and SIGKILL.
const DefaultGrace = 2 * time.Second

// Terminate stops the process group of cmd. It sends SIGTERM, waits up to grace for waitCh, then
// sends SIGKILL and drains waitCh. It returns the error received from waitCh and is a no-op for a
// command that never started.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	metrics.IncProcSignal("SIGTERM", signalResult(Kill(cmd, syscall.SIGTERM)))

	select {
	case err := <-waitCh:
		return err
	case <-time.After(grace):
	}

	metrics.IncProcSignal("SIGKILL", signalResult(Kill(cmd, syscall.SIGKILL)))
	return <-waitCh
}

func signalResult(err error) string {
	switch {
	case err == nil:
		return "sent"
	case errors.Is(err, syscall.ESRCH),
		strings.Contains(err.Error(), "process already finished"):
		return "esrch"
	default:
		return "error"
	}
}
