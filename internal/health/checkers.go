// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// CheckFunc adapts a function into a Checker. A nil error is healthy.
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) error
	// failure is the status reported on error.
	failure Status
}

// NewCheckFunc reports unhealthy when fn fails.
func NewCheckFunc(name string, fn func(ctx context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn, failure: StatusUnhealthy}
}

// NewOptionalCheckFunc reports degraded when fn fails, for dependencies the pipeline can run
// without.
func NewOptionalCheckFunc(name string, fn func(ctx context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn, failure: StatusDegraded}
}

func (c *CheckFunc) Name() string { return c.name }

func (c *CheckFunc) Check(ctx context.Context) CheckResult {
	if err := c.fn(ctx); err != nil {
		return CheckResult{Status: c.failure, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// StorageChecker verifies the storage directory exists and is writable.
type StorageChecker struct {
	dir string
}

func NewStorageChecker(dir string) *StorageChecker { return &StorageChecker{dir: dir} }

func (c *StorageChecker) Name() string { return "storage" }

func (c *StorageChecker) Check(_ context.Context) CheckResult {
	info, err := os.Stat(c.dir)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: fmt.Sprintf("%s is not a directory", c.dir)}
	}
	f, err := os.CreateTemp(c.dir, ".health-*")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: "not writable: " + err.Error()}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return CheckResult{Status: StatusHealthy, Message: filepath.Clean(c.dir)}
}

// BinaryChecker verifies an executable can still be found.
type BinaryChecker struct {
	name string
	path string
}

func NewBinaryChecker(name, path string) *BinaryChecker {
	return &BinaryChecker{name: name, path: path}
}

func (c *BinaryChecker) Name() string { return c.name }

func (c *BinaryChecker) Check(_ context.Context) CheckResult {
	resolved, err := exec.LookPath(c.path)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: resolved}
}
