// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/phantomclip/internal/clip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func age(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func newTestSweeper(t *testing.T, reg *Registry, maxAge time.Duration) *Sweeper {
	t.Helper()
	policy, err := clip.NewRetentionPolicy(maxAge, 0)
	require.NoError(t, err)
	s := NewSweeper(reg, policy)
	s.Now = func() time.Time { return baseTime }
	return s
}

func TestSweepOnceRespectsMaxAge(t *testing.T) {
	reg := newTestRegistry(t)
	s := newTestSweeper(t, reg, time.Hour)

	oldID, youngID, edgeID := reg.NewID(), reg.NewID(), reg.NewID()
	oldPath := writeClip(t, reg, oldID, "old")
	youngPath := writeClip(t, reg, youngID, "young")
	edgePath := writeClip(t, reg, edgeID, "edge")
	age(t, oldPath, baseTime.Add(-2*time.Hour))
	age(t, youngPath, baseTime.Add(-10*time.Minute))
	age(t, edgePath, baseTime.Add(-time.Hour))

	res := s.SweepOnce(context.Background())

	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 2, res.Skipped)
	assert.Zero(t, res.Failed)
	assert.NoFileExists(t, oldPath)
	assert.FileExists(t, youngPath)
	assert.FileExists(t, edgePath, "age equal to MaxAge is not yet expired")
}

func TestSweepOnceSkipsLeasedIDs(t *testing.T) {
	reg := newTestRegistry(t)
	s := newTestSweeper(t, reg, time.Minute)

	id := reg.NewID()
	path := writeClip(t, reg, id, "busy")
	work := filepath.Join(reg.Dir(), ".work-"+id+"-42")
	require.NoError(t, os.Mkdir(work, 0o750))
	age(t, path, baseTime.Add(-time.Hour))
	age(t, work, baseTime.Add(-time.Hour))

	release := reg.Acquire(id)
	res := s.SweepOnce(context.Background())
	assert.Equal(t, 2, res.Skipped)
	assert.FileExists(t, path)
	assert.DirExists(t, work)

	release()
	res = s.SweepOnce(context.Background())
	assert.Equal(t, 2, res.Removed)
	assert.NoFileExists(t, path)
	assert.NoDirExists(t, work)
}

func TestSweepOnceRemovesStaleArtifacts(t *testing.T) {
	reg := newTestRegistry(t)
	s := newTestSweeper(t, reg, time.Minute)

	stray := filepath.Join(reg.Dir(), "leftover.tmp")
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0o644))
	age(t, stray, baseTime.Add(-time.Hour))

	res := s.SweepOnce(context.Background())
	assert.Equal(t, 1, res.Removed)
	assert.NoFileExists(t, stray)
}

func TestSweepOnceMissingDir(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, os.RemoveAll(reg.Dir()))

	res := newTestSweeper(t, reg, time.Minute).SweepOnce(context.Background())
	assert.Equal(t, SweepResult{}, res)
}

// Every file is gone within one interval of crossing MaxAge and no younger file is ever touched.
func TestSweepBoundedStaleness(t *testing.T) {
	reg := newTestRegistry(t)
	s := newTestSweeper(t, reg, 10*time.Minute)

	written := baseTime
	id := reg.NewID()
	path := writeClip(t, reg, id, "x")
	age(t, path, written)

	now := written
	for step := 0; step <= 30; step++ {
		now = written.Add(time.Duration(step) * time.Minute)
		s.Now = func() time.Time { return now }
		s.SweepOnce(context.Background())

		if now.Sub(written) <= 10*time.Minute {
			require.FileExists(t, path, "removed too early at %s", now.Sub(written))
		} else {
			require.NoFileExists(t, path, "still present at %s", now.Sub(written))
			break
		}
	}
}

func TestSweeperStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := newTestRegistry(t)
	policy, err := clip.NewRetentionPolicy(time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	s := NewSweeper(reg, policy)

	id := reg.NewID()
	path := writeClip(t, reg, id, "x")
	age(t, path, time.Now().Add(-time.Hour))

	s.Start(context.Background())
	s.Start(context.Background())

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()
}

func TestSweeperRunReturnsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := newTestRegistry(t)
	s := newTestSweeper(t, reg, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
