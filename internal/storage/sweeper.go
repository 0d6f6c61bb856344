// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ManuGH/phantomclip/internal/clip"
	"github.com/ManuGH/phantomclip/internal/log"
	"github.com/ManuGH/phantomclip/internal/metrics"
	"github.com/rs/zerolog"
)

// SweepResult summarizes one pass.
type SweepResult struct {
	Scanned int
	Removed int
	Skipped int // leased or too young
	Failed  int
}

// Sweeper evicts storage entries older than the retention policy's MaxAge.
type Sweeper struct {
	registry *Registry
	policy   clip.RetentionPolicy
	logger   zerolog.Logger

	// Now is the clock; tests replace it.
	Now func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(registry *Registry, policy clip.RetentionPolicy) *Sweeper {
	return &Sweeper{
		registry: registry,
		policy:   policy,
		logger:   log.WithComponent("sweeper"),
		Now:      time.Now,
	}
}

// Run sweeps every SweepInterval until ctx is done. A file that reaches MaxAge is therefore
// removed no later than MaxAge + SweepInterval after its last write.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.policy.SweepInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().
		Str(log.FieldEvent, "sweeper.started").
		Dur("interval", interval).
		Dur("max_age", s.policy.MaxAge).
		Msg("retention sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Str(log.FieldEvent, "sweeper.stopped").Msg("retention sweeper stopped")
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// Start runs the sweeper in its own goroutine. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = s.Run(ctx)
	}(s.done)
}

// Stop cancels a sweeper started with Start and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SweepOnce performs one pass over the storage directory. Per-entry failures are logged and
// counted; they never abort the pass.
func (s *Sweeper) SweepOnce(ctx context.Context) SweepResult {
	start := time.Now()
	now := s.Now()
	var res SweepResult

	entries, err := os.ReadDir(s.registry.Dir())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error().Err(err).Str(log.FieldEvent, "sweeper.list_failed").Msg("failed to list storage dir")
			res.Failed++
		}
		metrics.RecordSweep(0, 0, res.Failed, 0, time.Since(start), now)
		return res
	}

	remaining := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		res.Scanned++

		id, owned := IDFromName(e.Name())
		if owned && s.registry.Leased(id) {
			res.Skipped++
			remaining++
			continue
		}

		info, err := e.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				res.Failed++
				s.logger.Warn().Err(err).Str(log.FieldPath, e.Name()).Msg("stat failed during sweep")
			}
			continue
		}
		if !s.policy.Expired(info.ModTime(), now) {
			res.Skipped++
			remaining++
			continue
		}

		path := filepath.Join(s.registry.Dir(), e.Name())
		if err := removeEntry(path, e.IsDir()); err != nil {
			res.Failed++
			remaining++
			s.logger.Warn().Err(err).
				Str(log.FieldEvent, "sweeper.remove_failed").
				Str(log.FieldPath, path).
				Msg("failed to remove expired entry")
			continue
		}
		res.Removed++
		s.logger.Debug().
			Str(log.FieldEvent, "sweeper.removed").
			Str(log.FieldJobID, id).
			Str(log.FieldPath, path).
			Dur("age", now.Sub(info.ModTime())).
			Msg("expired entry removed")
	}

	metrics.RecordSweep(res.Removed, res.Skipped, res.Failed, remaining, time.Since(start), now)
	if res.Removed > 0 || res.Failed > 0 {
		s.logger.Info().
			Str(log.FieldEvent, "sweeper.pass").
			Int("scanned", res.Scanned).
			Int("removed", res.Removed).
			Int("skipped", res.Skipped).
			Int("failed", res.Failed).
			Msg("retention sweep completed")
	}
	return res
}

func removeEntry(path string, dir bool) error {
	var err error
	if dir {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
