// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package transform strips container metadata from a fetched clip and re-encodes it with a
// saturation shift, replacing the file in place under the same id.
package transform

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/phantomclip/internal/clip"
	"github.com/ManuGH/phantomclip/internal/infra/ffmpeg"
	"github.com/ManuGH/phantomclip/internal/log"
	"github.com/ManuGH/phantomclip/internal/metrics"
	"github.com/ManuGH/phantomclip/internal/storage"
	"github.com/rs/zerolog"
)

// Runner executes one ffmpeg invocation.
type Runner interface {
	Run(ctx context.Context, args []string) error
}

// Prober inspects a media file. It is optional and used for diagnostics only.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)
}

// Result describes the finalized file.
type Result struct {
	ID          string
	Path        string
	Size        int64
	ContentHash string // hex SHA-256 of the output
}

// Transformer runs the strip and perturb stages.
type Transformer struct {
	runner   Runner
	prober   Prober
	registry *storage.Registry
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithProber logs a stream summary of every output.
func WithProber(p Prober) Option { return func(t *Transformer) { t.prober = p } }

func New(runner Runner, registry *storage.Registry, opts ...Option) *Transformer {
	t := &Transformer{runner: runner, registry: registry}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform mutates the clip at inputPath and moves the result to {storage}/{id}.mp4, where id is
// the stem of inputPath. On any failure before the final rename the input is left untouched. The
// work directory is removed on every path.
func (t *Transformer) Transform(ctx context.Context, inputPath string, sat clip.Saturation) (res Result, err error) {
	if err := sat.Validate(); err != nil {
		return Result{}, err
	}

	id := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	finalPath, err := t.registry.PathFor(id)
	if err != nil {
		return Result{}, err
	}

	if log.JobIDFromContext(ctx) == "" {
		ctx = log.ContextWithJobID(ctx, id)
	}
	logger := log.WithComponentFromContext(ctx, "transform").With().
		Str(log.FieldSaturation, sat.String()).
		Logger()

	inInfo, err := os.Stat(inputPath)
	if err != nil {
		return Result{}, &clip.TransformError{Kind: clip.TransformIOFailure, Err: err}
	}

	work, err := os.MkdirTemp(t.registry.Dir(), ".work-"+id+"-")
	if err != nil {
		return Result{}, &clip.TransformError{Kind: clip.TransformIOFailure, Err: fmt.Errorf("create work dir: %w", err)}
	}
	defer func() {
		rmErr := os.RemoveAll(work)
		if rmErr == nil {
			return
		}
		logger.Warn().Err(rmErr).Str(log.FieldPath, work).Msg("failed to remove work dir")
		if err == nil {
			res = Result{}
			err = &clip.TransformError{Kind: clip.TransformIOFailure, Err: fmt.Errorf("remove work dir: %w", rmErr)}
		}
	}()

	stripped := filepath.Join(work, ffmpeg.StripOutput)
	start := time.Now()
	if err := t.runner.Run(ctx, ffmpeg.StripArgs(inputPath, stripped)); err != nil {
		metrics.ObserveStage("strip", "error", time.Since(start).Seconds())
		return Result{}, classify(err, clip.TransformStripFailed)
	}
	metrics.ObserveStage("strip", "ok", time.Since(start).Seconds())
	logger.Debug().Str(log.FieldEvent, "transform.stripped").Dur("duration", time.Since(start)).Msg("metadata stripped")

	perturbed := filepath.Join(work, ffmpeg.PerturbOutput)
	start = time.Now()
	if err := t.runner.Run(ctx, ffmpeg.PerturbArgs(stripped, perturbed, float64(sat))); err != nil {
		metrics.ObserveStage("perturb", "error", time.Since(start).Seconds())
		return Result{}, classify(err, clip.TransformEncodeFailed)
	}
	metrics.ObserveStage("perturb", "ok", time.Since(start).Seconds())

	outInfo, err := os.Stat(perturbed)
	if err != nil {
		return Result{}, &clip.TransformError{Kind: clip.TransformEncodeFailed, Err: fmt.Errorf("missing output: %w", err)}
	}
	if outInfo.Size() == 0 {
		return Result{}, &clip.TransformError{Kind: clip.TransformEncodeFailed, Err: errors.New("empty output")}
	}

	hash, err := HashFile(perturbed)
	if err != nil {
		return Result{}, &clip.TransformError{Kind: clip.TransformIOFailure, Err: err}
	}

	if t.prober != nil {
		t.logProbe(ctx, perturbed, logger)
	}

	if err := os.Chmod(perturbed, 0o644); err != nil {
		return Result{}, &clip.TransformError{Kind: clip.TransformIOFailure, Err: err}
	}
	if err := os.Rename(perturbed, finalPath); err != nil {
		return Result{}, &clip.TransformError{Kind: clip.TransformIOFailure, Err: fmt.Errorf("finalize: %w", err)}
	}
	if filepath.Clean(inputPath) != finalPath {
		if err := os.Remove(inputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Result{}, &clip.TransformError{Kind: clip.TransformIOFailure, Err: fmt.Errorf("remove input: %w", err)}
		}
	}

	metrics.ObserveTransformBytes(inInfo.Size(), outInfo.Size())
	logger.Info().
		Str(log.FieldEvent, "transform.completed").
		Str(log.FieldFinalPath, finalPath).
		Int64(log.FieldBytes, outInfo.Size()).
		Msg("clip transformed")

	return Result{ID: id, Path: finalPath, Size: outInfo.Size(), ContentHash: hash}, nil
}

func (t *Transformer) logProbe(ctx context.Context, path string, logger zerolog.Logger) {
	info, err := t.prober.Probe(ctx, path)
	if err != nil {
		logger.Debug().Err(err).Msg("inspecting transformed output failed")
		return
	}
	logger.Debug().
		Str("format", info.Format.FormatName).
		Int("streams", len(info.Streams)).
		Int("format_tags", len(info.Format.Tags)).
		Bool("has_video", info.HasVideo()).
		Msg("transformed output probed")
}

// classify maps a runner error onto the transform taxonomy. fallback is the kind for a non-zero
// exit of the current stage.
func classify(err error, fallback clip.TransformErrorKind) error {
	if errors.Is(err, ffmpeg.ErrBinaryNotFound) {
		return &clip.TransformError{Kind: clip.TransformToolUnavailable, Err: err}
	}
	te := &clip.TransformError{Kind: fallback, Err: err}
	var runErr *ffmpeg.RunError
	if errors.As(err, &runErr) {
		te.Detail = runErr.Stderr
	}
	return te
}

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
