// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package pipeline drives a clip job through resolve, fetch and transform, and delivers the
// result by id.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/phantomclip/internal/clip"
	"github.com/ManuGH/phantomclip/internal/log"
	"github.com/ManuGH/phantomclip/internal/metrics"
	"github.com/ManuGH/phantomclip/internal/resolver"
	"github.com/ManuGH/phantomclip/internal/storage"
	"github.com/ManuGH/phantomclip/internal/telemetry"
	"github.com/ManuGH/phantomclip/internal/transform"
	"github.com/ManuGH/phantomclip/internal/upload"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Detector picks the resolver for a source URL.
type Detector interface {
	Detect(sourceURL string) (resolver.Platform, resolver.Resolver, error)
}

// Fetcher downloads a direct media URL into the file of an existing id.
type Fetcher interface {
	FetchTo(ctx context.Context, id, directURL string) (clip.StoredFile, error)
}

// Transformer mutates a fetched file in place.
type Transformer interface {
	Transform(ctx context.Context, inputPath string, sat clip.Saturation) (transform.Result, error)
}

// Result is the outcome of a successful Submit.
type Result struct {
	ID          string
	State       clip.State
	Platform    string
	ContentHash string
}

// Deps are the collaborators of a Service. Sink may be nil when publishing is not offered.
type Deps struct {
	Detector    Detector
	Fetcher     Fetcher
	Transformer Transformer
	Registry    *storage.Registry
	Sink        upload.Sink

	// DefaultSaturation applies when Submit gets no factor.
	DefaultSaturation clip.Saturation
	// DeleteLocal removes the stored file after a successful publish.
	DeleteLocal bool
	// ReadyTTL bounds how long an unpublished Ready job is remembered. Zero keeps the default.
	ReadyTTL time.Duration
}

// Service runs jobs. It is safe for concurrent use.
type Service struct {
	deps   Deps
	tracer trace.Tracer
	now    func() time.Time

	// mu also orders file visibility: Open and Publish check inflight and open the file under
	// it, and a finishing job settles its file under it.
	mu       sync.Mutex
	ready    map[string]*clip.Job
	inflight map[string]struct{}
}

func New(deps Deps) (*Service, error) {
	switch {
	case deps.Detector == nil:
		return nil, errors.New("pipeline: detector is required")
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case deps.Transformer == nil:
		return nil, errors.New("pipeline: transformer is required")
	case deps.Registry == nil:
		return nil, errors.New("pipeline: registry is required")
	}
	if deps.DefaultSaturation == 0 {
		deps.DefaultSaturation = clip.DefaultSaturation
	}
	if err := deps.DefaultSaturation.Validate(); err != nil {
		return nil, err
	}
	if deps.ReadyTTL <= 0 {
		deps.ReadyTTL = clip.DefaultMaxAge
	}
	return &Service{
		deps:   deps,
		tracer: telemetry.Tracer(telemetry.TracerName),
		now:    time.Now,
		ready:    make(map[string]*clip.Job),
		inflight: make(map[string]struct{}),
	}, nil
}

// Submit runs one job to Ready or Failed and blocks until then. Cancellation of ctx does not
// abort a started job; only its values (request id, trace) are carried over.
func (s *Service) Submit(ctx context.Context, sourceURL string, saturation *float64) (Result, error) {
	sat := s.deps.DefaultSaturation
	if saturation != nil {
		sat = clip.Saturation(*saturation)
	}
	if err := sat.Validate(); err != nil {
		metrics.IncStageError(string(clip.StageInput), "invalid_saturation")
		return Result{}, err
	}
	if strings.TrimSpace(sourceURL) == "" {
		metrics.IncStageError(string(clip.StageInput), "invalid_source_url")
		return Result{}, fmt.Errorf("%w: empty", clip.ErrInvalidSourceURL)
	}

	ctx = context.WithoutCancel(ctx)
	s.prune()

	job := clip.NewJob(sourceURL, sat, s.observeTransition)
	job.ID = s.deps.Registry.NewID()
	ctx = log.ContextWithJobID(ctx, job.ID)
	logger := log.WithComponentFromContext(ctx, "pipeline")

	s.mu.Lock()
	s.inflight[job.ID] = struct{}{}
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "clip.submit", trace.WithAttributes(
		telemetry.ClipAttributes(job.ID, "", float64(sat))...,
	))
	defer span.End()

	release := s.deps.Registry.Acquire(job.ID)
	defer release()

	metrics.JobStarted()
	logger.Info().
		Str(log.FieldEvent, "job.created").
		Str(log.FieldSourceURL, sourceURL).
		Str(log.FieldSaturation, sat.String()).
		Msg("clip job created")

	res, err := s.run(ctx, job)
	if err != nil {
		stage, code := clip.StageOf(err)
		_ = job.Fail(err)
		metrics.IncStageError(string(stage), code)
		metrics.JobFinished(job.Platform, "failed")
		telemetry.RecordError(span, err, code)
		s.settleFailed(job.ID, logger)
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "job.failed").
			Str(log.FieldStage, string(stage)).
			Str("code", code).
			Msg("clip job failed")
		return Result{ID: job.ID, State: clip.StateFailed, Platform: job.Platform}, err
	}

	metrics.JobFinished(job.Platform, "ready")
	s.mu.Lock()
	s.ready[job.ID] = job
	delete(s.inflight, job.ID)
	s.mu.Unlock()

	logger.Info().
		Str(log.FieldEvent, "job.ready").
		Str(log.FieldPlatform, job.Platform).
		Str(log.FieldFinalPath, job.LocalPath).
		Str("content_hash", res.ContentHash).
		Msg("clip ready")
	return res, nil
}

func (s *Service) run(ctx context.Context, job *clip.Job) (Result, error) {
	if err := job.Advance(clip.StateResolving); err != nil {
		return Result{}, err
	}
	directURL, err := s.resolve(ctx, job)
	if err != nil {
		return Result{}, err
	}
	job.ResolvedURL = directURL

	if err := job.Advance(clip.StateFetching); err != nil {
		return Result{}, err
	}
	stored, err := s.fetch(ctx, job)
	if err != nil {
		return Result{}, err
	}
	job.LocalPath = stored.Path

	if err := job.Advance(clip.StateTransforming); err != nil {
		return Result{}, err
	}
	tr, err := s.transform(ctx, job)
	if err != nil {
		return Result{}, err
	}
	job.LocalPath = tr.Path

	if err := job.Advance(clip.StateReady); err != nil {
		return Result{}, err
	}
	return Result{ID: job.ID, State: clip.StateReady, Platform: job.Platform, ContentHash: tr.ContentHash}, nil
}

func (s *Service) resolve(ctx context.Context, job *clip.Job) (string, error) {
	ctx, span := s.tracer.Start(ctx, "clip.resolve", trace.WithAttributes(
		telemetry.StageAttributes(string(clip.StageResolve), 0)...,
	))
	defer span.End()
	start := time.Now()

	platform, r, err := s.deps.Detector.Detect(job.SourceURL)
	job.Platform = string(platform)
	if err != nil {
		observe(clip.StageResolve, start, err)
		telemetry.RecordError(span, err, "detect")
		return "", asResolutionError(job.SourceURL, err)
	}
	span.SetAttributes(telemetry.ClipAttributes(job.ID, job.Platform, float64(job.Saturation))...)

	directURL, err := r.Resolve(ctx, job.SourceURL)
	if err == nil && strings.TrimSpace(directURL) == "" {
		err = &clip.ResolutionError{
			Reason:    clip.ResolutionUnresolvable,
			SourceURL: job.SourceURL,
			Err:       errors.New("resolver returned no media url"),
		}
	}
	observe(clip.StageResolve, start, err)
	if err != nil {
		err = asResolutionError(job.SourceURL, err)
		_, code := clip.StageOf(err)
		telemetry.RecordError(span, err, code)
		return "", err
	}
	logger := log.WithComponentFromContext(ctx, "pipeline")
	logger.Debug().
		Str(log.FieldEvent, "job.resolved").
		Str(log.FieldPlatform, job.Platform).
		Str(log.FieldResolvedURL, directURL).
		Msg("source resolved")
	return directURL, nil
}

func (s *Service) fetch(ctx context.Context, job *clip.Job) (clip.StoredFile, error) {
	ctx, span := s.tracer.Start(ctx, "clip.fetch")
	defer span.End()
	start := time.Now()

	stored, err := s.deps.Fetcher.FetchTo(ctx, job.ID, job.ResolvedURL)
	observe(clip.StageFetch, start, err)
	if err != nil {
		_, code := clip.StageOf(err)
		telemetry.RecordError(span, err, code)
		return clip.StoredFile{}, err
	}
	span.SetAttributes(telemetry.StageAttributes(string(clip.StageFetch), stored.Size)...)
	return stored, nil
}

func (s *Service) transform(ctx context.Context, job *clip.Job) (transform.Result, error) {
	ctx, span := s.tracer.Start(ctx, "clip.transform")
	defer span.End()
	start := time.Now()

	res, err := s.deps.Transformer.Transform(ctx, job.LocalPath, job.Saturation)
	observe(clip.StageTransform, start, err)
	if err != nil {
		var te *clip.TransformError
		if errors.As(err, &te) && len(te.Detail) > 0 {
			logger := log.WithComponentFromContext(ctx, "pipeline")
			logger.Debug().
				Strs("stderr", te.Detail).
				Msg("media tool output")
		}
		_, code := clip.StageOf(err)
		telemetry.RecordError(span, err, code)
		return transform.Result{}, err
	}
	span.SetAttributes(telemetry.StageAttributes(string(clip.StageTransform), res.Size)...)
	return res, nil
}

func (s *Service) observeTransition(j *clip.Job, from, to clip.State) {
	metrics.IncTransition(string(from), string(to))
	logger := log.WithComponent("pipeline")
	logger.Debug().
		Str(log.FieldEvent, "job.transition").
		Str(log.FieldJobID, j.ID).
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(to)).
		Msg("job state changed")
}

// settleFailed moves whatever a failed job left at its canonical path out of reach of Open and
// Publish. The original stays on disk for recovery until the sweeper expires it.
func (s *Service) settleFailed(id string, logger zerolog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)

	kept, err := s.deps.Registry.Quarantine(id)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "job.quarantine_failed").Msg("failed to set aside original")
		if err := s.deps.Registry.Remove(id); err != nil {
			logger.Error().Err(err).Msg("failed to remove original of failed job")
		}
		return
	}
	if kept != "" {
		logger.Info().
			Str(log.FieldEvent, "job.original_kept").
			Str(log.FieldPath, kept).
			Msg("original kept for recovery")
	}
}

// settled reports whether id belongs to no running job. Callers hold s.mu.
func (s *Service) settled(id string) bool {
	_, running := s.inflight[id]
	return !running
}

// Job returns the remembered Ready job for id, if any.
func (s *Service) Job(id string) (*clip.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.ready[id]
	return j, ok
}

// deliver moves a remembered Ready job to Delivered and forgets it.
func (s *Service) deliver(id string) {
	s.mu.Lock()
	j, ok := s.ready[id]
	delete(s.ready, id)
	s.mu.Unlock()
	if ok {
		_ = j.Advance(clip.StateDelivered)
	}
}

// prune forgets Ready jobs that were never delivered within ReadyTTL.
func (s *Service) prune() {
	cutoff := s.now().Add(-s.deps.ReadyTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.ready {
		if j.UpdatedAt().Before(cutoff) {
			delete(s.ready, id)
		}
	}
}

func observe(stage clip.Stage, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ObserveStage(string(stage), result, time.Since(start).Seconds())
}

// asResolutionError keeps typed resolution errors and classifies anything else as an upstream
// failure of the resolver.
func asResolutionError(sourceURL string, err error) error {
	var re *clip.ResolutionError
	if errors.As(err, &re) {
		return err
	}
	return &clip.ResolutionError{Reason: clip.ResolutionUpstream, SourceURL: sourceURL, Err: err}
}
