// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ManuGH/phantomclip/internal/clip"
	"github.com/ManuGH/phantomclip/internal/log"
	"github.com/ManuGH/phantomclip/internal/metrics"
	"github.com/ManuGH/phantomclip/internal/storage"
	"github.com/ManuGH/phantomclip/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ContentType of every delivered clip.
const ContentType = "video/mp4"

// Delivery is an open stored file. Close releases both the file and its lease.
type Delivery struct {
	File        *os.File
	ContentType string
	Size        int64
	ModTime     time.Time
	Name        string

	release func()
}

func (d *Delivery) Close() error {
	if d.release != nil {
		defer d.release()
	}
	if d.File == nil {
		return nil
	}
	return d.File.Close()
}

// Open leases and opens the stored file of id. Unknown, malformed, swept, failed and still
// running ids yield clip.ErrNotFound. A remembered Ready job moves to Delivered.
func (s *Service) Open(id string) (*Delivery, error) {
	release := s.deps.Registry.Acquire(id)
	stored, f, err := s.openSettled(id)
	if err != nil {
		release()
		return nil, err
	}
	s.deliver(id)
	return &Delivery{
		File:        f,
		ContentType: ContentType,
		Size:        stored.Size,
		ModTime:     stored.ModTime,
		Name:        id + storage.Ext,
		release:     release,
	}, nil
}

// Publish hands the stored file of id to the upload sink and returns its public URL. The job
// moves to Delivered on success. With DeleteLocal the local copy is removed afterwards.
func (s *Service) Publish(ctx context.Context, id string) (string, error) {
	if s.deps.Sink == nil {
		return "", &clip.PublishError{Sink: "none", Err: errors.New("no upload sink configured")}
	}
	sink := s.deps.Sink.Name()
	ctx = log.ContextWithJobID(ctx, id)
	logger := log.WithComponentFromContext(ctx, "pipeline")

	ctx, span := s.tracer.Start(ctx, "clip.publish")
	span.SetAttributes(attribute.String(telemetry.ClipJobIDKey, id), attribute.String(telemetry.ClipSinkKey, sink))
	defer span.End()

	release := s.deps.Registry.Acquire(id)
	defer release()

	stored, err := s.lookupSettled(id)
	if err != nil {
		telemetry.RecordError(span, err, "not_found")
		return "", err
	}

	start := time.Now()
	publicURL, err := s.deps.Sink.Publish(ctx, stored.Path, id+storage.Ext)
	observe(clip.StageDeliver, start, err)
	if err != nil {
		metrics.IncPublish(sink, "error")
		perr := &clip.PublishError{Sink: sink, Err: err}
		metrics.IncStageError(string(clip.StageDeliver), perr.Code())
		telemetry.RecordError(span, perr, perr.Code())
		logger.Warn().Err(err).Str(log.FieldEvent, "publish.failed").Str("sink", sink).Msg("publish failed")
		return "", perr
	}
	metrics.IncPublish(sink, "ok")
	s.deliver(id)

	if s.deps.DeleteLocal {
		if err := s.deps.Registry.Remove(id); err != nil {
			logger.Warn().Err(err).Str(log.FieldPath, stored.Path).Msg("failed to remove published file")
		}
	}

	logger.Info().
		Str(log.FieldEvent, "publish.completed").
		Str("sink", sink).
		Str("public_url", publicURL).
		Msg("clip published")
	return publicURL, nil
}

// lookupSettled returns the stored file of id only if no job is still producing it.
func (s *Service) lookupSettled(id string) (clip.StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.settled(id) {
		return clip.StoredFile{}, fmt.Errorf("%w: %s is still processing", clip.ErrNotFound, id)
	}
	return s.deps.Registry.Lookup(id)
}

// openSettled opens the stored file of id only if no job is still producing it. The handle stays
// valid even if the file is swept afterwards.
func (s *Service) openSettled(id string) (clip.StoredFile, *os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.settled(id) {
		return clip.StoredFile{}, nil, fmt.Errorf("%w: %s is still processing", clip.ErrNotFound, id)
	}
	stored, err := s.deps.Registry.Lookup(id)
	if err != nil {
		return clip.StoredFile{}, nil, err
	}
	f, err := os.Open(stored.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return clip.StoredFile{}, nil, fmt.Errorf("%w: %s", clip.ErrNotFound, id)
		}
		return clip.StoredFile{}, nil, fmt.Errorf("open %s: %w", stored.Path, err)
	}
	return stored, f, nil
}
