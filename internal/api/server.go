// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the clip pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuGH/phantomclip/internal/api/middleware"
	"github.com/ManuGH/phantomclip/internal/health"
	"github.com/ManuGH/phantomclip/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline is the subset of pipeline.Service the handlers use.
type Pipeline interface {
	Submit(ctx context.Context, sourceURL string, saturation *float64) (pipeline.Result, error)
	Open(id string) (*pipeline.Delivery, error)
	Publish(ctx context.Context, id string) (string, error)
}

// Config holds the HTTP surface settings.
type Config struct {
	CORSOrigins        []string
	RateLimitPerMinute int
	// TracingService enables otelhttp spans when non-empty.
	TracingService string
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	cfg      Config
	pipeline Pipeline
	health   *health.Manager
	router   chi.Router
}

func New(cfg Config, p Pipeline, hm *health.Manager) *Server {
	if hm == nil {
		hm = health.NewManager("")
	}
	s := &Server{cfg: cfg, pipeline: p, health: hm}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        s.cfg.CORSOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	submitLimit := middleware.RateLimit(s.cfg.RateLimitPerMinute, time.Minute)

	r.Route("/api/v1/clips", func(r chi.Router) {
		r.With(submitLimit).Post("/", s.handleCreateClip)
		r.Get("/{id}", s.handleGetClip)
	})

	// Routes kept compatible with existing clients.
	r.With(submitLimit).Get("/download-video/", s.handleLegacySubmit)
	r.Get("/download/", s.handleLegacyDownload)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "not_found", "", "Route not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "", "Method not allowed.")
	})
	return r
}
