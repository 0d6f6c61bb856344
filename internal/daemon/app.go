// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon owns the process lifecycle: the HTTP server, the retention sweeper and ordered
// shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/phantomclip/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultShutdownTimeout = 15 * time.Second

// ShutdownHook performs cleanup during graceful shutdown. Hooks run in reverse registration
// order (LIFO) after the HTTP server has drained.
type ShutdownHook func(ctx context.Context) error

// Sweeper is the background retention loop. Run blocks until ctx is done.
type Sweeper interface {
	Run(ctx context.Context) error
}

// Config holds server settings.
type Config struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
	// ReadHeaderTimeout bounds slowloris-style clients. Request bodies and responses are not
	// bounded since transforms can take minutes.
	ReadHeaderTimeout time.Duration
}

// Deps are the long-lived components the App supervises.
type Deps struct {
	Handler http.Handler
	Sweeper Sweeper
	Logger  zerolog.Logger
	// Listener overrides ListenAddr, mainly for tests.
	Listener net.Listener
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// App runs the HTTP server and the sweeper in one errgroup. The first to fail stops the other.
type App struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	mu      sync.Mutex
	started bool
	hooks   []namedHook
	addr    chan net.Addr
}

func New(cfg Config, deps Deps) (*App, error) {
	if deps.Handler == nil {
		return nil, ErrMissingHandler
	}
	if deps.Sweeper == nil {
		return nil, ErrMissingSweeper
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	return &App{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With().Str(log.FieldComponent, "daemon").Logger(),
		addr:   make(chan net.Addr, 1),
	}, nil
}

// RegisterShutdownHook adds a cleanup step.
func (a *App) RegisterShutdownHook(name string, hook ShutdownHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, namedHook{name: name, hook: hook})
}

// Addr returns the bound listen address once the server is listening.
func (a *App) Addr() <-chan net.Addr { return a.addr }

// Run blocks until ctx is cancelled or a component fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	a.mu.Unlock()

	ln := a.deps.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", a.cfg.ListenAddr, err)
		}
	}
	a.addr <- ln.Addr()

	srv := &http.Server{
		Handler:           a.deps.Handler,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().
			Str(log.FieldEvent, "api.listening").
			Str("addr", ln.Addr().String()).
			Msg("API server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Str(log.FieldEvent, "api.server.failed").Msg("API server failed")
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.deps.Sweeper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("retention sweeper: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Str(log.FieldEvent, "daemon.stopping").Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
		defer cancel()
		return a.shutdown(shutdownCtx, srv)
	})

	err := g.Wait()
	if err != nil {
		a.logger.Error().Err(err).Str(log.FieldEvent, "daemon.stopped").Msg("daemon stopped with error")
		return err
	}
	a.logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("daemon stopped cleanly")
	return nil
}

func (a *App) shutdown(ctx context.Context, srv *http.Server) error {
	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
	}

	a.mu.Lock()
	hooks := append([]namedHook(nil), a.hooks...)
	a.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(ctx); err != nil {
			a.logger.Error().Err(err).Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		a.logger.Debug().Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook completed")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
