// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/phantomclip/internal/api"
	"github.com/ManuGH/phantomclip/internal/cache"
	"github.com/ManuGH/phantomclip/internal/clip"
	"github.com/ManuGH/phantomclip/internal/config"
	"github.com/ManuGH/phantomclip/internal/daemon"
	"github.com/ManuGH/phantomclip/internal/fetch"
	"github.com/ManuGH/phantomclip/internal/health"
	"github.com/ManuGH/phantomclip/internal/infra/ffmpeg"
	xglog "github.com/ManuGH/phantomclip/internal/log"
	"github.com/ManuGH/phantomclip/internal/pipeline"
	"github.com/ManuGH/phantomclip/internal/platform/httpx"
	netx "github.com/ManuGH/phantomclip/internal/platform/net"
	"github.com/ManuGH/phantomclip/internal/resolver"
	"github.com/ManuGH/phantomclip/internal/storage"
	"github.com/ManuGH/phantomclip/internal/telemetry"
	"github.com/ManuGH/phantomclip/internal/transform"
	"github.com/ManuGH/phantomclip/internal/upload"
)

const (
	memoryCacheCleanup = time.Minute
	redisKeyPrefix     = "phantomclip:resolve:"
)

// buildApp wires every component from cfg. Shutdown hooks release what it opened.
func buildApp(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (_ *daemon.App, err error) {
	var opened []daemon.ShutdownHook
	defer func() {
		if err == nil {
			return
		}
		for i := len(opened) - 1; i >= 0; i-- {
			_ = opened[i](ctx)
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	opened = append(opened, tp.Shutdown)

	store, err := newCache(ctx, cfg.Resolver, logger)
	if err != nil {
		return nil, err
	}
	closeStore := func(context.Context) error { return store.Close() }
	opened = append(opened, closeStore)

	reg, err := storage.NewRegistry(cfg.StorageDir)
	if err != nil {
		return nil, err
	}

	sink, err := newSink(ctx, cfg.Upload)
	if err != nil {
		return nil, err
	}

	policy, err := clip.NewRetentionPolicy(cfg.Retention.MaxAge, cfg.Retention.EffectiveSweepInterval())
	if err != nil {
		return nil, err
	}

	svc, err := pipeline.New(pipeline.Deps{
		Detector: resolver.NewDefault(resolver.Options{
			TikTokCDN:     cfg.Resolver.TikTokCDN,
			InstagramAPI:  cfg.Resolver.InstagramAPI,
			Client:        httpx.NewClient(cfg.Resolver.Timeout),
			RatePerSecond: cfg.Resolver.RatePerSecond,
			Burst:         cfg.Resolver.Burst,
			Cache:         store,
			CacheTTL:      cfg.Resolver.CacheTTL,
		}),
		Fetcher: fetch.New(httpx.NewTransferClient(cfg.Fetch.Timeout), reg,
			fetch.WithMaxBytes(cfg.Fetch.MaxBytes),
			fetch.WithUserAgent(cfg.Fetch.UserAgent),
			fetch.WithEgressPolicy(netx.EgressPolicy{AllowPrivate: cfg.Fetch.AllowPrivateHosts}),
		),
		Transformer:       newTransformer(cfg.Media, reg),
		Registry:          reg,
		Sink:              sink,
		DefaultSaturation: clip.Saturation(cfg.Media.DefaultSaturation),
		DeleteLocal:       cfg.Upload.Mode == "s3" && cfg.Upload.DeleteLocal,
		ReadyTTL:          cfg.Retention.MaxAge,
	})
	if err != nil {
		return nil, err
	}

	hm := newHealthManager(cfg, store)

	apiCfg := api.Config{
		CORSOrigins:        cfg.API.CORSOrigins,
		RateLimitPerMinute: cfg.API.RateLimitPerMinute,
	}
	if cfg.Telemetry.Enabled {
		apiCfg.TracingService = cfg.LogService
	}
	srv := api.New(apiCfg, svc, hm)

	app, err := daemon.New(daemon.Config{
		ListenAddr:      cfg.API.ListenAddr,
		ShutdownTimeout: cfg.API.ShutdownTimeout,
	}, daemon.Deps{
		Handler: srv.Handler(),
		Sweeper: storage.NewSweeper(reg, policy),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	// LIFO: the cache closes before spans are flushed.
	app.RegisterShutdownHook("telemetry", tp.Shutdown)
	app.RegisterShutdownHook("resolver-cache", closeStore)
	return app, nil
}

// newCache returns a Redis cache when an address is configured, otherwise an in-process one.
func newCache(ctx context.Context, cfg config.ResolverConfig, logger zerolog.Logger) (cache.Cache, error) {
	if cfg.CacheTTL <= 0 {
		return cache.NewNoop(), nil
	}
	if cfg.RedisAddr == "" {
		return cache.NewMemory(memoryCacheCleanup), nil
	}
	rc, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   redisKeyPrefix,
	}, logger.With().Str(xglog.FieldComponent, "cache").Logger())
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

func newSink(ctx context.Context, cfg config.UploadConfig) (upload.Sink, error) {
	switch cfg.Mode {
	case "s3":
		s3, err := upload.NewS3(ctx, upload.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PublicURL:       cfg.S3.PublicURL,
			ACL:             cfg.S3.ACL,
			KeyPrefix:       cfg.S3.KeyPrefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 sink: %w", err)
		}
		return s3, nil
	case "local", "":
		return upload.NewLocalLink(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown upload mode %q", cfg.Mode)
	}
}

func newTransformer(cfg config.MediaConfig, reg *storage.Registry) *transform.Transformer {
	exec := ffmpeg.NewExecutor(cfg.FFmpegBin, xglog.WithComponent("ffmpeg"))
	var opts []transform.Option
	if cfg.FFprobeBin != "" {
		opts = append(opts, transform.WithProber(ffmpeg.NewProber(cfg.FFprobeBin)))
	}
	return transform.New(exec, reg, opts...)
}

func newHealthManager(cfg config.AppConfig, store cache.Cache) *health.Manager {
	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewStorageChecker(cfg.StorageDir))
	hm.RegisterChecker(health.NewBinaryChecker("ffmpeg", cfg.Media.FFmpegBin))
	if rc, ok := store.(*cache.Redis); ok {
		hm.RegisterChecker(health.NewOptionalCheckFunc("redis", rc.Ping))
	}
	return hm
}
