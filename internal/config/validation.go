// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ManuGH/phantomclip/internal/clip"
)

// Validate checks a resolved configuration and joins every problem it finds.
func Validate(cfg AppConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.StorageDir) == "" {
		errs = append(errs, errors.New("storageDir must not be empty"))
	}
	if _, err := clip.NewRetentionPolicy(cfg.Retention.MaxAge, cfg.Retention.SweepInterval); err != nil {
		errs = append(errs, fmt.Errorf("retention: %w", err))
	}
	if err := clip.Saturation(cfg.Media.DefaultSaturation).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("media.defaultSaturation: %w", err))
	}
	if strings.TrimSpace(cfg.Media.FFmpegBin) == "" {
		errs = append(errs, errors.New("media.ffmpegBin must not be empty"))
	}
	if cfg.Fetch.Timeout < 0 {
		errs = append(errs, errors.New("fetch.timeout must not be negative"))
	}
	if cfg.Fetch.MaxBytes < 0 {
		errs = append(errs, errors.New("fetch.maxBytes must not be negative"))
	}

	if cfg.Resolver.RatePerSecond < 0 {
		errs = append(errs, errors.New("resolver.ratePerSecond must not be negative"))
	}
	if cfg.Resolver.RatePerSecond > 0 && cfg.Resolver.Burst < 1 {
		errs = append(errs, errors.New("resolver.burst must be at least 1 when throttling is enabled"))
	}
	if cfg.Resolver.CacheTTL < 0 {
		errs = append(errs, errors.New("resolver.cacheTTL must not be negative"))
	}
	for name, raw := range map[string]string{
		"resolver.tiktokCDN":    cfg.Resolver.TikTokCDN,
		"resolver.instagramAPI": cfg.Resolver.InstagramAPI,
	} {
		if err := validateHTTPURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	switch cfg.Upload.Mode {
	case "local":
	case "s3":
		if cfg.Upload.S3.Bucket == "" {
			errs = append(errs, errors.New("upload.s3.bucket is required in s3 mode"))
		}
		if cfg.Upload.S3.Region == "" {
			errs = append(errs, errors.New("upload.s3.region is required in s3 mode"))
		}
		if cfg.Upload.S3.Endpoint != "" {
			if err := validateHTTPURL(cfg.Upload.S3.Endpoint); err != nil {
				errs = append(errs, fmt.Errorf("upload.s3.endpoint: %w", err))
			}
		}
		if (cfg.Upload.S3.AccessKeyID == "") != (cfg.Upload.S3.SecretAccessKey == "") {
			errs = append(errs, errors.New("upload.s3 access key id and secret must be set together"))
		}
	default:
		errs = append(errs, fmt.Errorf("upload.mode %q must be one of local, s3", cfg.Upload.Mode))
	}
	if cfg.Upload.PublicBaseURL != "" {
		if err := validateHTTPURL(cfg.Upload.PublicBaseURL); err != nil {
			errs = append(errs, fmt.Errorf("upload.publicBaseURL: %w", err))
		}
	}

	if strings.TrimSpace(cfg.API.ListenAddr) == "" {
		errs = append(errs, errors.New("api.listenAddr must not be empty"))
	}
	if cfg.API.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("api.rateLimitPerMinute must not be negative"))
	}

	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.Exporter != "grpc" && cfg.Telemetry.Exporter != "http" {
			errs = append(errs, fmt.Errorf("telemetry.exporter %q must be grpc or http", cfg.Telemetry.Exporter))
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			errs = append(errs, errors.New("telemetry.samplingRate must be within [0, 1]"))
		}
	}

	return errors.Join(errs...)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
