// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/phantomclip/internal/clip"
	"gopkg.in/yaml.v3"
)

// Loader resolves configuration from defaults, an optional YAML file and the environment.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load applies defaults, the YAML file, then environment overrides and validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		if err := l.mergeFile(&cfg); err != nil {
			return AppConfig{}, err
		}
	}

	l.mergeEnv(&cfg)

	if cfg.StorageDir != "" {
		abs, err := filepath.Abs(cfg.StorageDir)
		if err != nil {
			return AppConfig{}, fmt.Errorf("resolve storage dir: %w", err)
		}
		cfg.StorageDir = abs
	}
	if cfg.Media.FFprobeBin == "" {
		cfg.Media.FFprobeBin = DeriveFFprobeBin(cfg.Media.FFmpegBin)
	}

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "phantomclip",
		StorageDir: "videos",
		Retention: RetentionConfig{
			MaxAge: clip.DefaultMaxAge,
		},
		Media: MediaConfig{
			FFmpegBin:         "ffmpeg",
			DefaultSaturation: float64(clip.DefaultSaturation),
		},
		Fetch: FetchConfig{
			MaxBytes:  512 << 20,
			UserAgent: "phantomclip",
		},
		Resolver: ResolverConfig{
			TikTokCDN:     "https://tikcdn.io/ssstik",
			InstagramAPI:  "https://get.reelsdownloader.io/allinone",
			Timeout:       15 * time.Second,
			RatePerSecond: 2,
			Burst:         4,
			CacheTTL:      10 * time.Minute,
		},
		Upload: UploadConfig{
			Mode: "local",
			S3: S3Config{
				ACL:       "public-read",
				KeyPrefix: "videos/",
			},
		},
		API: APIConfig{
			ListenAddr:         ":8000",
			CORSOrigins:        []string{"*"},
			RateLimitPerMinute: 60,
			ShutdownTimeout:    15 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

func (l *Loader) mergeFile(cfg *AppConfig) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", l.configPath, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %s: %v", ErrUnknownConfigField, l.configPath, err)
		}
		return fmt.Errorf("parse config file %s: %w", l.configPath, err)
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString(EnvPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString(EnvPrefix+"LOG_SERVICE", cfg.LogService)
	cfg.StorageDir = ParseString(EnvPrefix+"DATA", cfg.StorageDir)

	cfg.Retention.MaxAge = ParseDuration(EnvPrefix+"RETENTION_MAX_AGE", cfg.Retention.MaxAge)
	cfg.Retention.SweepInterval = ParseDuration(EnvPrefix+"RETENTION_SWEEP_INTERVAL", cfg.Retention.SweepInterval)

	cfg.Media.FFmpegBin = ParseString(EnvPrefix+"FFMPEG_BIN", cfg.Media.FFmpegBin)
	cfg.Media.FFprobeBin = ParseString(EnvPrefix+"FFPROBE_BIN", cfg.Media.FFprobeBin)
	cfg.Media.DefaultSaturation = ParseFloat(EnvPrefix+"SATURATION", cfg.Media.DefaultSaturation)

	cfg.Fetch.Timeout = ParseDuration(EnvPrefix+"FETCH_TIMEOUT", cfg.Fetch.Timeout)
	cfg.Fetch.MaxBytes = ParseInt64(EnvPrefix+"FETCH_MAX_BYTES", cfg.Fetch.MaxBytes)
	cfg.Fetch.UserAgent = ParseString(EnvPrefix+"FETCH_USER_AGENT", cfg.Fetch.UserAgent)
	cfg.Fetch.AllowPrivateHosts = ParseBool(EnvPrefix+"FETCH_ALLOW_PRIVATE_HOSTS", cfg.Fetch.AllowPrivateHosts)

	cfg.Resolver.TikTokCDN = ParseString(EnvPrefix+"TIKTOK_CDN", cfg.Resolver.TikTokCDN)
	cfg.Resolver.InstagramAPI = ParseString(EnvPrefix+"INSTAGRAM_API", cfg.Resolver.InstagramAPI)
	cfg.Resolver.Timeout = ParseDuration(EnvPrefix+"RESOLVER_TIMEOUT", cfg.Resolver.Timeout)
	cfg.Resolver.RatePerSecond = ParseFloat(EnvPrefix+"RESOLVER_RPS", cfg.Resolver.RatePerSecond)
	cfg.Resolver.Burst = ParseInt(EnvPrefix+"RESOLVER_BURST", cfg.Resolver.Burst)
	cfg.Resolver.CacheTTL = ParseDuration(EnvPrefix+"RESOLVER_CACHE_TTL", cfg.Resolver.CacheTTL)
	cfg.Resolver.RedisAddr = ParseString(EnvPrefix+"REDIS_ADDR", cfg.Resolver.RedisAddr)
	cfg.Resolver.RedisPassword = ParseString(EnvPrefix+"REDIS_PASSWORD", cfg.Resolver.RedisPassword)
	cfg.Resolver.RedisDB = ParseInt(EnvPrefix+"REDIS_DB", cfg.Resolver.RedisDB)

	cfg.Upload.Mode = strings.ToLower(ParseString(EnvPrefix+"UPLOAD_MODE", cfg.Upload.Mode))
	cfg.Upload.PublicBaseURL = ParseString(EnvPrefix+"PUBLIC_BASE_URL", cfg.Upload.PublicBaseURL)
	cfg.Upload.DeleteLocal = ParseBool(EnvPrefix+"UPLOAD_DELETE_LOCAL", cfg.Upload.DeleteLocal)
	cfg.Upload.S3.Bucket = ParseString(EnvPrefix+"S3_BUCKET", cfg.Upload.S3.Bucket)
	cfg.Upload.S3.Region = ParseString(EnvPrefix+"S3_REGION", cfg.Upload.S3.Region)
	cfg.Upload.S3.Endpoint = ParseString(EnvPrefix+"S3_ENDPOINT", cfg.Upload.S3.Endpoint)
	cfg.Upload.S3.PublicURL = ParseString(EnvPrefix+"S3_PUBLIC_URL", cfg.Upload.S3.PublicURL)
	cfg.Upload.S3.ACL = ParseString(EnvPrefix+"S3_ACL", cfg.Upload.S3.ACL)
	cfg.Upload.S3.KeyPrefix = ParseString(EnvPrefix+"S3_KEY_PREFIX", cfg.Upload.S3.KeyPrefix)
	cfg.Upload.S3.AccessKeyID = ParseString(EnvPrefix+"S3_ACCESS_KEY_ID", cfg.Upload.S3.AccessKeyID)
	cfg.Upload.S3.SecretAccessKey = ParseString(EnvPrefix+"S3_SECRET_ACCESS_KEY", cfg.Upload.S3.SecretAccessKey)
	cfg.Upload.S3.PathStyle = ParseBool(EnvPrefix+"S3_PATH_STYLE", cfg.Upload.S3.PathStyle)

	cfg.API.ListenAddr = ParseString(EnvPrefix+"LISTEN", cfg.API.ListenAddr)
	cfg.API.CORSOrigins = ParseList(EnvPrefix+"CORS_ORIGINS", cfg.API.CORSOrigins)
	cfg.API.RateLimitPerMinute = ParseInt(EnvPrefix+"RATELIMIT_RPM", cfg.API.RateLimitPerMinute)
	cfg.API.ShutdownTimeout = ParseDuration(EnvPrefix+"SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)

	cfg.Telemetry.Enabled = ParseBool(EnvPrefix+"TRACING_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = strings.ToLower(ParseString(EnvPrefix+"TRACING_EXPORTER", cfg.Telemetry.Exporter))
	cfg.Telemetry.Endpoint = ParseString(EnvPrefix+"TRACING_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(EnvPrefix+"TRACING_SAMPLING", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = ParseString(EnvPrefix+"ENVIRONMENT", cfg.Telemetry.Environment)
}
