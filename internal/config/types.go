// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// AppConfig is the fully resolved daemon configuration.
type AppConfig struct {
	Version    string `yaml:"-"`
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`

	// StorageDir holds every fetched and transformed file, addressed by id.
	StorageDir string `yaml:"storageDir"`

	Retention RetentionConfig `yaml:"retention"`
	Media     MediaConfig     `yaml:"media"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Upload    UploadConfig    `yaml:"upload"`
	API       APIConfig       `yaml:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RetentionConfig controls the sweeper. A zero SweepInterval means "same as MaxAge".
type RetentionConfig struct {
	MaxAge        time.Duration `yaml:"maxAge"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// MediaConfig configures the transform stage.
type MediaConfig struct {
	FFmpegBin         string  `yaml:"ffmpegBin"`
	FFprobeBin        string  `yaml:"ffprobeBin"`
	DefaultSaturation float64 `yaml:"defaultSaturation"`
}

// FetchConfig configures downloads of resolved media.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"` // 0 disables the overall transfer deadline
	MaxBytes  int64         `yaml:"maxBytes"`
	UserAgent string        `yaml:"userAgent"`
	// AllowPrivateHosts lets resolved URLs point at loopback or private networks.
	AllowPrivateHosts bool `yaml:"allowPrivateHosts"`
}

// ResolverConfig configures the platform resolvers and their shared cache.
type ResolverConfig struct {
	TikTokCDN     string        `yaml:"tiktokCDN"`
	InstagramAPI  string        `yaml:"instagramAPI"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"ratePerSecond"` // 0 disables throttling
	Burst         int           `yaml:"burst"`
	CacheTTL      time.Duration `yaml:"cacheTTL"` // 0 disables caching
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
}

// UploadConfig selects where Ready files are published.
type UploadConfig struct {
	Mode          string   `yaml:"mode"` // "local" or "s3"
	PublicBaseURL string   `yaml:"publicBaseURL"`
	DeleteLocal   bool     `yaml:"deleteLocal"`
	S3            S3Config `yaml:"s3"`
}

// S3Config configures an S3-compatible bucket (AWS, DigitalOcean Spaces, MinIO).
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PublicURL string `yaml:"publicURL"`
	ACL       string `yaml:"acl"`
	KeyPrefix string `yaml:"keyPrefix"`
	// Static credentials; when empty the default AWS credential chain applies.
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	PathStyle       bool   `yaml:"pathStyle"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	ListenAddr         string        `yaml:"listenAddr"`
	CORSOrigins        []string      `yaml:"corsOrigins"`
	RateLimitPerMinute int           `yaml:"rateLimitPerMinute"` // 0 disables rate limiting
	ShutdownTimeout    time.Duration `yaml:"shutdownTimeout"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// EffectiveSweepInterval returns SweepInterval, or MaxAge when unset.
func (r RetentionConfig) EffectiveSweepInterval() time.Duration {
	if r.SweepInterval == 0 {
		return r.MaxAge
	}
	return r.SweepInterval
}
