// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package resolver turns a social-media page URL into a direct media URL.
package resolver

import (
	"context"
	"net/url"
	"strings"

	"github.com/ManuGH/phantomclip/internal/clip"
)

// Resolver maps a source page URL to a direct, fetchable media URL. Failures are returned as
// *clip.ResolutionError.
type Resolver interface {
	Resolve(ctx context.Context, sourceURL string) (string, error)
}

// Func adapts a function to Resolver.
type Func func(ctx context.Context, sourceURL string) (string, error)

func (f Func) Resolve(ctx context.Context, sourceURL string) (string, error) { return f(ctx, sourceURL) }

// Platform names a supported source site.
type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// Normalize unescapes a percent-encoded source URL and drops its query and fragment. Only
// absolute http(s) URLs are accepted.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if unescaped, err := url.PathUnescape(s); err == nil {
		s = unescaped
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &clip.ResolutionError{Reason: clip.ResolutionUnsupported, SourceURL: raw, Err: clip.ErrInvalidSourceURL}
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// DetectPlatform classifies a source URL by host substring.
func DetectPlatform(sourceURL string) (Platform, bool) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "tiktok"):
		return PlatformTikTok, true
	case strings.Contains(host, "instagram"):
		return PlatformInstagram, true
	}
	return "", false
}
