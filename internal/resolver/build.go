// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resolver

import (
	"net/http"
	"time"

	"github.com/ManuGH/phantomclip/internal/cache"
)

// Options configures the default resolver set.
type Options struct {
	TikTokCDN     string
	InstagramAPI  string
	Client        *http.Client
	RatePerSecond float64
	Burst         int
	Cache         cache.Cache
	CacheTTL      time.Duration
}

// NewDefault registers the TikTok and Instagram resolvers, each wrapped with caching and
// coalescing. Only the Instagram resolver calls out, so only it is throttled.
func NewDefault(opts Options) *Registry {
	store := opts.Cache
	if store == nil {
		store = cache.NewNoop()
	}

	reg := NewRegistry()
	reg.Register(PlatformTikTok,
		NewCached(NewTikTok(opts.TikTokCDN), PlatformTikTok, store, opts.CacheTTL))
	reg.Register(PlatformInstagram,
		NewCached(
			NewThrottled(NewInstagram(opts.InstagramAPI, opts.Client), opts.RatePerSecond, opts.Burst),
			PlatformInstagram, store, opts.CacheTTL))
	return reg
}
