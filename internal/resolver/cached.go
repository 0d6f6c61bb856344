// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ManuGH/phantomclip/internal/cache"
	"github.com/ManuGH/phantomclip/internal/log"
	"github.com/ManuGH/phantomclip/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Cached remembers successful resolutions for ttl and coalesces concurrent lookups of the same
// source URL into one upstream call. Failures are never cached.
type Cached struct {
	next     Resolver
	platform Platform
	store    cache.Cache
	ttl      time.Duration
	group    singleflight.Group
}

func NewCached(next Resolver, platform Platform, store cache.Cache, ttl time.Duration) *Cached {
	return &Cached{next: next, platform: platform, store: store, ttl: ttl}
}

func cacheKey(p Platform, normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return "resolve:" + string(p) + ":" + hex.EncodeToString(sum[:16])
}

func (c *Cached) Resolve(ctx context.Context, sourceURL string) (string, error) {
	normalized, err := Normalize(sourceURL)
	if err != nil {
		return "", err
	}
	key := cacheKey(c.platform, normalized)
	logger := log.WithComponentFromContext(ctx, "resolver")

	if c.ttl > 0 {
		v, ok, err := c.store.Get(ctx, key)
		if err != nil {
			logger.Warn().Err(err).Msg("resolver cache read failed")
		}
		if ok {
			metrics.IncResolver(string(c.platform), "hit")
			return v, nil
		}
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		direct, err := c.next.Resolve(ctx, sourceURL)
		if err != nil {
			return "", err
		}
		if c.ttl > 0 {
			if err := c.store.Set(ctx, key, direct, c.ttl); err != nil {
				logger.Warn().Err(err).Msg("resolver cache write failed")
			}
		}
		return direct, nil
	})
	switch {
	case err != nil:
		metrics.IncResolver(string(c.platform), "error")
		return "", err
	case shared:
		metrics.IncResolver(string(c.platform), "shared")
	default:
		metrics.IncResolver(string(c.platform), "miss")
	}
	return v.(string), nil
}
