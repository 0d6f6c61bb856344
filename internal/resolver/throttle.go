// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resolver

import (
	"context"

	"github.com/ManuGH/phantomclip/internal/clip"
	"golang.org/x/time/rate"
)

// Throttled limits how often the wrapped resolver is called. Third-party lookup APIs ban clients
// that burst.
type Throttled struct {
	next    Resolver
	limiter *rate.Limiter
}

// NewThrottled allows rps calls per second with the given burst. rps <= 0 returns next unchanged.
func NewThrottled(next Resolver, rps float64, burst int) Resolver {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *Throttled) Resolve(ctx context.Context, sourceURL string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", &clip.ResolutionError{Reason: clip.ResolutionUpstream, SourceURL: sourceURL, Err: err}
	}
	return t.next.Resolve(ctx, sourceURL)
}
