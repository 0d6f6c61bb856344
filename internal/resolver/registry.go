// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/ManuGH/phantomclip/internal/clip"
)

// Registry dispatches to the resolver registered for a source URL's platform.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[Platform]Resolver
}

func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[Platform]Resolver)}
}

// Register installs r for platform p, replacing any previous one.
func (reg *Registry) Register(p Platform, r Resolver) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.resolvers[p] = r
}

// Detect normalizes sourceURL and returns its platform and resolver.
func (reg *Registry) Detect(sourceURL string) (Platform, Resolver, error) {
	normalized, err := Normalize(sourceURL)
	if err != nil {
		return "", nil, err
	}
	p, ok := DetectPlatform(normalized)
	if !ok {
		return "", nil, &clip.ResolutionError{
			Reason:    clip.ResolutionUnsupported,
			SourceURL: sourceURL,
			Err:       fmt.Errorf("no resolver for host of %s", normalized),
		}
	}
	reg.mu.RLock()
	r, ok := reg.resolvers[p]
	reg.mu.RUnlock()
	if !ok {
		return p, nil, &clip.ResolutionError{
			Reason:    clip.ResolutionUnsupported,
			SourceURL: sourceURL,
			Err:       fmt.Errorf("platform %s is not enabled", p),
		}
	}
	return p, r, nil
}

// Resolve detects the platform and resolves sourceURL with its resolver.
func (reg *Registry) Resolve(ctx context.Context, sourceURL string) (string, error) {
	_, r, err := reg.Detect(sourceURL)
	if err != nil {
		return "", err
	}
	return r.Resolve(ctx, sourceURL)
}
