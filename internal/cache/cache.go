// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package cache provides the string caches used to remember resolved media URLs.
package cache

import (
	"context"
	"time"
)

// Cache stores string values with a TTL. Implementations are safe for concurrent use.
type Cache interface {
	// Get returns the value for key. A miss is ("", false, nil).
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Stats() Stats
	Close() error
}

// Stats holds cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Evictions int64
	Size      int
}

type noopCache struct{}

// NewNoop returns a cache that stores nothing.
func NewNoop() Cache { return noopCache{} }

func (noopCache) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (noopCache) Set(context.Context, string, string, time.Duration) error { return nil }
func (noopCache) Delete(context.Context, string) error { return nil }
func (noopCache) Stats() Stats { return Stats{} }
func (noopCache) Close() error { return nil }
