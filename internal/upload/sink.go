// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package upload publishes Ready clips and returns the URL a client downloads them from.
package upload

import "context"

// Sink publishes the file at localPath under key and returns its public URL.
type Sink interface {
	Name() string
	Publish(ctx context.Context, localPath, key string) (string, error)
}
