// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package fetch downloads resolved media into the storage directory.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ManuGH/phantomclip/internal/clip"
	"github.com/ManuGH/phantomclip/internal/log"
	"github.com/ManuGH/phantomclip/internal/metrics"
	netx "github.com/ManuGH/phantomclip/internal/platform/net"
	"github.com/ManuGH/phantomclip/internal/storage"
	"github.com/google/renameio/v2"
)

// Fetcher streams a direct media URL into {storage}/{id}.mp4. A partially transferred body is
// never visible under the canonical name.
type Fetcher struct {
	client    *http.Client
	registry  *storage.Registry
	maxBytes  int64
	userAgent string
	egress    *netx.EgressPolicy
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxBytes caps the body size. Zero or negative disables the cap.
func WithMaxBytes(n int64) Option { return func(f *Fetcher) { f.maxBytes = n } }

// WithUserAgent sets the User-Agent header sent upstream.
func WithUserAgent(ua string) Option { return func(f *Fetcher) { f.userAgent = ua } }

// WithEgressPolicy checks every direct URL against p before it is requested.
func WithEgressPolicy(p netx.EgressPolicy) Option { return func(f *Fetcher) { f.egress = &p } }

func New(client *http.Client, registry *storage.Registry, opts ...Option) *Fetcher {
	f := &Fetcher{client: client, registry: registry}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch allocates a fresh id and downloads directURL into it. The id is leased for the duration
// of the call.
func (f *Fetcher) Fetch(ctx context.Context, directURL string) (clip.StoredFile, error) {
	id := f.registry.NewID()
	release := f.registry.Acquire(id)
	defer release()
	return f.FetchTo(ctx, id, directURL)
}

// FetchTo downloads directURL into the canonical path of id. The caller owns the id and is
// expected to hold its lease.
func (f *Fetcher) FetchTo(ctx context.Context, id, directURL string) (clip.StoredFile, error) {
	if log.JobIDFromContext(ctx) == "" {
		ctx = log.ContextWithJobID(ctx, id)
	}
	logger := log.WithComponentFromContext(ctx, "fetch")
	start := time.Now()

	dest, err := f.registry.PathFor(id)
	if err != nil {
		return clip.StoredFile{}, err
	}
	if err := f.registry.EnsureDir(); err != nil {
		return clip.StoredFile{}, &clip.FetchError{Kind: clip.FetchStorageUnwritable, URL: directURL, Err: err}
	}

	if f.egress != nil {
		checked, err := f.egress.Check(ctx, directURL)
		if err != nil {
			return clip.StoredFile{}, &clip.FetchError{Kind: clip.FetchBlocked, URL: directURL, Err: err}
		}
		directURL = checked
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, directURL, nil)
	if err != nil {
		return clip.StoredFile{}, &clip.FetchError{Kind: clip.FetchNetworkFailure, URL: directURL, Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return clip.StoredFile{}, &clip.FetchError{Kind: clip.FetchNetworkFailure, URL: directURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return clip.StoredFile{}, &clip.FetchError{
			Kind: clip.FetchNetworkFailure,
			URL:  directURL,
			Err:  fmt.Errorf("upstream status %d", resp.StatusCode),
		}
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return clip.StoredFile{}, &clip.FetchError{
			Kind: clip.FetchTooLarge,
			URL:  directURL,
			Err:  fmt.Errorf("content length %d exceeds limit %d", resp.ContentLength, f.maxBytes),
		}
	}

	pending, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0o644))
	if err != nil {
		return clip.StoredFile{}, &clip.FetchError{Kind: clip.FetchStorageUnwritable, URL: directURL, Err: err}
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Str(log.FieldPath, dest).Msg("cleanup pending file")
		}
	}()

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	w := &trackingWriter{w: pending}
	n, err := io.Copy(w, body)
	if err != nil {
		kind := clip.FetchNetworkFailure
		if w.err != nil {
			kind = clip.FetchStorageUnwritable
		}
		return clip.StoredFile{}, &clip.FetchError{Kind: kind, URL: directURL, Err: err}
	}
	if f.maxBytes > 0 && n > f.maxBytes {
		return clip.StoredFile{}, &clip.FetchError{
			Kind: clip.FetchTooLarge,
			URL:  directURL,
			Err:  fmt.Errorf("body exceeds limit %d", f.maxBytes),
		}
	}
	if n == 0 {
		return clip.StoredFile{}, &clip.FetchError{Kind: clip.FetchEmptyResponse, URL: directURL}
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return clip.StoredFile{}, &clip.FetchError{Kind: clip.FetchStorageUnwritable, URL: directURL, Err: err}
	}

	info, err := os.Stat(dest)
	if err != nil {
		return clip.StoredFile{}, &clip.FetchError{Kind: clip.FetchStorageUnwritable, URL: directURL, Err: err}
	}

	metrics.AddFetchBytes(n)
	logger.Info().
		Str(log.FieldEvent, "fetch.completed").
		Str(log.FieldPath, dest).
		Str(log.FieldResolvedURL, netx.SanitizeURL(directURL)).
		Int64(log.FieldBytes, n).
		Dur("duration", time.Since(start)).
		Msg("media fetched")

	return clip.StoredFile{ID: id, Path: dest, Size: n, ModTime: info.ModTime()}, nil
}

// trackingWriter remembers write errors so they can be told apart from read errors after io.Copy.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
