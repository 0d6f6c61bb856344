// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ManuGH/phantomclip/internal/clip"
	"github.com/ManuGH/phantomclip/internal/log"
)

// DefaultInstagramAPI is the reels lookup endpoint.
const DefaultInstagramAPI = "https://get.reelsdownloader.io/allinone"

const maxAPIResponse = 1 << 20

// Instagram asks a third-party reels API for the media URL. The page URL is passed in the "Url"
// request header.
type Instagram struct {
	Endpoint string
	Client   *http.Client
}

func NewInstagram(endpoint string, client *http.Client) *Instagram {
	if endpoint == "" {
		endpoint = DefaultInstagramAPI
	}
	return &Instagram{Endpoint: endpoint, Client: client}
}

type instagramResponse struct {
	Media []struct {
		URL  string `json:"url"`
		Type string `json:"type"`
	} `json:"media"`
}

func (ig *Instagram) Resolve(ctx context.Context, sourceURL string) (string, error) {
	normalized, err := Normalize(sourceURL)
	if err != nil {
		return "", err
	}
	logger := log.WithComponentFromContext(ctx, "resolver")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ig.Endpoint, nil)
	if err != nil {
		return "", &clip.ResolutionError{Reason: clip.ResolutionUpstream, SourceURL: sourceURL, Err: err}
	}
	req.Header.Set("Url", normalized)
	req.Header.Set("Accept", "application/json")

	resp, err := ig.Client.Do(req)
	if err != nil {
		return "", &clip.ResolutionError{Reason: clip.ResolutionUpstream, SourceURL: sourceURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponse))
	if err != nil {
		return "", &clip.ResolutionError{Reason: clip.ResolutionUpstream, SourceURL: sourceURL, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", truncate(string(body), 512)).
			Msg("reels api returned non-200")
		return "", &clip.ResolutionError{
			Reason:    clip.ResolutionUpstream,
			SourceURL: sourceURL,
			Err:       fmt.Errorf("reels api status %d", resp.StatusCode),
		}
	}

	var parsed instagramResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &clip.ResolutionError{Reason: clip.ResolutionUpstream, SourceURL: sourceURL, Err: fmt.Errorf("decode reels api response: %w", err)}
	}
	if len(parsed.Media) == 0 || parsed.Media[0].URL == "" {
		return "", &clip.ResolutionError{
			Reason:    clip.ResolutionUnresolvable,
			SourceURL: sourceURL,
			Err:       errors.New("reels api returned no media"),
		}
	}
	return parsed.Media[0].URL, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
