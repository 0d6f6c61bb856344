// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resolver

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/ManuGH/phantomclip/internal/clip"
)

// DefaultTikTokCDN serves TikTok videos by numeric id.
const DefaultTikTokCDN = "https://tikcdn.io/ssstik"

var tiktokIDPattern = regexp.MustCompile(`/(\d+)/?$`)

// TikTok resolves .../video/<numeric id> URLs against a CDN that serves media by id. It makes no
// network calls.
type TikTok struct {
	CDN string
}

func NewTikTok(cdn string) *TikTok {
	if cdn == "" {
		cdn = DefaultTikTokCDN
	}
	return &TikTok{CDN: strings.TrimRight(cdn, "/")}
}

func (t *TikTok) Resolve(_ context.Context, sourceURL string) (string, error) {
	normalized, err := Normalize(sourceURL)
	if err != nil {
		return "", err
	}
	u, _ := url.Parse(normalized)
	m := tiktokIDPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", &clip.ResolutionError{
			Reason:    clip.ResolutionUnresolvable,
			SourceURL: sourceURL,
			Err:       errors.New("no numeric video id at end of path"),
		}
	}
	return t.CDN + "/" + m[1], nil
}
