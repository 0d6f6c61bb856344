// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/phantomclip/internal/clip"
	"github.com/ManuGH/phantomclip/internal/platform/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reelsAPI(t *testing.T, status int, body string, gotURL *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotURL != nil {
			*gotURL = r.Header.Get("Url")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInstagramResolve(t *testing.T) {
	var sent string
	srv := reelsAPI(t, http.StatusOK, `{"media":[{"url":"https://scontent.example/v.mp4","type":"video"}]}`, &sent)

	ig := NewInstagram(srv.URL, httpx.NewClient(time.Second))
	got, err := ig.Resolve(context.Background(), "https://www.instagram.com/reel/Cx1/?igsh=tracking")
	require.NoError(t, err)
	assert.Equal(t, "https://scontent.example/v.mp4", got)
	assert.Equal(t, "https://www.instagram.com/reel/Cx1/", sent, "page url goes in the Url header without query")
}

func TestInstagramFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   clip.ResolutionReason
	}{
		{"no media", http.StatusOK, `{"media":[]}`, clip.ResolutionUnresolvable},
		{"empty url", http.StatusOK, `{"media":[{"url":""}]}`, clip.ResolutionUnresolvable},
		{"bad json", http.StatusOK, `<html>`, clip.ResolutionUpstream},
		{"server error", http.StatusBadGateway, `{}`, clip.ResolutionUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := reelsAPI(t, tt.status, tt.body, nil)
			_, err := NewInstagram(srv.URL, httpx.NewClient(time.Second)).
				Resolve(context.Background(), "https://instagram.com/reel/x")
			assert.Equal(t, tt.want, resolutionReason(t, err))
		})
	}
}

func TestInstagramUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	_, err := NewInstagram(endpoint, httpx.NewClient(time.Second)).
		Resolve(context.Background(), "https://instagram.com/reel/x")
	assert.Equal(t, clip.ResolutionUpstream, resolutionReason(t, err))
}
