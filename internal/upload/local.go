// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package upload

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalLink leaves the file in the storage directory and hands out a link to the daemon's own
// download endpoint.
type LocalLink struct {
	PublicBaseURL string
}

func NewLocalLink(publicBaseURL string) *LocalLink {
	return &LocalLink{PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (l *LocalLink) Name() string { return "local" }

// Publish returns {PublicBaseURL}/download/?key={id}, where id is key without its extension.
// With no base URL configured the link is relative.
func (l *LocalLink) Publish(_ context.Context, localPath, key string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	id := strings.TrimSuffix(filepath.Base(key), filepath.Ext(key))
	if id == "" {
		return "", errors.New("empty key")
	}
	return fmt.Sprintf("%s/download/?key=%s", l.PublicBaseURL, url.QueryEscape(id)), nil
}
