// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth_AlwaysAlive(t *testing.T) {
	m := NewManager("v1.2.3")
	m.RegisterChecker(NewCheckFunc("redis", func(context.Context) error { return errors.New("down") }))

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.2.3", resp.Version)
	assert.Empty(t, resp.Checks)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	resp = decode(t, rec)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "down", resp.Checks["redis"].Error)
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus Status
	}{
		{"no checkers", nil, http.StatusOK, StatusHealthy},
		{
			"optional failure degrades",
			[]Checker{NewOptionalCheckFunc("cache", func(context.Context) error { return errors.New("x") })},
			http.StatusOK, StatusDegraded,
		},
		{
			"required failure",
			[]Checker{
				NewOptionalCheckFunc("cache", func(context.Context) error { return errors.New("x") }),
				NewCheckFunc("storage", func(context.Context) error { return errors.New("y") }),
			},
			http.StatusServiceUnavailable, StatusUnhealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("")
			for _, c := range tt.checkers {
				m.RegisterChecker(c)
			}
			rec := httptest.NewRecorder()
			m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantStatus, decode(t, rec).Status)
		})
	}
}

func TestStorageChecker(t *testing.T) {
	dir := t.TempDir()
	res := NewStorageChecker(dir).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	res = NewStorageChecker(filepath.Join(dir, "missing")).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	res = NewStorageChecker(file).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
}

func TestBinaryChecker(t *testing.T) {
	res := NewBinaryChecker("ffmpeg", filepath.Join(t.TempDir(), "nope")).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "ffmpeg", NewBinaryChecker("ffmpeg", "ffmpeg").Name())
}
