// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/ManuGH/phantomclip/internal/clip"
	"github.com/ManuGH/phantomclip/internal/log"
	"github.com/ManuGH/phantomclip/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

const maxRequestBody = 64 << 10

// CreateClipRequest is the body of POST /api/v1/clips.
type CreateClipRequest struct {
	SourceURL  string   `json:"source_url"`
	Saturation *float64 `json:"saturation,omitempty"`
}

// ClipResponse describes a finished clip.
type ClipResponse struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	Platform    string `json:"platform,omitempty"`
	DownloadURL string `json:"download_url"`
}

// LegacyDownloadResponse is the body of GET /download-video/.
type LegacyDownloadResponse struct {
	DownloadURL string `json:"download_url"`
}

func (s *Server) handleCreateClip(w http.ResponseWriter, r *http.Request) {
	var req CreateClipRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Debug().Err(err).Msg("invalid request body")
		writeProblem(w, r, http.StatusBadRequest, "invalid_request", string(clip.StageInput), "Request body must be a JSON object with source_url.")
		return
	}

	res, link, err := s.submitAndPublish(r, req.SourceURL, req.Saturation)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/clips/"+res.ID)
	writeJSON(w, http.StatusCreated, ClipResponse{
		ID:          res.ID,
		State:       string(clip.StateDelivered),
		Platform:    res.Platform,
		DownloadURL: link,
	})
}

func (s *Server) handleGetClip(w http.ResponseWriter, r *http.Request) {
	s.serveClip(w, r, chi.URLParam(r, "id"))
}

func (s *Server) handleLegacySubmit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var sat *float64
	if raw := q.Get("saturation"); raw != "" {
		parsed, err := clip.ParseSaturation(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		f := float64(parsed)
		sat = &f
	}

	_, link, err := s.submitAndPublish(r, q.Get("video_url"), sat)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LegacyDownloadResponse{DownloadURL: link})
}

func (s *Server) handleLegacyDownload(w http.ResponseWriter, r *http.Request) {
	s.serveClip(w, r, strings.TrimSuffix(r.URL.Query().Get("key"), ".mp4"))
}

// submitAndPublish runs the pipeline and hands the result to the upload sink.
func (s *Server) submitAndPublish(r *http.Request, sourceURL string, sat *float64) (pipeline.Result, string, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return pipeline.Result{}, "", fmt.Errorf("%w: missing", clip.ErrInvalidSourceURL)
	}
	res, err := s.pipeline.Submit(r.Context(), sourceURL, sat)
	if err != nil {
		return res, "", err
	}
	link, err := s.pipeline.Publish(r.Context(), res.ID)
	if err != nil {
		return res, "", err
	}
	return res, link, nil
}

func (s *Server) serveClip(w http.ResponseWriter, r *http.Request, id string) {
	d, err := s.pipeline.Open(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger := log.WithComponentFromContext(r.Context(), "api")
			logger.Debug().Err(err).Msg("close delivery")
		}
	}()

	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Name}))
	w.Header().Set("Cache-Control", "private, no-store")
	http.ServeContent(w, r, d.Name, d.ModTime, d.File)
}
