// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/phantomclip/internal/clip"
	"github.com/ManuGH/phantomclip/internal/log"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Stage     string `json:"stage,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// safeMessages never include upstream bodies or tool output.
var safeMessages = map[string]string{
	string(clip.ResolutionUnsupported):    "The source URL is not from a supported platform.",
	string(clip.ResolutionUnresolvable):   "Failed to get download URL.",
	string(clip.ResolutionUpstream):       "The resolver service did not return a usable answer.",
	string(clip.FetchNetworkFailure):      "Failed to download video or video does not exist.",
	string(clip.FetchEmptyResponse):       "The media server returned an empty file.",
	string(clip.FetchStorageUnwritable):   "The video could not be stored.",
	string(clip.FetchTooLarge):            "The video exceeds the maximum allowed size.",
	string(clip.FetchBlocked):             "The media URL points to a disallowed destination.",
	string(clip.TransformToolUnavailable): "Media processing is currently unavailable.",
	string(clip.TransformStripFailed):     "Failed to remove metadata from video.",
	string(clip.TransformEncodeFailed):    "Failed to process video.",
	string(clip.TransformIOFailure):       "Failed to process video.",
	"publish_failed":                      "Failed to publish the video.",
	"not_found":                           "File not found.",
	"invalid_saturation":                  "Saturation must be a number greater than 0 and at most 3.",
	"invalid_source_url":                  "A valid http(s) source URL is required.",
	"internal":                            "An unexpected error occurred.",
}

// statusFor maps a pipeline error onto an HTTP status code.
func statusFor(err error) int {
	var (
		re *clip.ResolutionError
		fe *clip.FetchError
		te *clip.TransformError
		pe *clip.PublishError
	)
	switch {
	case errors.As(err, &re):
		return http.StatusBadRequest
	case errors.As(err, &fe):
		switch fe.Kind {
		case clip.FetchTooLarge:
			return http.StatusRequestEntityTooLarge
		case clip.FetchStorageUnwritable:
			return http.StatusInternalServerError
		default:
			return http.StatusBadGateway
		}
	case errors.As(err, &te):
		if te.Kind == clip.TransformToolUnavailable {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	case errors.As(err, &pe):
		return http.StatusInternalServerError
	case errors.Is(err, clip.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, clip.ErrInvalidSaturation), errors.Is(err, clip.ErrInvalidSourceURL):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError logs err in full and answers with its classification only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	stage, code := clip.StageOf(err)
	status := statusFor(err)

	logger := log.WithComponentFromContext(r.Context(), "api")
	evt := logger.Info()
	if status >= http.StatusInternalServerError {
		evt = logger.Error()
	}
	evt.Err(err).
		Str(log.FieldEvent, "request.failed").
		Str(log.FieldStage, string(stage)).
		Str("code", code).
		Int("status", status).
		Msg("request failed")

	msg, ok := safeMessages[code]
	if !ok {
		msg = safeMessages["internal"]
	}
	writeProblem(w, r, status, code, string(stage), msg)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, code, stage, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:     code,
		Stage:     stage,
		Message:   msg,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
