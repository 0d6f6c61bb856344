// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clip

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step an error originated from.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageFetch     Stage = "fetch"
	StageTransform Stage = "transform"
	StageDeliver   Stage = "deliver"
	StageInput     Stage = "input"
)

var (
	// ErrNotFound is returned for ids that were never issued or whose file has been swept.
	ErrNotFound = errors.New("clip not found")
	// ErrInvalidSaturation is returned for factors outside (0, MaxSaturation].
	ErrInvalidSaturation = errors.New("invalid saturation factor")
	// ErrInvalidSourceURL is returned for empty or non-http(s) source URLs.
	ErrInvalidSourceURL = errors.New("invalid source url")
)

// StageError is implemented by every typed pipeline failure.
type StageError interface {
	error
	Stage() Stage
	Code() string
}

// ResolutionReason classifies resolver failures.
type ResolutionReason string

const (
	ResolutionUnsupported  ResolutionReason = "unsupported_platform"
	ResolutionUnresolvable ResolutionReason = "unresolvable"
	ResolutionUpstream     ResolutionReason = "resolver_upstream"
)

// ResolutionError means no direct media URL could be obtained for the source. Not retried.
type ResolutionError struct {
	Reason    ResolutionReason
	SourceURL string
	Err       error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s: %s: %v", e.SourceURL, e.Reason, e.Err)
	}
	return fmt.Sprintf("resolve %s: %s", e.SourceURL, e.Reason)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
func (e *ResolutionError) Stage() Stage  { return StageResolve }
func (e *ResolutionError) Code() string  { return string(e.Reason) }

// FetchErrorKind classifies download failures.
type FetchErrorKind string

const (
	FetchNetworkFailure    FetchErrorKind = "network_failure"
	FetchEmptyResponse     FetchErrorKind = "empty_response"
	FetchStorageUnwritable FetchErrorKind = "storage_unwritable"
	FetchTooLarge          FetchErrorKind = "too_large"
	FetchBlocked           FetchErrorKind = "blocked_destination"
)

// FetchError is a download failure. Callers may retry; the system does not.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch: %s", e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }
func (e *FetchError) Stage() Stage  { return StageFetch }
func (e *FetchError) Code() string  { return string(e.Kind) }

// TransformErrorKind classifies media mutation failures.
type TransformErrorKind string

const (
	TransformToolUnavailable TransformErrorKind = "tool_unavailable"
	TransformStripFailed     TransformErrorKind = "strip_failed"
	TransformEncodeFailed    TransformErrorKind = "encode_failed"
	TransformIOFailure       TransformErrorKind = "io_failure"
)

// TransformError is a media mutation failure. Detail holds the tail of the tool's stderr and is
// meant for logs only.
type TransformError struct {
	Kind   TransformErrorKind
	Err    error
	Detail []string
}

func (e *TransformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transform: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("transform: %s", e.Kind)
}

func (e *TransformError) Unwrap() error { return e.Err }
func (e *TransformError) Stage() Stage  { return StageTransform }
func (e *TransformError) Code() string  { return string(e.Kind) }

// PublishError is an upload sink failure.
type PublishError struct {
	Sink string
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish via %s: %v", e.Sink, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
func (e *PublishError) Stage() Stage  { return StageDeliver }
func (e *PublishError) Code() string  { return "publish_failed" }

// StageOf returns the stage and code of err, falling back to input validation errors and finally
// to an "internal" code.
func StageOf(err error) (Stage, string) {
	var se StageError
	if errors.As(err, &se) {
		return se.Stage(), se.Code()
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return StageDeliver, "not_found"
	case errors.Is(err, ErrInvalidSaturation):
		return StageInput, "invalid_saturation"
	case errors.Is(err, ErrInvalidSourceURL):
		return StageInput, "invalid_source_url"
	}
	return "", "internal"
}
