// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by pipeline spans.
const (
	ClipJobIDKey      = "clip.job_id"
	ClipPlatformKey   = "clip.platform"
	ClipSaturationKey = "clip.saturation"
	ClipStageKey      = "clip.stage"
	ClipBytesKey      = "clip.bytes"
	ClipSinkKey       = "clip.sink"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// ClipAttributes describes a pipeline job. Empty platform is omitted.
func ClipAttributes(jobID, platform string, saturation float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(ClipJobIDKey, jobID),
		attribute.Float64(ClipSaturationKey, saturation),
	}
	if platform != "" {
		attrs = append(attrs, attribute.String(ClipPlatformKey, platform))
	}
	return attrs
}

// StageAttributes describes one pipeline step.
func StageAttributes(stage string, bytes int64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(ClipStageKey, stage)}
	if bytes > 0 {
		attrs = append(attrs, attribute.Int64(ClipBytesKey, bytes))
	}
	return attrs
}

// ErrorAttributes marks a span as failed with the given classification.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// RecordError records err on span with its classification. No-op for nil err.
func RecordError(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(ErrorAttributes(errorType)...)
	span.SetStatus(codes.Error, errorType)
}
