// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldPlatform  = "platform"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath        = "path"
	FieldFinalPath   = "final_path"
	FieldSourceURL   = "source_url"
	FieldResolvedURL = "resolved_url"

	// Media fields
	FieldSaturation = "saturation"
	FieldBytes      = "bytes"
)
