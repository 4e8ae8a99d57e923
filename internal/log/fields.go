// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"
	FieldSocket    = "socket"

	// Playback fields
	FieldFile     = "file"
	FieldPosition = "position"
	FieldDuration = "duration"
	FieldVolume   = "volume"
	FieldCommand  = "command"
	FieldProperty = "property"

	// Output fields
	FieldOutput    = "output"
	FieldDevice    = "device"
	FieldAudioSink = "audio_sink"
	FieldSource    = "source"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath = "path"
)
