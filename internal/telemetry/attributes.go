// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the controller.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Player attributes
	PlayerOperationKey = "player.operation"
	PlayerStateKey     = "player.state"
	PlayerFileKey      = "player.file"
	PlayerOutputKey    = "player.output"
	PlayerPositionKey  = "player.position"

	// Output attributes
	OutputConnectedKey = "output.connected"
	OutputDeviceKey    = "output.drm_device"
	OutputAudioKey     = "output.audio_sink"

	ResultOKKey = "result.ok"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// PlayerAttributes creates span attributes for a controller operation.
// Only the file's base name is recorded.
func PlayerAttributes(operation, state, file string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	attrs = append(attrs,
		attribute.String(PlayerOperationKey, operation),
		attribute.String(PlayerStateKey, state),
	)
	if file != "" {
		attrs = append(attrs, attribute.String(PlayerFileKey, filepath.Base(file)))
	}
	return attrs
}

// OutputAttributes creates span attributes describing a resolved output.
func OutputAttributes(target string, connected bool, device, audioSink string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(PlayerOutputKey, target),
		attribute.Bool(OutputConnectedKey, connected),
	}
	if device != "" {
		attrs = append(attrs, attribute.String(OutputDeviceKey, device))
	}
	if audioSink != "" {
		attrs = append(attrs, attribute.String(OutputAudioKey, audioSink))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
