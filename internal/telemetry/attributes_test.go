// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("POST", "/api/play", 200)
	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, HTTPMethodKey, "POST")
	verifyAttribute(t, attrs, HTTPRouteKey, "/api/play")
	verifyIntAttribute(t, attrs, HTTPStatusCodeKey, 200)
}

func TestPlayerAttributes(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantLen int
	}{
		{name: "with file", file: "/home/pi/videos/movie.mkv", wantLen: 3},
		{name: "stopped without file", file: "", wantLen: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := PlayerAttributes("stop", "playing", tt.file)
			if len(attrs) != tt.wantLen {
				t.Errorf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
			verifyAttribute(t, attrs, PlayerOperationKey, "stop")
			verifyAttribute(t, attrs, PlayerStateKey, "playing")
			if tt.file != "" {
				verifyAttribute(t, attrs, PlayerFileKey, "movie.mkv")
			}
		})
	}
}

func TestOutputAttributes(t *testing.T) {
	attrs := OutputAttributes("HDMI-A-2", true, "/dev/dri/card1", "alsa/hdmi:CARD=vc4hdmi1,DEV=0")
	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, PlayerOutputKey, "HDMI-A-2")
	verifyBoolAttribute(t, attrs, OutputConnectedKey, true)
	verifyAttribute(t, attrs, OutputDeviceKey, "/dev/dri/card1")

	headless := OutputAttributes("", false, "", "")
	if len(headless) != 2 {
		t.Errorf("Expected 2 attributes for headless output, got %d", len(headless))
	}
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes("ipc_failed")
	verifyBoolAttribute(t, attrs, ErrorKey, true)
	verifyAttribute(t, attrs, ErrorTypeKey, "ipc_failed")
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, expectedValue string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsString() != expectedValue {
				t.Errorf("Expected %s=%s, got %s", key, expectedValue, attr.Value.AsString())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != int64(expectedValue) {
				t.Errorf("Expected %s=%d, got %d", key, expectedValue, attr.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyBoolAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue bool) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsBool() != expectedValue {
				t.Errorf("Expected %s=%t, got %t", key, expectedValue, attr.Value.AsBool())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}
