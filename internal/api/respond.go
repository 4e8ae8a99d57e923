// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ManuGH/headless-mpv/internal/log"
)

const maxJSONBody = 64 << 10

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Debug().Err(err).Str(log.FieldEvent, "api.encode_error").Msg("failed to write response")
	}
}

// writeResult writes the {success, message} body plus extra fields.
func writeResult(w http.ResponseWriter, r *http.Request, status int, ok bool, message string, extra map[string]any) {
	body := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		body[k] = v
	}
	body["success"] = ok
	body["message"] = message
	writeJSON(w, r, status, body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, format string, args ...any) {
	writeResult(w, r, status, false, fmt.Sprintf(format, args...), nil)
}

// decodeJSON reads an optional JSON object into dst. An empty body leaves dst
// untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
