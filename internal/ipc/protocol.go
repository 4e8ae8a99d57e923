// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ipc

import (
	"encoding/json"
)

// Success is the error value mpv reports for a successful command.
const Success = "success"

// Command is one request frame: {"command": [name, args...]}.
type Command struct {
	Name string
	Args []any
}

// NewCommand builds a Command.
func NewCommand(name string, args ...any) Command {
	return Command{Name: name, Args: args}
}

// MarshalJSON encodes the command in the wire format.
func (c Command) MarshalJSON() ([]byte, error) {
	parts := make([]any, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	parts = append(parts, c.Args...)
	return json.Marshal(struct {
		Command []any `json:"command"`
	}{Command: parts})
}

// Response is one reply frame: {"error": "success", "data": <value>}.
// Asynchronous event frames carry Event instead of Error.
type Response struct {
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data,omitempty"`
	Event string          `json:"event,omitempty"`
}

// OK reports whether the reply signals success.
func (r Response) OK() bool {
	return r.Error == Success
}

// Value decodes Data into a generic value. A missing or null payload yields nil.
func (r Response) Value() (any, error) {
	if len(r.Data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(r.Data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
