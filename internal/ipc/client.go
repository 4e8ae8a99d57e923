// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ipc talks to a running mpv process over its JSON IPC socket.
//
// Every call opens a fresh connection, writes one request line and reads one
// reply line. Failures never escape the client: callers get a boolean or an
// optional value and decide policy themselves.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ManuGH/headless-mpv/internal/log"
	"github.com/ManuGH/headless-mpv/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	// DefaultSocketPath is the well-known socket reused across sessions.
	DefaultSocketPath = "/tmp/mpvsocket"

	defaultDialTimeout = time.Second
	defaultReadTimeout = 500 * time.Millisecond

	// Bounds the number of event lines skipped while waiting for a reply.
	maxFrames = 32
)

var (
	errNoSocket = errors.New("ipc socket does not exist")
	errNoReply  = errors.New("peer closed without reply")
)

// callError tags a failure with the stage that produced it, for metrics.
type callError struct {
	stage string
	err   error
}

func (e *callError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *callError) Unwrap() error { return e.err }

// Config configures a Client. Zero values select the defaults.
type Config struct {
	SocketPath  string
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// Client sends commands to the player's IPC socket.
type Client struct {
	socketPath  string
	dialTimeout time.Duration
	readTimeout time.Duration
	logger      zerolog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	c := &Client{
		socketPath:  cfg.SocketPath,
		dialTimeout: cfg.DialTimeout,
		readTimeout: cfg.ReadTimeout,
		logger:      log.WithComponent("ipc"),
	}
	if c.socketPath == "" {
		c.socketPath = DefaultSocketPath
	}
	if c.dialTimeout <= 0 {
		c.dialTimeout = defaultDialTimeout
	}
	if c.readTimeout <= 0 {
		c.readTimeout = defaultReadTimeout
	}
	return c
}

// SocketPath returns the socket the client connects to.
func (c *Client) SocketPath() string {
	return c.socketPath
}

// SocketExists reports whether the socket file is present. Presence only
// means the process may be alive.
func (c *Client) SocketExists() bool {
	_, err := os.Stat(c.socketPath)
	return err == nil
}

// Send issues a command and reports whether the player accepted it.
func (c *Client) Send(ctx context.Context, name string, args ...any) bool {
	resp, err := c.Call(ctx, NewCommand(name, args...))
	if err != nil {
		return false
	}
	return resp.OK()
}

// Get reads a property. The second result is false when the property could
// not be read for any reason.
func (c *Client) Get(ctx context.Context, property string) (any, bool) {
	resp, err := c.Call(ctx, NewCommand("get_property", property))
	if err != nil || !resp.OK() {
		return nil, false
	}
	v, err := resp.Value()
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// GetFloat reads a numeric property.
func (c *Client) GetFloat(ctx context.Context, property string) (float64, bool) {
	v, ok := c.Get(ctx, property)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// GetBool reads a boolean property.
func (c *Client) GetBool(ctx context.Context, property string) (bool, bool) {
	v, ok := c.Get(ctx, property)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Call performs one request/response exchange. A reply with a non-success
// error code is returned without an error; transport and framing failures
// are returned as errors and logged at debug level.
func (c *Client) Call(ctx context.Context, cmd Command) (Response, error) {
	start := time.Now()
	resp, err := c.roundTrip(ctx, cmd)

	result := "ok"
	var ce *callError
	switch {
	case errors.As(err, &ce):
		result = ce.stage
	case err != nil:
		result = "error"
	case !resp.OK():
		result = "error"
	}
	metrics.ObserveIPC(cmd.Name, result, time.Since(start))

	if err != nil {
		log.WithContext(ctx, c.logger).Debug().
			Err(err).
			Str(log.FieldEvent, "ipc.call_failed").
			Str(log.FieldCommand, cmd.Name).
			Str(log.FieldSocket, c.socketPath).
			Msg("ipc call failed")
		return Response{}, err
	}
	if !resp.OK() {
		log.WithContext(ctx, c.logger).Debug().
			Str(log.FieldEvent, "ipc.command_rejected").
			Str(log.FieldCommand, cmd.Name).
			Str("error", resp.Error).
			Msg("player rejected command")
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, cmd Command) (Response, error) {
	if !c.SocketExists() {
		return Response{}, &callError{stage: "no_socket", err: errNoSocket}
	}

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return Response{}, &callError{stage: "dial", err: err}
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(c.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Response{}, &callError{stage: "dial", err: err}
	}

	frame, err := json.Marshal(cmd)
	if err != nil {
		return Response{}, &callError{stage: "write", err: err}
	}
	frame = append(frame, '\n')
	if _, err := conn.Write(frame); err != nil {
		return Response{}, &callError{stage: "write", err: err}
	}

	reader := bufio.NewReader(conn)
	for i := 0; i < maxFrames; i++ {
		line, err := reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return Response{}, &callError{stage: "read", err: err}
			}
			return Response{}, &callError{stage: "read", err: errNoReply}
		}

		var resp Response
		if jerr := json.Unmarshal(line, &resp); jerr != nil {
			return Response{}, &callError{stage: "decode", err: jerr}
		}
		// mpv may push event frames on any connection; skip them.
		if resp.Event != "" && resp.Error == "" {
			if err != nil {
				return Response{}, &callError{stage: "read", err: errNoReply}
			}
			continue
		}
		return resp, nil
	}
	return Response{}, &callError{stage: "read", err: fmt.Errorf("no reply within %d frames", maxFrames)}
}
