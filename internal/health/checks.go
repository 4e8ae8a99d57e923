// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/ManuGH/headless-mpv/internal/player"
	"github.com/ManuGH/headless-mpv/internal/validate"
)

// BinaryChecker reports whether the player executable can be found.
type BinaryChecker struct {
	binary   string
	lookPath func(string) (string, error)
}

// NewBinaryChecker creates a checker for binary, resolved through PATH.
func NewBinaryChecker(binary string) *BinaryChecker {
	return &BinaryChecker{binary: binary, lookPath: exec.LookPath}
}

func (c *BinaryChecker) Name() string { return "player_binary" }

func (c *BinaryChecker) Check(_ context.Context) CheckResult {
	path, err := c.lookPath(c.binary)
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   err.Error(),
			Message: fmt.Sprintf("%s not found", c.binary),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: path}
}

// DirectoryChecker reports whether the media directory exists and accepts
// uploads. A read-only directory is degraded, since playback still works.
type DirectoryChecker struct {
	dir string
}

// NewDirectoryChecker creates a checker for dir.
func NewDirectoryChecker(dir string) *DirectoryChecker {
	return &DirectoryChecker{dir: dir}
}

func (c *DirectoryChecker) Name() string { return "media_dir" }

func (c *DirectoryChecker) Check(_ context.Context) CheckResult {
	info, err := os.Stat(c.dir)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.dir}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "not a directory", Message: c.dir}
	}

	v := validate.New()
	v.Writable(c.Name(), c.dir)
	if err := v.Err(); err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error(), Message: "uploads will fail"}
	}
	return CheckResult{Status: StatusHealthy, Message: c.dir}
}

// StatusSource is the part of the session the session check reads.
type StatusSource interface {
	Status(ctx context.Context) player.Status
}

// SocketProbe reports whether the player IPC socket is present.
type SocketProbe interface {
	SocketExists() bool
}

// SessionChecker flags a session that claims to be active while the IPC
// socket is gone.
type SessionChecker struct {
	session StatusSource
	socket  SocketProbe
}

// NewSessionChecker creates a session consistency check.
func NewSessionChecker(session StatusSource, socket SocketProbe) *SessionChecker {
	return &SessionChecker{session: session, socket: socket}
}

func (c *SessionChecker) Name() string { return "player_session" }

func (c *SessionChecker) Check(ctx context.Context) CheckResult {
	st := c.session.Status(ctx)
	if st.State == player.StateStopped {
		return CheckResult{Status: StatusHealthy, Message: string(st.State)}
	}
	if !c.socket.SocketExists() {
		return CheckResult{
			Status:  StatusDegraded,
			Message: string(st.State),
			Error:   "player IPC socket missing",
		}
	}
	return CheckResult{Status: StatusHealthy, Message: string(st.State)}
}
