// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package procgroup spawns child processes in their own process group and
// tears the whole group down with an escalating signal sequence.
package procgroup

import (
	"errors"
	"os/exec"
	"time"

	"github.com/ManuGH/headless-mpv/internal/metrics"
)

var (
	// ErrKillFailed is returned when the process survived SIGKILL for longer than the kill timeout.
	ErrKillFailed = errors.New("kill operation failed")
)

// Terminate stops the process group led by cmd: SIGTERM, wait up to grace for
// done to close, then SIGKILL and wait up to killTimeout. done must be closed by
// whoever owns cmd.Wait, so the process is always reaped by its owner.
// It is safe to call on nil commands and on processes that already exited.
func Terminate(cmd *exec.Cmd, done <-chan struct{}, grace, killTimeout time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	select {
	case <-done:
		metrics.IncProcWait("already_exited")
		return nil
	default:
	}

	signalGroup(cmd, sigTerm, "SIGTERM")

	select {
	case <-done:
		metrics.IncProcWait("exited_on_sigterm")
		return nil
	case <-time.After(grace):
	}

	signalGroup(cmd, sigKill, "SIGKILL")

	select {
	case <-done:
		metrics.IncProcWait("exited_on_sigkill")
		return nil
	case <-time.After(killTimeout):
		metrics.IncProcWait("kill_failed")
		return ErrKillFailed
	}
}

func signalGroup(cmd *exec.Cmd, sig signal, name string) {
	if err := Kill(cmd, sig); err != nil {
		metrics.IncProcTerminate(name, "error")
		return
	}
	metrics.IncProcTerminate(name, "sent")
}
