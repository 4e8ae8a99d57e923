// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package player

import (
	"context"
	"fmt"

	"github.com/ManuGH/headless-mpv/internal/output"
	"github.com/ManuGH/headless-mpv/internal/supervisor"
)

// State is the externally observable session state.
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Result is the outcome of a control operation. Failures are reported, never raised.
type Result struct {
	OK      bool   `json:"success"`
	Message string `json:"message"`
}

func success(format string, args ...any) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...)}
}

func failure(format string, args ...any) Result {
	return Result{OK: false, Message: fmt.Sprintf(format, args...)}
}

// OutputStatus describes one selectable output in a status snapshot.
type OutputStatus struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Current   bool   `json:"current"`
}

// Status is a point-in-time snapshot of the session.
type Status struct {
	State            State          `json:"state"`
	CurrentFile      *string        `json:"current_file"`
	Position         float64        `json:"position"`
	Duration         float64        `json:"duration"`
	Volume           int            `json:"volume"`
	Loop             bool           `json:"loop"`
	Outputs          []OutputStatus `json:"hdmi_outputs"`
	OutputPreference string         `json:"current_hdmi"`
}

// Resolver picks the output profile for a launch.
type Resolver interface {
	Resolve(ctx context.Context, preference string) output.Profile
	Connectors() []output.Connector
}

// Process is a launched player process.
type Process interface {
	Alive() bool
	PID() int
	// ExitErr is the wait result once the process has exited.
	ExitErr() error
}

// Launcher starts and stops player processes.
type Launcher interface {
	Launch(ctx context.Context, file string, profile output.Profile, volume int) (Process, error)
	// Terminate stops p, removes the IPC socket and blanks the output.
	// p may be nil or already exited.
	Terminate(ctx context.Context, p Process)
}

// LaunchTuner is implemented by launchers whose launch flags can change at runtime.
type LaunchTuner interface {
	SetHardwareAccel(on bool)
	SetAudioInHeadless(on bool)
}

// IPC is the command channel to the running player.
type IPC interface {
	Send(ctx context.Context, name string, args ...any) bool
	GetFloat(ctx context.Context, property string) (float64, bool)
	GetBool(ctx context.Context, property string) (bool, bool)
}

// SupervisorLauncher adapts a supervisor to the Launcher interface.
func SupervisorLauncher(s *supervisor.Supervisor) Launcher {
	return supervisorLauncher{s: s}
}

type supervisorLauncher struct {
	s *supervisor.Supervisor
}

func (l supervisorLauncher) Launch(ctx context.Context, file string, profile output.Profile, volume int) (Process, error) {
	h, err := l.s.Launch(ctx, file, profile, volume)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (l supervisorLauncher) Terminate(ctx context.Context, p Process) {
	h, _ := p.(*supervisor.Handle)
	l.s.Terminate(ctx, h)
}

func (l supervisorLauncher) SetHardwareAccel(on bool)   { l.s.SetHardwareAccel(on) }
func (l supervisorLauncher) SetAudioInHeadless(on bool) { l.s.SetAudioInHeadless(on) }
