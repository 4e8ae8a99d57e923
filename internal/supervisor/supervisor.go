// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package supervisor launches and terminates the player process.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/ManuGH/headless-mpv/internal/log"
	"github.com/ManuGH/headless-mpv/internal/metrics"
	"github.com/ManuGH/headless-mpv/internal/output"
	"github.com/ManuGH/headless-mpv/internal/procgroup"
	"github.com/rs/zerolog"
)

var (
	// ErrFileNotFound is returned when the media file does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrSpawn is returned when the player binary could not be started.
	ErrSpawn = errors.New("failed to start player")
	// ErrExitedEarly is returned when the player exits before it became controllable.
	ErrExitedEarly = errors.New("player exited during startup")
)

const (
	defaultBinary      = "mpv"
	defaultSocketPath  = "/tmp/mpvsocket"
	defaultSettleDelay = time.Second
	defaultGrace       = 500 * time.Millisecond
	defaultKillTimeout = 2 * time.Second
)

// Quitter asks a running player to exit cooperatively.
type Quitter interface {
	Send(ctx context.Context, name string, args ...any) bool
}

// Blanker puts the display into a quiescent state.
type Blanker interface {
	Blank(ctx context.Context)
}

// Config configures a Supervisor. Zero durations select the defaults.
type Config struct {
	Binary          string
	SocketPath      string
	SafeMode        string
	HardwareAccel   bool
	AudioInHeadless bool
	SettleDelay     time.Duration
	Grace           time.Duration
	KillTimeout     time.Duration
	ExtraArgs       []string
}

// Supervisor owns the player process lifecycle.
type Supervisor struct {
	cfg             Config
	hardwareAccel   atomic.Bool
	audioInHeadless atomic.Bool
	quitter         Quitter
	blanker         Blanker
	logger          zerolog.Logger
}

// New creates a Supervisor. quitter and blanker may be nil.
func New(cfg Config, quitter Quitter, blanker Blanker) *Supervisor {
	if cfg.Binary == "" {
		cfg.Binary = defaultBinary
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = defaultSocketPath
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	if cfg.Grace <= 0 {
		cfg.Grace = defaultGrace
	}
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = defaultKillTimeout
	}
	s := &Supervisor{
		cfg:     cfg,
		quitter: quitter,
		blanker: blanker,
		logger:  log.WithComponent("supervisor"),
	}
	s.hardwareAccel.Store(cfg.HardwareAccel)
	s.audioInHeadless.Store(cfg.AudioInHeadless)
	return s
}

// SetHardwareAccel toggles hardware decoding for subsequent launches.
func (s *Supervisor) SetHardwareAccel(on bool) { s.hardwareAccel.Store(on) }

// SetAudioInHeadless toggles ALSA output for subsequent headless launches.
func (s *Supervisor) SetAudioInHeadless(on bool) { s.audioInHeadless.Store(on) }

// Handle is a running player process. It is reaped by an internal goroutine;
// Done closes once the process has exited and been waited for.
type Handle struct {
	cmd     *exec.Cmd
	done    chan struct{}
	exitErr error
	file    string
}

// PID returns the process id.
func (h *Handle) PID() int {
	if h == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// File returns the media file the process was launched with.
func (h *Handle) File() string { return h.file }

// Done closes when the process has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Alive reports whether the process is still running.
func (h *Handle) Alive() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ExitErr returns the wait error once the process has exited.
func (h *Handle) ExitErr() error {
	if h.Alive() {
		return nil
	}
	return h.exitErr
}

// Launch starts the player for file and blocks for the settle delay so the
// player can open its IPC socket. The returned handle is controllable.
// Cancellation of ctx does not abort a launch; ctx only carries log fields.
func (s *Supervisor) Launch(ctx context.Context, file string, profile output.Profile, volume int) (*Handle, error) {
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		metrics.IncLaunch("file_not_found")
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, file)
	}

	// A socket left behind by a crashed player would make liveness checks lie.
	s.removeSocket()

	args := s.BuildArgs(file, profile, volume)
	// #nosec G204 -- binary comes from configuration, arguments are built above
	cmd := exec.Command(s.cfg.Binary, args...)
	cmd.Env = os.Environ()
	if profile.Connected {
		cmd.Env = append(cmd.Env, "DISPLAY=")
	}
	procgroup.Set(cmd)

	s.logger.Debug().
		Str(log.FieldEvent, "supervisor.exec").
		Strs("argv", append([]string{s.cfg.Binary}, args...)).
		Msg("starting player")

	if err := cmd.Start(); err != nil {
		metrics.IncLaunch("spawn_error")
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	h := &Handle{
		cmd:  cmd,
		done: make(chan struct{}),
		file: file,
	}
	go func() {
		h.exitErr = cmd.Wait()
		close(h.done)
	}()

	settle := time.NewTimer(s.cfg.SettleDelay)
	defer settle.Stop()

	select {
	case <-settle.C:
	case <-h.done:
		metrics.IncLaunch("exited_early")
		s.removeSocket()
		return nil, fmt.Errorf("%w: %v", ErrExitedEarly, h.exitErr)
	}

	metrics.IncLaunch("ok")
	log.WithContext(ctx, s.logger).Info().
		Str(log.FieldEvent, "supervisor.started").
		Int(log.FieldPID, h.PID()).
		Str(log.FieldFile, file).
		Str(log.FieldOutput, profile.VideoTarget).
		Bool("connected", profile.Connected).
		Msg("player started")
	return h, nil
}

// Terminate stops the process behind h: IPC quit, grace period, then the
// SIGTERM/SIGKILL sequence on the process group. The socket is removed and
// the display blanked whatever the outcome. h may be nil or already exited.
func (s *Supervisor) Terminate(ctx context.Context, h *Handle) {
	if h.Alive() {
		s.stop(ctx, h)
	}
	s.removeSocket()
	if s.blanker != nil {
		s.blanker.Blank(ctx)
	}
}

func (s *Supervisor) stop(ctx context.Context, h *Handle) {
	logger := s.logger.With().Int(log.FieldPID, h.PID()).Logger()

	if s.quitter != nil && s.quitter.Send(ctx, "quit") {
		grace := time.NewTimer(s.cfg.Grace)
		defer grace.Stop()
		select {
		case <-h.done:
			metrics.IncProcWait("exited_on_quit")
			logger.Debug().Str(log.FieldEvent, "supervisor.quit").Msg("player exited on quit")
			return
		case <-grace.C:
		}
	}

	s.kill(h)
}

func (s *Supervisor) kill(h *Handle) {
	if err := procgroup.Terminate(h.cmd, h.done, s.cfg.Grace, s.cfg.KillTimeout); err != nil {
		// Cleanup continues regardless; the session must not wedge on a stuck process.
		s.logger.Error().
			Err(err).
			Str(log.FieldEvent, "supervisor.kill_failed").
			Int(log.FieldPID, h.PID()).
			Msg("player did not exit after SIGKILL")
		return
	}
	s.logger.Debug().
		Str(log.FieldEvent, "supervisor.terminated").
		Int(log.FieldPID, h.PID()).
		Msg("player terminated")
}

func (s *Supervisor) removeSocket() {
	if err := os.Remove(s.cfg.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "supervisor.socket_cleanup_failed").
			Str(log.FieldSocket, s.cfg.SocketPath).
			Msg("failed to remove ipc socket")
	}
}
