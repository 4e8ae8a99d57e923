// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package player owns the single playback session: the state machine behind
// the control operations and the loop that reconciles it with the running
// player process.
//
// Two locks guard the session. opMu serializes everything that touches the
// process or its socket (operations, lazy reaping, reconciliation ticks); only
// the holder of opMu writes session fields. mu protects the fields themselves
// so status snapshots never wait behind a launch or a termination.
package player

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/ManuGH/headless-mpv/internal/log"
	"github.com/ManuGH/headless-mpv/internal/metrics"
	"github.com/ManuGH/headless-mpv/internal/output"
	"github.com/ManuGH/headless-mpv/internal/supervisor"
	"github.com/ManuGH/headless-mpv/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	tracerName = "headless-mpv/player"

	defaultPollInterval = 500 * time.Millisecond

	// Position within this many seconds of the duration counts as end of stream.
	endOfStreamMargin = 1.0
)

// Settings are the behaviour flags that can change while the controller runs.
type Settings struct {
	Loop            bool
	AudioResync     bool
	HardwareAccel   bool
	AudioInHeadless bool
}

// Config configures a Controller.
type Config struct {
	Volume       int
	Output       string
	PollInterval time.Duration
	Settings     Settings
}

// Controller is the playback session.
type Controller struct {
	resolver     Resolver
	launcher     Launcher
	ipc          IPC
	pollInterval time.Duration
	logger       zerolog.Logger
	pollLog      rate.Sometimes

	opMu sync.Mutex

	mu       sync.RWMutex
	state    State
	file     string
	position float64
	duration float64
	volume   int
	output   string
	settings Settings
	proc     Process
}

// New creates a stopped Controller.
func New(cfg Config, resolver Resolver, launcher Launcher, client IPC) *Controller {
	c := &Controller{
		resolver:     resolver,
		launcher:     launcher,
		ipc:          client,
		pollInterval: cfg.PollInterval,
		logger:       log.WithComponent("player"),
		pollLog:      rate.Sometimes{Interval: 30 * time.Second},
		state:        StateStopped,
		volume:       clampVolume(cfg.Volume),
		output:       normalizeOutput(cfg.Output),
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	c.applySettings(cfg.Settings)
	metrics.SetPlayerState(string(StateStopped))
	return c
}

// Play stops any current playback and starts file.
func (c *Controller) Play(ctx context.Context, file string) Result {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	ctx, span := c.begin(ctx, "play")
	return c.finish(ctx, span, "play", c.playLocked(ctx, file))
}

// Pause toggles between playing and paused.
func (c *Controller) Pause(ctx context.Context) Result {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	ctx, span := c.begin(ctx, "pause")
	return c.finish(ctx, span, "pause", c.togglePauseLocked(ctx))
}

// Resume continues paused playback. It succeeds without effect otherwise.
func (c *Controller) Resume(ctx context.Context) Result {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	ctx, span := c.begin(ctx, "resume")
	c.reapLocked(ctx)
	if c.currentState() != StatePaused {
		return c.finish(ctx, span, "resume", success("Nothing to resume"))
	}
	return c.finish(ctx, span, "resume", c.togglePauseLocked(ctx))
}

// Stop ends playback. It always succeeds.
func (c *Controller) Stop(ctx context.Context) Result {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	ctx, span := c.begin(ctx, "stop")
	c.stopLocked(ctx)
	return c.finish(ctx, span, "stop", success("Playback stopped"))
}

// Seek jumps to an absolute position in seconds, clamped to the known duration.
func (c *Controller) Seek(ctx context.Context, position float64) Result {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	ctx, span := c.begin(ctx, "seek")
	return c.finish(ctx, span, "seek", c.seekLocked(ctx, position))
}

// Skip moves the position by delta seconds, clamped to [0, duration].
func (c *Controller) Skip(ctx context.Context, delta float64) Result {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	ctx, span := c.begin(ctx, "skip")
	return c.finish(ctx, span, "skip", c.skipLocked(ctx, delta))
}

// SetVolume sets the volume, clamped to [0, 100]. While stopped the level is
// stored for the next launch.
func (c *Controller) SetVolume(ctx context.Context, level int) Result {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	ctx, span := c.begin(ctx, "volume")
	level = clampVolume(level)

	c.reapLocked(ctx)
	if c.currentState() != StateStopped && !c.ipc.Send(ctx, "set_property", "volume", level) {
		return c.finish(ctx, span, "volume", failure("Failed to set volume"))
	}

	c.mu.Lock()
	c.volume = level
	c.mu.Unlock()
	return c.finish(ctx, span, "volume", success("Volume set to %d", level))
}

// SetOutput stores the output preference. Active playback is restarted on
// the new output at the current position, keeping the pause state.
func (c *Controller) SetOutput(ctx context.Context, preference string) Result {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	ctx, span := c.begin(ctx, "output")
	preference = normalizeOutput(preference)

	c.reapLocked(ctx)
	c.mu.Lock()
	c.output = preference
	state, file, position := c.state, c.file, c.position
	c.mu.Unlock()

	if state == StateStopped {
		return c.finish(ctx, span, "output", success("Output set to %s", preference))
	}
	return c.finish(ctx, span, "output", c.restartLocked(ctx, file, position, state == StatePaused, preference))
}

// Outputs lists the selectable outputs, "auto" first.
func (c *Controller) Outputs() []OutputStatus {
	c.mu.RLock()
	current := c.output
	c.mu.RUnlock()

	connectors := c.resolver.Connectors()
	outs := make([]OutputStatus, 0, len(connectors)+1)
	outs = append(outs, OutputStatus{Name: output.Auto, Connected: true, Current: current == output.Auto})
	for _, conn := range connectors {
		outs = append(outs, OutputStatus{Name: conn.Name, Connected: conn.Connected, Current: conn.Name == current})
	}
	return outs
}

// Status returns a snapshot of the session. A player that exited since the
// last observation is reported as stopped, even if the loop has not ticked.
func (c *Controller) Status(ctx context.Context) Status {
	if c.opMu.TryLock() {
		c.reapLocked(ctx)
		c.opMu.Unlock()
	}

	c.mu.RLock()
	st := Status{
		State:            c.state,
		Position:         c.position,
		Duration:         c.duration,
		Volume:           c.volume,
		Loop:             c.settings.Loop,
		OutputPreference: c.output,
	}
	file := c.file
	dead := c.proc != nil && !c.proc.Alive()
	c.mu.RUnlock()

	// An operation holds opMu; the reap happens when it or the next tick finishes.
	if dead {
		st.State = StateStopped
		st.Position, st.Duration = 0, 0
		file = ""
	}
	if file != "" {
		base := filepath.Base(file)
		st.CurrentFile = &base
	}
	st.Outputs = c.Outputs()
	return st
}

// CurrentFile returns the path being played, or "" when stopped.
func (c *Controller) CurrentFile() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.file
}

// Settings returns the current runtime flags.
func (c *Controller) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// ApplySettings replaces the runtime flags. Launch flags take effect on the next launch.
func (c *Controller) ApplySettings(s Settings) {
	c.applySettings(s)
	c.logger.Info().
		Str(log.FieldEvent, "player.settings_applied").
		Bool("loop", s.Loop).
		Bool("audio_resync", s.AudioResync).
		Bool("hardware_accel", s.HardwareAccel).
		Bool("audio_in_headless", s.AudioInHeadless).
		Msg("player settings updated")
}

func (c *Controller) applySettings(s Settings) {
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
	if t, ok := c.launcher.(LaunchTuner); ok {
		t.SetHardwareAccel(s.HardwareAccel)
		t.SetAudioInHeadless(s.AudioInHeadless)
	}
}

// Close stops playback. The reconciliation loop is stopped by canceling its context.
func (c *Controller) Close(ctx context.Context) {
	c.Stop(ctx)
}

func (c *Controller) playLocked(ctx context.Context, file string) Result {
	// Always stop first so two processes never compete for the socket.
	c.stopLocked(ctx)

	c.mu.RLock()
	preference, volume := c.output, c.volume
	c.mu.RUnlock()

	profile := c.resolver.Resolve(ctx, preference)
	trace.SpanFromContext(ctx).SetAttributes(
		telemetry.OutputAttributes(profile.VideoTarget, profile.Connected, profile.DRMDevice, profile.AudioSink)...)

	proc, err := c.launcher.Launch(ctx, file, profile, volume)
	if err != nil {
		if errors.Is(err, supervisor.ErrFileNotFound) {
			return failure("File not found: %s", filepath.Base(file))
		}
		log.WithContext(ctx, c.logger).Error().
			Err(err).
			Str(log.FieldEvent, "player.launch_failed").
			Str(log.FieldFile, file).
			Msg("failed to start player")
		return failure("Failed to start playback: %v", err)
	}

	c.mu.Lock()
	c.state = StatePlaying
	c.file = file
	c.position = 0
	c.duration = 0
	c.proc = proc
	c.mu.Unlock()
	metrics.SetPlayerState(string(StatePlaying))

	return success("Playing %s", filepath.Base(file))
}

func (c *Controller) stopLocked(ctx context.Context) {
	c.mu.RLock()
	proc := c.proc
	c.mu.RUnlock()

	c.launcher.Terminate(ctx, proc)
	c.resetLocked()
}

func (c *Controller) resetLocked() {
	c.mu.Lock()
	c.state = StateStopped
	c.file = ""
	c.position = 0
	c.duration = 0
	c.proc = nil
	c.mu.Unlock()
	metrics.SetPlayerState(string(StateStopped))
}

// reapLocked reconciles a process that exited out of band to Stopped.
func (c *Controller) reapLocked(ctx context.Context) {
	c.mu.RLock()
	proc, file := c.proc, c.file
	c.mu.RUnlock()

	if proc == nil || proc.Alive() {
		return
	}

	metrics.IncUnexpectedExit()
	log.WithContext(ctx, c.logger).Info().
		Str(log.FieldEvent, "player.exited").
		Int(log.FieldPID, proc.PID()).
		Str(log.FieldFile, file).
		AnErr("exit", proc.ExitErr()).
		Msg("player exited")

	// Cleans the socket and blanks the output; the process is already gone.
	c.launcher.Terminate(ctx, proc)
	c.resetLocked()
}

func (c *Controller) togglePauseLocked(ctx context.Context) Result {
	c.reapLocked(ctx)

	switch c.currentState() {
	case StatePlaying:
		if !c.ipc.Send(ctx, "set_property", "pause", true) {
			return failure("Failed to pause playback")
		}
		c.setState(StatePaused)
		return success("Playback paused")
	case StatePaused:
		if !c.ipc.Send(ctx, "set_property", "pause", false) {
			return failure("Failed to resume playback")
		}
		if c.resyncEnabled() {
			// A zero-length seek restarts the audio path after unpausing.
			c.ipc.Send(ctx, "seek", 0, "relative")
		}
		c.setState(StatePlaying)
		return success("Playback resumed")
	default:
		return failure("Nothing is playing")
	}
}

func (c *Controller) seekLocked(ctx context.Context, position float64) Result {
	c.reapLocked(ctx)
	if c.currentState() == StateStopped {
		return failure("Nothing is playing")
	}

	c.mu.RLock()
	duration := c.duration
	c.mu.RUnlock()

	target := clampPosition(position, duration)
	if !c.ipc.Send(ctx, "seek", target, "absolute") {
		return failure("Seek failed")
	}

	c.mu.Lock()
	c.position = target
	c.mu.Unlock()
	c.resyncAudio(ctx)

	return success("Seeked to %s", FormatTime(target))
}

func (c *Controller) skipLocked(ctx context.Context, delta float64) Result {
	c.reapLocked(ctx)
	if c.currentState() == StateStopped {
		return failure("Nothing is playing")
	}

	c.mu.RLock()
	current, duration := c.position, c.duration
	c.mu.RUnlock()

	if pos, ok := c.ipc.GetFloat(ctx, "time-pos"); ok {
		current = pos
	}
	if dur, ok := c.ipc.GetFloat(ctx, "duration"); ok && dur > 0 {
		duration = dur
	}

	target := clampPosition(current+delta, duration)
	if !c.ipc.Send(ctx, "seek", target-current, "relative") {
		return failure("Skip failed")
	}

	position := target
	if pos, ok := c.ipc.GetFloat(ctx, "time-pos"); ok {
		position = pos
	}
	c.mu.Lock()
	c.position = position
	if duration > 0 {
		c.duration = duration
	}
	c.mu.Unlock()
	c.resyncAudio(ctx)

	return success("Skipped to %s", FormatTime(position))
}

func (c *Controller) restartLocked(ctx context.Context, file string, position float64, paused bool, preference string) Result {
	res := c.playLocked(ctx, file)
	if !res.OK {
		return res
	}

	if position > 0 && c.ipc.Send(ctx, "seek", position, "absolute") {
		c.mu.Lock()
		c.position = position
		c.mu.Unlock()
	}
	if paused && c.ipc.Send(ctx, "set_property", "pause", true) {
		c.setState(StatePaused)
	}
	return success("Output set to %s", preference)
}

// resyncAudio toggles the audio track off and on to recover from audio
// dropouts some builds show after seeking.
func (c *Controller) resyncAudio(ctx context.Context) {
	if !c.resyncEnabled() {
		return
	}
	c.ipc.Send(ctx, "cycle", "audio")
	c.ipc.Send(ctx, "cycle", "audio")
}

func (c *Controller) resyncEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.AudioResync
}

func (c *Controller) currentState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed {
		metrics.SetPlayerState(string(s))
	}
}

// begin detaches ctx from the caller's cancellation: an operation, once
// started, always runs through its grace and settle periods.
func (c *Controller) begin(ctx context.Context, op string) (context.Context, trace.Span) {
	ctx = context.WithoutCancel(ctx)
	c.mu.RLock()
	state, file := c.state, c.file
	c.mu.RUnlock()
	return telemetry.StartSpan(ctx, tracerName, "player."+op,
		telemetry.PlayerAttributes(op, string(state), file)...)
}

func (c *Controller) finish(ctx context.Context, span trace.Span, op string, res Result) Result {
	telemetry.EndSpan(span, res.OK, res.Message)
	metrics.RecordOperation(op, res.OK)

	logger := log.WithContext(ctx, c.logger)
	ev := logger.Info()
	if !res.OK {
		ev = logger.Warn()
	}
	ev.Str(log.FieldEvent, "player."+op).
		Bool("ok", res.OK).
		Str(log.FieldNewState, string(c.currentState())).
		Msg(res.Message)
	return res
}

func clampVolume(v int) int {
	return max(0, min(100, v))
}

// clampPosition bounds p to [0, duration]; an unknown (zero) duration leaves
// the upper end open.
func clampPosition(p, duration float64) float64 {
	p = max(0, p)
	if duration > 0 {
		p = min(p, duration)
	}
	return p
}

func normalizeOutput(pref string) string {
	if pref == "" {
		return output.Auto
	}
	return pref
}
