// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package player

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/headless-mpv/internal/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	clipA = "/media/videos/a.mp4"
	clipB = "/media/videos/b.mkv"
)

type harness struct {
	c        *Controller
	launcher *fakeLauncher
	ipc      *fakeIPC
	resolver *fakeResolver
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()
	h := &harness{
		launcher: newFakeLauncher(clipA, clipB),
		ipc:      newFakeIPC(),
		resolver: &fakeResolver{connectors: []output.Connector{
			{Name: "HDMI-A-1", Connected: true},
			{Name: "HDMI-A-2", Connected: false},
		}},
	}
	h.c = New(Config{Volume: 80, Output: output.Auto, PollInterval: 10 * time.Millisecond, Settings: settings},
		h.resolver, h.launcher, h.ipc)
	return h
}

// assertConsistent checks that a file is set exactly when the session is active.
func assertConsistent(t *testing.T, c *Controller) {
	t.Helper()
	c.mu.RLock()
	defer c.mu.RUnlock()
	active := c.state == StatePlaying || c.state == StatePaused
	assert.Equal(t, active, c.file != "", "file set iff active (state=%s file=%q)", c.state, c.file)
	assert.Equal(t, active, c.proc != nil, "process held iff active (state=%s)", c.state)
}

func TestPlay_StartsPlayback(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()

	res := h.c.Play(ctx, clipA)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "Playing a.mp4", res.Message)

	st := h.c.Status(ctx)
	assert.Equal(t, StatePlaying, st.State)
	require.NotNil(t, st.CurrentFile)
	assert.Equal(t, "a.mp4", *st.CurrentFile)
	assert.Equal(t, 80, h.launcher.launches[0].volume)
	assert.Equal(t, output.DefaultOutput, h.launcher.launches[0].profile.VideoTarget)
	assertConsistent(t, h.c)
}

func TestPlay_ReplacesCurrentPlayback(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()

	require.True(t, h.c.Play(ctx, clipA).OK)
	first := h.launcher.lastProc()
	require.True(t, h.c.Play(ctx, clipB).OK)

	assert.False(t, first.Alive(), "previous process must be terminated before launching")
	assert.Equal(t, 2, h.launcher.launchCount())
	assert.Equal(t, clipB, h.c.CurrentFile())
	assertConsistent(t, h.c)
}

func TestPlay_MissingFileLeavesSessionStopped(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()

	require.True(t, h.c.Play(ctx, clipA).OK)
	res := h.c.Play(ctx, "/media/videos/missing.mp4")
	assert.False(t, res.OK)
	assert.Equal(t, "File not found: missing.mp4", res.Message)

	st := h.c.Status(ctx)
	assert.Equal(t, StateStopped, st.State)
	assert.Nil(t, st.CurrentFile)
	assert.Equal(t, 1, h.launcher.terminatedLive())
	assertConsistent(t, h.c)
}

func TestPlay_SpawnFailure(t *testing.T) {
	h := newHarness(t, Settings{})
	h.launcher.err = errSpawn

	res := h.c.Play(context.Background(), clipA)
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "Failed to start playback")
	assert.Equal(t, StateStopped, h.c.Status(context.Background()).State)
	assertConsistent(t, h.c)
}

func TestPause_RoundTrip(t *testing.T) {
	h := newHarness(t, Settings{AudioResync: true})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)
	h.ipc.reset()

	require.True(t, h.c.Pause(ctx).OK)
	assert.Equal(t, StatePaused, h.c.Status(ctx).State)

	require.True(t, h.c.Pause(ctx).OK)
	assert.Equal(t, StatePlaying, h.c.Status(ctx).State)

	assert.Equal(t, [][]any{
		{"set_property", "pause", true},
		{"set_property", "pause", false},
		{"seek", 0, "relative"},
	}, h.ipc.sent())
	assertConsistent(t, h.c)
}

func TestPause_ResyncDisabled(t *testing.T) {
	h := newHarness(t, Settings{AudioResync: false})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)
	h.ipc.reset()

	require.True(t, h.c.Pause(ctx).OK)
	require.True(t, h.c.Pause(ctx).OK)
	assert.Equal(t, [][]any{
		{"set_property", "pause", true},
		{"set_property", "pause", false},
	}, h.ipc.sent())
}

func TestPause_IPCFailureKeepsState(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)
	h.ipc.fail("set_property")

	res := h.c.Pause(ctx)
	assert.False(t, res.OK)
	assert.Equal(t, StatePlaying, h.c.Status(ctx).State)
}

func TestPause_WhileStopped(t *testing.T) {
	h := newHarness(t, Settings{})
	res := h.c.Pause(context.Background())
	assert.False(t, res.OK)
	assert.Equal(t, "Nothing is playing", res.Message)
	assert.Empty(t, h.ipc.sent())
}

func TestResume(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()

	assert.True(t, h.c.Resume(ctx).OK, "resume while stopped is a no-op success")

	require.True(t, h.c.Play(ctx, clipA).OK)
	h.ipc.reset()
	assert.True(t, h.c.Resume(ctx).OK)
	assert.Empty(t, h.ipc.sent(), "resume while playing sends nothing")

	require.True(t, h.c.Pause(ctx).OK)
	require.True(t, h.c.Resume(ctx).OK)
	assert.Equal(t, StatePlaying, h.c.Status(ctx).State)
}

func TestStop(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)
	proc := h.launcher.lastProc()

	res := h.c.Stop(ctx)
	assert.True(t, res.OK)
	assert.False(t, proc.Alive())

	st := h.c.Status(ctx)
	assert.Equal(t, StateStopped, st.State)
	assert.Nil(t, st.CurrentFile)
	assert.Zero(t, st.Position)
	assert.Zero(t, st.Duration)
	assertConsistent(t, h.c)

	assert.True(t, h.c.Stop(ctx).OK, "stop is always safe")
}

func TestSeek(t *testing.T) {
	h := newHarness(t, Settings{AudioResync: true})
	ctx := context.Background()

	assert.False(t, h.c.Seek(ctx, 10).OK)

	require.True(t, h.c.Play(ctx, clipA).OK)
	h.ipc.set("duration", 120.0)
	h.c.tick(ctx)
	h.ipc.reset()

	res := h.c.Seek(ctx, 30)
	require.True(t, res.OK)
	assert.Equal(t, "Seeked to 00:30", res.Message)
	assert.InDelta(t, 30, h.c.Status(ctx).Position, 1e-9)
	assert.Equal(t, [][]any{
		{"seek", 30.0, "absolute"},
		{"cycle", "audio"},
		{"cycle", "audio"},
	}, h.ipc.sent())

	require.True(t, h.c.Seek(ctx, 500).OK)
	assert.InDelta(t, 120, h.c.Status(ctx).Position, 1e-9)
	require.True(t, h.c.Seek(ctx, -3).OK)
	assert.InDelta(t, 0, h.c.Status(ctx).Position, 1e-9)
}

func TestSeek_IPCFailureKeepsPosition(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)
	require.True(t, h.c.Seek(ctx, 12).OK)

	h.ipc.fail("seek")
	assert.False(t, h.c.Seek(ctx, 40).OK)
	assert.InDelta(t, 12, h.c.Status(ctx).Position, 1e-9)
}

func TestSkip_Clamps(t *testing.T) {
	tests := []struct {
		name     string
		position float64
		duration float64
		delta    float64
		want     float64
	}{
		{name: "forward", position: 50, duration: 120, delta: 30, want: 80},
		{name: "past end", position: 50, duration: 120, delta: 100, want: 120},
		{name: "before start", position: 50, duration: 120, delta: -70, want: 0},
		{name: "unknown duration", position: 50, duration: 0, delta: 500, want: 550},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Settings{})
			ctx := context.Background()
			require.True(t, h.c.Play(ctx, clipA).OK)
			h.ipc.set("time-pos", tt.position)
			if tt.duration > 0 {
				h.ipc.set("duration", tt.duration)
			}
			h.ipc.reset()

			res := h.c.Skip(ctx, tt.delta)
			require.True(t, res.OK, res.Message)

			var seek []any
			for _, cmd := range h.ipc.sent() {
				if cmd[0] == "seek" {
					seek = cmd
				}
			}
			require.NotNil(t, seek)
			assert.Equal(t, "relative", seek[2])
			assert.InDelta(t, tt.want-tt.position, seek[1].(float64), 1e-9)
			assert.InDelta(t, tt.want, h.c.Status(ctx).Position, 1e-9)
		})
	}
}

func TestSkip_WhileStopped(t *testing.T) {
	h := newHarness(t, Settings{})
	assert.False(t, h.c.Skip(context.Background(), 30).OK)
}

func TestSetVolume_Clamps(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()

	for _, tc := range []struct{ in, want int }{{150, 100}, {-5, 0}, {42, 42}} {
		require.True(t, h.c.SetVolume(ctx, tc.in).OK)
		assert.Equal(t, tc.want, h.c.Status(ctx).Volume)
	}

	require.True(t, h.c.Play(ctx, clipA).OK)
	assert.Equal(t, 42, h.launcher.launches[0].volume)
	h.ipc.reset()
	require.True(t, h.c.SetVolume(ctx, 150).OK)
	assert.Equal(t, [][]any{{"set_property", "volume", 100}}, h.ipc.sent())
}

func TestSetVolume_IPCFailureWhilePlaying(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)
	h.ipc.fail("set_property")

	assert.False(t, h.c.SetVolume(ctx, 10).OK)
	assert.Equal(t, 80, h.c.Status(ctx).Volume)
}

func TestSetOutput_WhileStopped(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()

	require.True(t, h.c.SetOutput(ctx, "HDMI-A-2").OK)
	assert.Zero(t, h.launcher.launchCount())
	assert.Equal(t, "HDMI-A-2", h.c.Status(ctx).OutputPreference)

	require.True(t, h.c.SetOutput(ctx, "").OK)
	assert.Equal(t, output.Auto, h.c.Status(ctx).OutputPreference)
}

func TestSetOutput_RestartsPreservingPositionAndPause(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)
	h.ipc.set("time-pos", 42.0)
	h.ipc.set("duration", 300.0)
	h.c.tick(ctx)
	require.True(t, h.c.Pause(ctx).OK)
	first := h.launcher.lastProc()
	h.ipc.reset()

	res := h.c.SetOutput(ctx, "HDMI-A-2")
	require.True(t, res.OK, res.Message)

	assert.False(t, first.Alive())
	require.Equal(t, 2, h.launcher.launchCount())
	assert.Equal(t, "HDMI-A-2", h.launcher.launches[1].profile.VideoTarget)
	assert.Equal(t, clipA, h.launcher.launches[1].file)

	st := h.c.Status(ctx)
	assert.Equal(t, StatePaused, st.State)
	assert.InDelta(t, 42, st.Position, 1e-9)
	assert.Contains(t, h.ipc.sent(), []any{"seek", 42.0, "absolute"})
	assert.Contains(t, h.ipc.sent(), []any{"set_property", "pause", true})
	assertConsistent(t, h.c)
}

func TestOperations_OutliveCanceledCaller(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := h.c.Play(ctx, clipA)
	require.True(t, res.OK, res.Message)
	require.Equal(t, StatePlaying, h.c.Status(context.Background()).State)

	h.ipc.set("time-pos", 42.0)
	h.ipc.set("duration", 300.0)
	h.c.tick(context.Background())
	require.True(t, h.c.Pause(ctx).OK)

	res = h.c.SetOutput(ctx, "HDMI-A-2")
	require.True(t, res.OK, res.Message)
	st := h.c.Status(context.Background())
	assert.Equal(t, StatePaused, st.State)
	assert.InDelta(t, 42, st.Position, 1e-9)

	h.c.Stop(ctx)
	assert.Zero(t, h.launcher.canceled, "launcher saw a canceled context")
	h.ipc.mu.Lock()
	defer h.ipc.mu.Unlock()
	assert.Zero(t, h.ipc.canceled, "ipc saw a canceled context")
}

func TestStatus_ReapsExitedProcess(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)

	h.launcher.lastProc().alive.Store(false)

	st := h.c.Status(ctx)
	assert.Equal(t, StateStopped, st.State)
	assert.Nil(t, st.CurrentFile)
	assert.Equal(t, 1, h.launcher.terminatedLive(), "exited process must be cleaned up")
	assertConsistent(t, h.c)
}

func TestStatus_ExitedProcessWhileOperationRuns(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)
	h.launcher.lastProc().alive.Store(false)

	h.c.opMu.Lock()
	st := h.c.Status(ctx)
	h.c.opMu.Unlock()

	assert.Equal(t, StateStopped, st.State)
	assert.Nil(t, st.CurrentFile)
}

func TestOutputs_AutoFirst(t *testing.T) {
	h := newHarness(t, Settings{})
	require.True(t, h.c.SetOutput(context.Background(), "HDMI-A-2").OK)

	assert.Equal(t, []OutputStatus{
		{Name: "auto", Connected: true, Current: false},
		{Name: "HDMI-A-1", Connected: true, Current: false},
		{Name: "HDMI-A-2", Connected: false, Current: true},
	}, h.c.Outputs())
}

func TestApplySettings(t *testing.T) {
	h := newHarness(t, Settings{HardwareAccel: true, AudioInHeadless: true})
	assert.True(t, h.launcher.hwaccel)
	assert.True(t, h.launcher.audioInHeadless)

	h.c.ApplySettings(Settings{Loop: true})
	assert.False(t, h.launcher.hwaccel)
	assert.False(t, h.launcher.audioInHeadless)
	assert.True(t, h.c.Status(context.Background()).Loop)
}

func TestInvariant_OperationSequence(t *testing.T) {
	h := newHarness(t, Settings{AudioResync: true})
	ctx := context.Background()

	ops := []func(){
		func() { h.c.Pause(ctx) },
		func() { h.c.Play(ctx, clipA) },
		func() { h.c.Skip(ctx, 30) },
		func() { h.c.Pause(ctx) },
		func() { h.c.SetOutput(ctx, "HDMI-A-1") },
		func() { h.c.Play(ctx, "/nope.mp4") },
		func() { h.c.Resume(ctx) },
		func() { h.c.Play(ctx, clipB) },
		func() { h.launcher.lastProc().alive.Store(false) },
		func() { h.c.Status(ctx) },
		func() { h.c.Seek(ctx, 5) },
		func() { h.c.Play(ctx, clipA) },
		func() { h.c.Stop(ctx) },
		func() { h.c.SetVolume(ctx, 300) },
	}
	for i, op := range ops {
		op()
		h.c.tick(ctx)
		if t.Failed() {
			t.Fatalf("invariant broken after op %d", i)
		}
		assertConsistent(t, h.c)
	}
}

func TestConcurrentCallers(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, Settings{AudioResync: true})
	ctx, cancel := context.WithCancel(context.Background())

	loopDone := make(chan struct{})
	go func() {
		_ = h.c.Run(ctx)
		close(loopDone)
	}()

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 25; j++ {
				switch (i + j) % 5 {
				case 0:
					h.c.Play(ctx, clipA)
				case 1:
					h.c.Pause(ctx)
				case 2:
					h.c.Status(ctx)
				case 3:
					h.c.Skip(ctx, 10)
				case 4:
					h.c.Stop(ctx)
				}
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	cancel()
	<-loopDone

	h.c.Close(context.Background())
	assertConsistent(t, h.c)
	assert.Equal(t, StateStopped, h.c.Status(context.Background()).State)
}
