// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package player

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestTick_ReadsPlayerTruth(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)

	h.ipc.set("time-pos", 12.5)
	h.ipc.set("duration", 300.0)
	h.ipc.set("pause", true)
	h.c.tick(ctx)

	st := h.c.Status(ctx)
	assert.InDelta(t, 12.5, st.Position, 1e-9)
	assert.InDelta(t, 300, st.Duration, 1e-9)
	assert.Equal(t, StatePaused, st.State, "player pause flag overrides local state")

	h.ipc.set("pause", false)
	h.c.tick(ctx)
	assert.Equal(t, StatePlaying, h.c.Status(ctx).State)
}

func TestTick_PartialUpdate(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)

	h.ipc.set("time-pos", 10.0)
	h.ipc.set("duration", 300.0)
	h.c.tick(ctx)

	h.ipc.set("time-pos", 20.0)
	h.ipc.unreadable["duration"] = true
	h.c.tick(ctx)

	st := h.c.Status(ctx)
	assert.InDelta(t, 20, st.Position, 1e-9)
	assert.InDelta(t, 300, st.Duration, 1e-9, "failed read must not revert duration")
}

func TestTick_EndOfStreamStops(t *testing.T) {
	h := newHarness(t, Settings{Loop: false})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)
	proc := h.launcher.lastProc()

	h.ipc.set("duration", 120.0)
	h.ipc.set("time-pos", 119.5)
	h.c.tick(ctx)

	st := h.c.Status(ctx)
	assert.Equal(t, StateStopped, st.State)
	assert.Nil(t, st.CurrentFile)
	assert.False(t, proc.Alive())
	assertConsistent(t, h.c)
}

func TestTick_EndOfStreamLoops(t *testing.T) {
	h := newHarness(t, Settings{Loop: true})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)
	h.ipc.reset()

	h.ipc.set("duration", 120.0)
	h.ipc.set("time-pos", 119.5)
	h.c.tick(ctx)

	st := h.c.Status(ctx)
	assert.Equal(t, StatePlaying, st.State)
	assert.InDelta(t, 0, st.Position, 1e-9)
	assert.Contains(t, h.ipc.sent(), []any{"seek", 0, "absolute"})
}

func TestTick_UnknownDurationNeverEnds(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)

	h.ipc.set("time-pos", 0.5)
	h.c.tick(ctx)
	assert.Equal(t, StatePlaying, h.c.Status(ctx).State)
}

func TestTick_SkipsWhileOperationRuns(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)
	h.ipc.reset()

	h.c.opMu.Lock()
	h.c.tick(ctx)
	h.c.opMu.Unlock()
	assert.Empty(t, h.ipc.sent())
}

func TestTick_ReapsExitedProcess(t *testing.T) {
	h := newHarness(t, Settings{})
	ctx := context.Background()
	require.True(t, h.c.Play(ctx, clipA).OK)
	h.launcher.lastProc().alive.Store(false)

	h.c.tick(ctx)
	assertConsistent(t, h.c)
	assert.Equal(t, StateStopped, h.c.currentState())
}

func TestRun_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, Settings{})
	require.True(t, h.c.Play(context.Background(), clipA).OK)
	h.ipc.set("time-pos", 7.0)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.c.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.c.Status(context.Background()).Position == 7.0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "00:00", FormatTime(0))
	assert.Equal(t, "01:05", FormatTime(65.9))
	assert.Equal(t, "59:59", FormatTime(3599))
	assert.Equal(t, "01:00:00", FormatTime(3600))
	assert.Equal(t, "00:00", FormatTime(-4))
}
