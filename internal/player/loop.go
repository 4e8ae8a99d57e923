// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package player

import (
	"context"
	"time"

	"github.com/ManuGH/headless-mpv/internal/log"
	"github.com/ManuGH/headless-mpv/internal/metrics"
)

// Run reconciles the session with the player every poll interval until ctx
// is canceled. It returns nil on cancellation.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	c.logger.Info().
		Str(log.FieldEvent, "player.loop_started").
		Dur("interval", c.pollInterval).
		Msg("reconciliation loop started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str(log.FieldEvent, "player.loop_stopped").Msg("reconciliation loop stopped")
			return nil
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick runs one reconciliation pass. It is skipped while an operation holds
// the session; that operation leaves the session consistent on its own.
func (c *Controller) tick(ctx context.Context) {
	if !c.opMu.TryLock() {
		return
	}
	defer c.opMu.Unlock()

	c.reapLocked(ctx)
	if c.currentState() == StateStopped {
		return
	}

	pos, posOK := c.ipc.GetFloat(ctx, "time-pos")
	dur, durOK := c.ipc.GetFloat(ctx, "duration")
	paused, pauseOK := c.ipc.GetBool(ctx, "pause")

	if !posOK && !durOK && !pauseOK {
		c.pollLog.Do(func() {
			c.logger.Debug().
				Str(log.FieldEvent, "player.poll_failed").
				Msg("no properties readable from player")
		})
		return
	}

	c.mu.Lock()
	if posOK {
		c.position = max(0, pos)
	}
	if durOK && dur > 0 {
		c.duration = dur
	}
	position, duration, loop := c.position, c.duration, c.settings.Loop
	c.mu.Unlock()

	// The player is the source of truth for pausing; it may pause on its own.
	if pauseOK {
		if paused {
			c.setState(StatePaused)
		} else {
			c.setState(StatePlaying)
		}
	}

	if duration <= 0 || position < duration-endOfStreamMargin {
		return
	}

	if loop {
		if c.ipc.Send(ctx, "seek", 0, "absolute") {
			c.mu.Lock()
			c.position = 0
			c.mu.Unlock()
		}
		metrics.IncEndOfStream("loop")
		c.logger.Info().
			Str(log.FieldEvent, "player.loop").
			Float64(log.FieldDuration, duration).
			Msg("end of stream, looping")
		return
	}

	metrics.IncEndOfStream("stop")
	c.logger.Info().
		Str(log.FieldEvent, "player.end_of_stream").
		Float64(log.FieldPosition, position).
		Float64(log.FieldDuration, duration).
		Msg("end of stream, stopping")
	c.stopLocked(ctx)
}
