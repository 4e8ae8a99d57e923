// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package output

import (
	"context"
	"os"
	"time"

	"github.com/ManuGH/headless-mpv/internal/log"
	"github.com/rs/zerolog"
)

const (
	defaultBlankTTY     = "/dev/tty1"
	defaultBlankTimeout = time.Second

	// Hide the cursor, clear the screen, home the cursor.
	ttyBlankSequence = "\033[?25l\033[2J\033[H"
)

// BlankConfig configures the Blanker.
type BlankConfig struct {
	Enabled bool
	TTY     string
	Timeout time.Duration
	Runner  Runner
}

// Blanker puts the display into a quiescent state between playbacks.
type Blanker struct {
	enabled bool
	tty     string
	timeout time.Duration
	runner  Runner
	logger  zerolog.Logger
}

// NewBlanker creates a Blanker.
func NewBlanker(cfg BlankConfig) *Blanker {
	b := &Blanker{
		enabled: cfg.Enabled,
		tty:     cfg.TTY,
		timeout: cfg.Timeout,
		runner:  cfg.Runner,
		logger:  log.WithComponent("output"),
	}
	if b.tty == "" {
		b.tty = defaultBlankTTY
	}
	if b.timeout <= 0 {
		b.timeout = defaultBlankTimeout
	}
	if b.runner == nil {
		b.runner = ExecRunner{}
	}
	return b
}

// Blank runs every blanking technique. Not every technique applies to every
// board and display, so failures are logged at debug level and ignored.
func (b *Blanker) Blank(ctx context.Context) {
	if b == nil || !b.enabled {
		return
	}
	techniques := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{name: "display_power", fn: b.displayPower},
		{name: "console_clear", fn: b.clearConsole},
		{name: "console_blank", fn: b.consoleBlank},
	}
	for _, t := range techniques {
		tctx, cancel := context.WithTimeout(ctx, b.timeout)
		err := t.fn(tctx)
		cancel()
		if err != nil {
			b.logger.Debug().
				Err(err).
				Str(log.FieldEvent, "output.blank_technique_failed").
				Str("technique", t.name).
				Msg("blanking technique not applicable")
		}
	}
}

// displayPower keeps the HDMI signal up so the screen shows black instead of
// a "no signal" banner.
func (b *Blanker) displayPower(ctx context.Context) error {
	_, err := b.runner.Run(ctx, "vcgencmd", "display_power", "1")
	return err
}

func (b *Blanker) clearConsole(_ context.Context) error {
	if _, err := os.Stat(b.tty); err != nil {
		return err
	}
	// #nosec G304 -- the console device path comes from operator configuration
	f, err := os.OpenFile(b.tty, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = f.WriteString(ttyBlankSequence)
	return err
}

// consoleBlank sets the console blank timeout to one second. sudo -n keeps a
// missing sudoers entry from hanging on a password prompt.
func (b *Blanker) consoleBlank(ctx context.Context) error {
	_, err := b.runner.Run(ctx, "sudo", "-n", "sh", "-c", "echo 1 > /sys/module/kernel/parameters/consoleblank")
	return err
}
