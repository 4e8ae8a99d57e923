// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/ManuGH/headless-mpv/internal/validate"
)

var hdmiOutputRe = regexp.MustCompile(`^HDMI-A-\d+$`)

// ValidOutput reports whether name is "auto" or a DRM HDMI connector name.
func ValidOutput(name string) bool {
	return name == DefaultHDMIOutput || hdmiOutputRe.MatchString(name)
}

// Validate checks cfg. The media directory is created if it does not exist.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.LogLevel("log_level", cfg.LogLevel)
	v.ListenAddr("listen", cfg.Listen)

	v.Directory("media_dir", cfg.MediaDir, false)
	v.Positive("max_upload_size", cfg.MaxUploadSize)

	v.Range("volume", cfg.Volume, 0, 100)
	if !ValidOutput(cfg.HDMIOutput) {
		v.AddError("hdmi_output", fmt.Sprintf("must be %q or a connector like HDMI-A-1, got %q", DefaultHDMIOutput, cfg.HDMIOutput), cfg.HDMIOutput)
	}

	p := cfg.Player
	v.NotEmpty("player.binary", p.Binary)
	v.AbsolutePath("player.socket", p.Socket)
	v.VideoMode("player.safe_mode", p.SafeMode)
	v.DurationRange("player.settle_delay", p.SettleDelay, 0, 30*time.Second)
	v.DurationRange("player.quit_grace", p.QuitGrace, 0, 30*time.Second)
	v.DurationRange("player.kill_timeout", p.KillTimeout, 100*time.Millisecond, 30*time.Second)
	v.DurationRange("player.poll_interval", p.PollInterval, 50*time.Millisecond, time.Minute)
	v.DurationRange("player.ipc_dial_timeout", p.IPCDialTimeout, 10*time.Millisecond, 30*time.Second)
	v.DurationRange("player.ipc_read_timeout", p.IPCReadTimeout, 10*time.Millisecond, 30*time.Second)

	if cfg.Blank.Enabled {
		v.AbsolutePath("blank.tty", cfg.Blank.TTY)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("telemetry.sampling_rate", fmt.Sprintf("must be between 0 and 1, got %g", cfg.Telemetry.SamplingRate), cfg.Telemetry.SamplingRate)
		}
	}

	v.NonNegative("api.rate_limit", cfg.API.RateLimit)
	v.NonNegative("api.max_connections", cfg.API.MaxConnections)

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
