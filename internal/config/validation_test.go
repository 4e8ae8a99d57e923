// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{name: "defaults", mutate: func(*AppConfig) {}},
		{name: "connector output", mutate: func(c *AppConfig) { c.HDMIOutput = "HDMI-A-2" }},
		{name: "volume too high", mutate: func(c *AppConfig) { c.Volume = 101 }, field: "volume"},
		{name: "unknown output", mutate: func(c *AppConfig) { c.HDMIOutput = "DP-1" }, field: "hdmi_output"},
		{name: "bad listen", mutate: func(c *AppConfig) { c.Listen = "5000" }, field: "listen"},
		{name: "upload size", mutate: func(c *AppConfig) { c.MaxUploadSize = 0 }, field: "max_upload_size"},
		{name: "relative socket", mutate: func(c *AppConfig) { c.Player.Socket = "mpvsocket" }, field: "player.socket"},
		{name: "empty binary", mutate: func(c *AppConfig) { c.Player.Binary = "" }, field: "player.binary"},
		{name: "bad safe mode", mutate: func(c *AppConfig) { c.Player.SafeMode = "hd" }, field: "player.safe_mode"},
		{name: "poll too fast", mutate: func(c *AppConfig) { c.Player.PollInterval = time.Millisecond }, field: "player.poll_interval"},
		{name: "blank tty ignored when disabled", mutate: func(c *AppConfig) { c.Blank.Enabled = false; c.Blank.TTY = "" }},
		{name: "bad exporter", mutate: func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "zipkin"
		}, field: "telemetry.exporter"},
		{name: "bad sampling", mutate: func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.SamplingRate = 2
		}, field: "telemetry.sampling_rate"},
		{name: "bad log level", mutate: func(c *AppConfig) { c.LogLevel = "chatty" }, field: "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
