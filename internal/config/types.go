// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads, validates, persists and hot-reloads the controller
// configuration.
package config

import (
	"slices"
	"time"
)

// AppConfig is the effective configuration after defaults, file and
// environment have been merged.
type AppConfig struct {
	Version  string
	LogLevel string
	Listen   string

	MediaDir      string
	MaxUploadSize int64

	// Runtime-applicable playback settings.
	Volume          int
	Loop            bool
	HardwareAccel   bool
	HDMIOutput      string
	AudioInHeadless bool

	Player    PlayerConfig
	Blank     BlankConfig
	Telemetry TelemetryConfig
	API       APIConfig
}

// PlayerConfig tunes the player process and its IPC socket.
type PlayerConfig struct {
	Binary         string
	Socket         string
	SettleDelay    time.Duration
	QuitGrace      time.Duration
	KillTimeout    time.Duration
	PollInterval   time.Duration
	IPCDialTimeout time.Duration
	IPCReadTimeout time.Duration
	SafeMode       string
	AudioResync    bool
	ExtraArgs      []string
}

// BlankConfig controls the display blanking side effect after stop.
type BlankConfig struct {
	Enabled bool
	TTY     string
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	Environment  string
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	RateLimit      int // requests per minute per client IP on mutating routes, 0 disables
	MaxConnections int // 0 means unbounded
	AllowedOrigins []string
}

// Clone returns a deep copy of cfg.
func (cfg AppConfig) Clone() AppConfig {
	out := cfg
	out.Player.ExtraArgs = slices.Clone(cfg.Player.ExtraArgs)
	out.API.AllowedOrigins = slices.Clone(cfg.API.AllowedOrigins)
	return out
}

// FileConfig is the on-disk YAML representation. Pointer fields distinguish
// "unset" from the zero value so defaults survive partial files.
type FileConfig struct {
	LogLevel        string `yaml:"log_level,omitempty"`
	Listen          string `yaml:"listen,omitempty"`
	MediaDir        string `yaml:"media_dir,omitempty"`
	MaxUploadSize   *int64 `yaml:"max_upload_size,omitempty"`
	Volume          *int   `yaml:"volume,omitempty"`
	Loop            *bool  `yaml:"loop,omitempty"`
	HardwareAccel   *bool  `yaml:"hardware_accel,omitempty"`
	HDMIOutput      string `yaml:"hdmi_output,omitempty"`
	AudioInHeadless *bool  `yaml:"audio_in_headless,omitempty"`

	Player    PlayerFileConfig    `yaml:"player,omitempty"`
	Blank     BlankFileConfig     `yaml:"blank,omitempty"`
	Telemetry TelemetryFileConfig `yaml:"telemetry,omitempty"`
	API       APIFileConfig       `yaml:"api,omitempty"`
}

// PlayerFileConfig holds the player section. Durations use Go syntax ("500ms").
type PlayerFileConfig struct {
	Binary         string   `yaml:"binary,omitempty"`
	Socket         string   `yaml:"socket,omitempty"`
	SettleDelay    string   `yaml:"settle_delay,omitempty"`
	QuitGrace      string   `yaml:"quit_grace,omitempty"`
	KillTimeout    string   `yaml:"kill_timeout,omitempty"`
	PollInterval   string   `yaml:"poll_interval,omitempty"`
	IPCDialTimeout string   `yaml:"ipc_dial_timeout,omitempty"`
	IPCReadTimeout string   `yaml:"ipc_read_timeout,omitempty"`
	SafeMode       *string  `yaml:"safe_mode,omitempty"`
	AudioResync    *bool    `yaml:"audio_resync,omitempty"`
	ExtraArgs      []string `yaml:"extra_args,omitempty"`
}

// BlankFileConfig holds the blank section.
type BlankFileConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	TTY     string `yaml:"tty,omitempty"`
}

// TelemetryFileConfig holds the telemetry section.
type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"sampling_rate,omitempty"`
}

// APIFileConfig holds the api section.
type APIFileConfig struct {
	RateLimit      *int     `yaml:"rate_limit,omitempty"`
	MaxConnections *int     `yaml:"max_connections,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}
