// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for a fresh install.
const (
	DefaultListen        = ":5000"
	DefaultMediaDir      = "~/videos"
	DefaultMaxUploadSize = int64(2) << 30
	DefaultVolume        = 100
	DefaultHDMIOutput    = "auto"
	DefaultBinary        = "mpv"
	DefaultSocket        = "/tmp/mpvsocket"
	DefaultSafeMode      = "1920x1080"
	DefaultBlankTTY      = "/dev/tty1"
)

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:        "info",
		Listen:          DefaultListen,
		MediaDir:        DefaultMediaDir,
		MaxUploadSize:   DefaultMaxUploadSize,
		Volume:          DefaultVolume,
		Loop:            false,
		HardwareAccel:   true,
		HDMIOutput:      DefaultHDMIOutput,
		AudioInHeadless: true,
		Player: PlayerConfig{
			Binary:         DefaultBinary,
			Socket:         DefaultSocket,
			SettleDelay:    time.Second,
			QuitGrace:      500 * time.Millisecond,
			KillTimeout:    2 * time.Second,
			PollInterval:   500 * time.Millisecond,
			IPCDialTimeout: time.Second,
			IPCReadTimeout: 500 * time.Millisecond,
			SafeMode:       DefaultSafeMode,
			AudioResync:    true,
		},
		Blank: BlankConfig{
			Enabled: true,
			TTY:     DefaultBlankTTY,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		API: APIConfig{
			RateLimit:      120,
			MaxConnections: 64,
		},
	}
}

// Loader handles configuration loading with precedence ENV > file > defaults.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty configPath skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// ConfigPath returns the file the loader reads, if any.
func (l *Loader) ConfigPath() string { return l.configPath }

func (l *Loader) env(key string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return key
}

// Load parses the file strictly, applies the environment and validates the
// result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFile(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	mediaDir, err := expandHome(cfg.MediaDir)
	if err != nil {
		return cfg, fmt.Errorf("resolve media_dir: %w", err)
	}
	cfg.MediaDir = mediaDir
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile reads path with strict YAML decoding. A missing file yields an
// empty FileConfig so a first run can create it on save.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- the path is provided by the operator via flag or env
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFile(cfg *AppConfig, f *FileConfig) error {
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.Listen, f.Listen)
	setString(&cfg.MediaDir, f.MediaDir)
	setPtr(&cfg.MaxUploadSize, f.MaxUploadSize)
	setPtr(&cfg.Volume, f.Volume)
	setPtr(&cfg.Loop, f.Loop)
	setPtr(&cfg.HardwareAccel, f.HardwareAccel)
	setString(&cfg.HDMIOutput, f.HDMIOutput)
	setPtr(&cfg.AudioInHeadless, f.AudioInHeadless)

	p := &cfg.Player
	setString(&p.Binary, f.Player.Binary)
	setString(&p.Socket, f.Player.Socket)
	setPtr(&p.SafeMode, f.Player.SafeMode)
	setPtr(&p.AudioResync, f.Player.AudioResync)
	if f.Player.ExtraArgs != nil {
		p.ExtraArgs = f.Player.ExtraArgs
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"player.settle_delay", f.Player.SettleDelay, &p.SettleDelay},
		{"player.quit_grace", f.Player.QuitGrace, &p.QuitGrace},
		{"player.kill_timeout", f.Player.KillTimeout, &p.KillTimeout},
		{"player.poll_interval", f.Player.PollInterval, &p.PollInterval},
		{"player.ipc_dial_timeout", f.Player.IPCDialTimeout, &p.IPCDialTimeout},
		{"player.ipc_read_timeout", f.Player.IPCReadTimeout, &p.IPCReadTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}

	setPtr(&cfg.Blank.Enabled, f.Blank.Enabled)
	setString(&cfg.Blank.TTY, f.Blank.TTY)

	t := &cfg.Telemetry
	setPtr(&t.Enabled, f.Telemetry.Enabled)
	setString(&t.Environment, f.Telemetry.Environment)
	setString(&t.Exporter, f.Telemetry.Exporter)
	setString(&t.Endpoint, f.Telemetry.Endpoint)
	setPtr(&t.SamplingRate, f.Telemetry.SamplingRate)

	setPtr(&cfg.API.RateLimit, f.API.RateLimit)
	setPtr(&cfg.API.MaxConnections, f.API.MaxConnections)
	if f.API.AllowedOrigins != nil {
		cfg.API.AllowedOrigins = f.API.AllowedOrigins
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString(l.env("LOG_LEVEL"), cfg.LogLevel)
	cfg.Listen = ParseString(l.env("LISTEN"), cfg.Listen)
	cfg.MediaDir = ParseString(l.env("MEDIA_DIR"), cfg.MediaDir)
	cfg.MaxUploadSize = ParseInt64(l.env("MAX_UPLOAD_SIZE"), cfg.MaxUploadSize)
	cfg.Volume = ParseInt(l.env("VOLUME"), cfg.Volume)
	cfg.Loop = ParseBool(l.env("LOOP"), cfg.Loop)
	cfg.HardwareAccel = ParseBool(l.env("HARDWARE_ACCEL"), cfg.HardwareAccel)
	cfg.HDMIOutput = ParseString(l.env("HDMI_OUTPUT"), cfg.HDMIOutput)
	cfg.AudioInHeadless = ParseBool(l.env("AUDIO_IN_HEADLESS"), cfg.AudioInHeadless)

	p := &cfg.Player
	p.Binary = ParseString(l.env("MPV_BINARY"), p.Binary)
	p.Socket = ParseString(l.env("SOCKET"), p.Socket)
	p.SettleDelay = ParseDuration(l.env("SETTLE_DELAY"), p.SettleDelay)
	p.QuitGrace = ParseDuration(l.env("QUIT_GRACE"), p.QuitGrace)
	p.KillTimeout = ParseDuration(l.env("KILL_TIMEOUT"), p.KillTimeout)
	p.PollInterval = ParseDuration(l.env("POLL_INTERVAL"), p.PollInterval)
	p.IPCDialTimeout = ParseDuration(l.env("IPC_DIAL_TIMEOUT"), p.IPCDialTimeout)
	p.IPCReadTimeout = ParseDuration(l.env("IPC_READ_TIMEOUT"), p.IPCReadTimeout)
	p.SafeMode = ParseString(l.env("SAFE_MODE"), p.SafeMode)
	p.AudioResync = ParseBool(l.env("AUDIO_RESYNC"), p.AudioResync)
	p.ExtraArgs = ParseList(l.env("MPV_EXTRA_ARGS"), p.ExtraArgs)

	cfg.Blank.Enabled = ParseBool(l.env("BLANK"), cfg.Blank.Enabled)
	cfg.Blank.TTY = ParseString(l.env("BLANK_TTY"), cfg.Blank.TTY)

	t := &cfg.Telemetry
	t.Enabled = ParseBool(l.env("TRACING_ENABLED"), t.Enabled)
	t.Environment = ParseString(l.env("TRACING_ENVIRONMENT"), t.Environment)
	t.Exporter = ParseString(l.env("TRACING_EXPORTER"), t.Exporter)
	t.Endpoint = ParseString(l.env("TRACING_ENDPOINT"), t.Endpoint)
	t.SamplingRate = ParseFloat(l.env("TRACING_SAMPLING_RATE"), t.SamplingRate)

	cfg.API.RateLimit = ParseInt(l.env("RATE_LIMIT"), cfg.API.RateLimit)
	cfg.API.MaxConnections = ParseInt(l.env("MAX_CONNECTIONS"), cfg.API.MaxConnections)
	cfg.API.AllowedOrigins = ParseList(l.env("CORS_ORIGINS"), cfg.API.AllowedOrigins)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
