// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// Manager handles configuration persistence.
type Manager struct {
	configPath string
}

// NewManager creates a new configuration manager.
func NewManager(configPath string) *Manager {
	return &Manager{configPath: configPath}
}

// Path returns the file Save writes.
func (m *Manager) Path() string { return m.configPath }

// Save writes cfg to disk atomically. Readers and the file watcher only ever
// see the old or the new document.
func (m *Manager) Save(cfg AppConfig) error {
	if m.configPath == "" {
		return ErrNoConfigPath
	}
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o750); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	pf, err := renameio.NewPendingFile(m.configPath,
		renameio.WithPermissions(0o600),
		renameio.WithExistingPermissions(),
	)
	if err != nil {
		return fmt.Errorf("create pending config file: %w", err)
	}
	defer func() { _ = pf.Cleanup() }()

	enc := yaml.NewEncoder(pf)
	enc.SetIndent(2)
	if err := enc.Encode(ToFile(cfg)); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close encoder: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}

// ToFile maps cfg back to its YAML form. Every key is written so the file
// documents the effective configuration.
func ToFile(cfg AppConfig) FileConfig {
	p := cfg.Player
	return FileConfig{
		LogLevel:        cfg.LogLevel,
		Listen:          cfg.Listen,
		MediaDir:        cfg.MediaDir,
		MaxUploadSize:   ptr(cfg.MaxUploadSize),
		Volume:          ptr(cfg.Volume),
		Loop:            ptr(cfg.Loop),
		HardwareAccel:   ptr(cfg.HardwareAccel),
		HDMIOutput:      cfg.HDMIOutput,
		AudioInHeadless: ptr(cfg.AudioInHeadless),
		Player: PlayerFileConfig{
			Binary:         p.Binary,
			Socket:         p.Socket,
			SettleDelay:    p.SettleDelay.String(),
			QuitGrace:      p.QuitGrace.String(),
			KillTimeout:    p.KillTimeout.String(),
			PollInterval:   p.PollInterval.String(),
			IPCDialTimeout: p.IPCDialTimeout.String(),
			IPCReadTimeout: p.IPCReadTimeout.String(),
			SafeMode:       ptr(p.SafeMode),
			AudioResync:    ptr(p.AudioResync),
			ExtraArgs:      p.ExtraArgs,
		},
		Blank: BlankFileConfig{
			Enabled: ptr(cfg.Blank.Enabled),
			TTY:     cfg.Blank.TTY,
		},
		Telemetry: TelemetryFileConfig{
			Enabled:      ptr(cfg.Telemetry.Enabled),
			Environment:  cfg.Telemetry.Environment,
			Exporter:     cfg.Telemetry.Exporter,
			Endpoint:     cfg.Telemetry.Endpoint,
			SamplingRate: ptr(cfg.Telemetry.SamplingRate),
		},
		API: APIFileConfig{
			RateLimit:      ptr(cfg.API.RateLimit),
			MaxConnections: ptr(cfg.API.MaxConnections),
			AllowedOrigins: cfg.API.AllowedOrigins,
		},
	}
}

func ptr[T any](v T) *T { return &v }
