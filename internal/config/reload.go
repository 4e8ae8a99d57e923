// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/ManuGH/headless-mpv/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// Holder holds the current configuration and swaps it atomically on reload.
type Holder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	manager *Manager
	logger  zerolog.Logger

	debounce time.Duration

	listenersMu sync.RWMutex
	listeners   []chan<- AppConfig
}

// NewHolder creates a holder. manager may be nil, in which case Update keeps
// changes in memory only.
func NewHolder(initial AppConfig, loader *Loader, manager *Manager) *Holder {
	return &Holder{
		current:  initial.Clone(),
		loader:   loader,
		manager:  manager,
		logger:   log.WithComponent("config"),
		debounce: reloadDebounce,
	}
}

// Get returns a copy of the current configuration.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Clone()
}

// Reload re-reads and validates the configuration. On failure the old
// configuration is kept and the error returned.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str(log.FieldEvent, "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str(log.FieldEvent, "config.reload_failed").
			Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.swap(newCfg)
	h.logger.Info().
		Str(log.FieldEvent, "config.reload_success").
		Msg("configuration reloaded successfully")
	return nil
}

// Update applies fn to a copy of the current configuration, validates it,
// persists it and makes it current.
func (h *Holder) Update(_ context.Context, fn func(*AppConfig)) (AppConfig, error) {
	h.mu.Lock()
	next := h.current.Clone()
	fn(&next)
	if err := Validate(next); err != nil {
		h.mu.Unlock()
		return AppConfig{}, err
	}
	if h.manager != nil {
		if err := h.manager.Save(next); err != nil {
			h.mu.Unlock()
			return AppConfig{}, fmt.Errorf("save config: %w", err)
		}
	}
	old := h.current
	h.current = next
	h.mu.Unlock()

	h.logChanges(old, next)
	h.notifyListeners(next.Clone())
	return next.Clone(), nil
}

func (h *Holder) swap(newCfg AppConfig) {
	h.mu.Lock()
	old := h.current
	h.current = newCfg.Clone()
	h.mu.Unlock()

	h.notifyListeners(newCfg.Clone())
	h.logChanges(old, newCfg)
}

// Watch reloads on changes to the config file until ctx is done. The parent
// directory is watched so atomic replacements are seen. Without a config
// file Watch just waits for ctx.
func (h *Holder) Watch(ctx context.Context) error {
	path := h.loader.ConfigPath()
	if path == "" {
		h.logger.Info().
			Str(log.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		<-ctx.Done()
		return nil
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	h.logger.Info().
		Str(log.FieldEvent, "config.watcher_started").
		Str(log.FieldPath, path).
		Msg("watching config file for changes")

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(log.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			h.logger.Debug().
				Str(log.FieldEvent, "config.file_changed").
				Str("op", event.Op.String()).
				Msg("config file changed")
			if timer == nil {
				timer = time.NewTimer(h.debounce)
			} else {
				timer.Reset(h.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			if err := h.Reload(ctx); err != nil {
				h.logger.Error().
					Err(err).
					Str(log.FieldEvent, "config.auto_reload_failed").
					Msg("automatic config reload failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Error().
				Err(err).
				Str(log.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// RegisterListener registers a channel that receives every new
// configuration. Sends never block; a full channel misses the update.
func (h *Holder) RegisterListener(ch chan<- AppConfig) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notifyListeners(cfg AppConfig) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()

	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().
				Str(log.FieldEvent, "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

func (h *Holder) logChanges(old, newCfg AppConfig) {
	logInt := func(key string, a, b int) {
		if a != b {
			h.logger.Info().Int("old", a).Int("new", b).Msgf("config changed: %s", key)
		}
	}
	logBool := func(key string, a, b bool) {
		if a != b {
			h.logger.Info().Bool("old", a).Bool("new", b).Msgf("config changed: %s", key)
		}
	}
	logStr := func(key, a, b string) {
		if a != b {
			h.logger.Info().Str("old", a).Str("new", b).Msgf("config changed: %s", key)
		}
	}

	logInt("volume", old.Volume, newCfg.Volume)
	logBool("loop", old.Loop, newCfg.Loop)
	logBool("hardware_accel", old.HardwareAccel, newCfg.HardwareAccel)
	logStr("hdmi_output", old.HDMIOutput, newCfg.HDMIOutput)
	logBool("audio_in_headless", old.AudioInHeadless, newCfg.AudioInHeadless)
	logBool("player.audio_resync", old.Player.AudioResync, newCfg.Player.AudioResync)
	logStr("media_dir", old.MediaDir, newCfg.MediaDir)
	logStr("log_level", old.LogLevel, newCfg.LogLevel)

	if old.Listen != newCfg.Listen || old.Player.Binary != newCfg.Player.Binary ||
		old.Player.Socket != newCfg.Player.Socket || !slices.Equal(old.Player.ExtraArgs, newCfg.Player.ExtraArgs) {
		h.logger.Warn().
			Str(log.FieldEvent, "config.restart_required").
			Msg("listen address or player process settings changed; restart to apply")
	}
}
