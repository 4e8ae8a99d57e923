// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon runs the long-lived parts of the controller: the HTTP server,
// the player reconciliation loop and config reload.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/headless-mpv/internal/config"
	"github.com/ManuGH/headless-mpv/internal/log"
	"github.com/ManuGH/headless-mpv/internal/player"
	"github.com/rs/zerolog"
)

// Session is the player session owned by the daemon.
type Session interface {
	Run(ctx context.Context) error
	Status(ctx context.Context) player.Status
	Settings() player.Settings
	ApplySettings(s player.Settings)
	SetVolume(ctx context.Context, level int) player.Result
	SetOutput(ctx context.Context, preference string) player.Result
}

// ConfigSource is the reloadable configuration.
type ConfigSource interface {
	Reload(ctx context.Context) error
	Watch(ctx context.Context) error
	RegisterListener(ch chan<- config.AppConfig)
}

// App owns the runtime lifecycle (reconciliation loop, config watcher, reload
// wiring) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	session      Session
	cfg          ConfigSource
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfg may be nil to disable reloads.
func NewApp(manager Manager, session Session, cfg ConfigSource) *App {
	return &App{
		logger:       log.WithComponent("daemon"),
		manager:      manager,
		session:      session,
		cfg:          cfg,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned subsystems and blocks until ctx is canceled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.session == nil {
		return ErrMissingSession
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.session.Run(ctx)
	})

	if a.cfg != nil {
		applyCh := make(chan config.AppConfig, 1)
		a.cfg.RegisterListener(applyCh)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apply(ctx, cfg)
				}
			}
		})

		// The watcher is best-effort: a missing directory only disables it.
		g.Go(func() error {
			if err := a.cfg.Watch(ctx); err != nil {
				a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_failed").Msg("config watcher stopped")
			}
			return nil
		})

		if a.reloadSignal != nil {
			g.Go(func() error {
				hupChan := make(chan os.Signal, 1)
				signal.Notify(hupChan, a.reloadSignal)
				defer signal.Stop(hupChan)

				for {
					select {
					case <-ctx.Done():
						return nil
					case <-hupChan:
						a.logger.Info().
							Str(log.FieldEvent, "config.reload_signal").
							Str("signal", a.reloadSignal.String()).
							Msg("received reload signal, reloading config")
						if err := a.cfg.Reload(ctx); err != nil {
							a.logger.Warn().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("config reload failed")
						}
					}
				}
			})
		}
	}

	g.Go(func() error {
		return a.manager.Start(ctx)
	})

	return g.Wait()
}

// apply brings the live session in line with cfg. Values already in effect are
// skipped, so a change made through the API is not applied twice.
func (a *App) apply(ctx context.Context, cfg config.AppConfig) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" && lvl != zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(lvl)
		a.logger.Info().Str(log.FieldEvent, "log.level_changed").Str("level", lvl.String()).Msg("log level updated")
	}

	want := player.Settings{
		Loop:            cfg.Loop,
		AudioResync:     cfg.Player.AudioResync,
		HardwareAccel:   cfg.HardwareAccel,
		AudioInHeadless: cfg.AudioInHeadless,
	}
	if a.session.Settings() != want {
		a.session.ApplySettings(want)
	}

	st := a.session.Status(ctx)
	if st.Volume != cfg.Volume {
		if res := a.session.SetVolume(ctx, cfg.Volume); !res.OK {
			a.logger.Warn().Str(log.FieldEvent, "config.apply_failed").Str("key", "volume").Msg(res.Message)
		}
	}
	if st.OutputPreference != cfg.HDMIOutput {
		if res := a.session.SetOutput(ctx, cfg.HDMIOutput); !res.OK {
			a.logger.Warn().Str(log.FieldEvent, "config.apply_failed").Str("key", "hdmi_output").Msg(res.Message)
		}
	}
}
