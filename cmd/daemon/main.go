// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ManuGH/headless-mpv/internal/api"
	"github.com/ManuGH/headless-mpv/internal/config"
	"github.com/ManuGH/headless-mpv/internal/daemon"
	"github.com/ManuGH/headless-mpv/internal/health"
	"github.com/ManuGH/headless-mpv/internal/ipc"
	"github.com/ManuGH/headless-mpv/internal/library"
	xglog "github.com/ManuGH/headless-mpv/internal/log"
	"github.com/ManuGH/headless-mpv/internal/output"
	"github.com/ManuGH/headless-mpv/internal/player"
	"github.com/ManuGH/headless-mpv/internal/supervisor"
	"github.com/ManuGH/headless-mpv/internal/telemetry"
	"github.com/ManuGH/headless-mpv/internal/version"
)

const serviceName = "headless-mpv"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:], os.Stdout, os.Stderr))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: serviceName,
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := resolveConfigPath(*configPath)
	if err := run(ctx, path); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Str("config_path", path).
			Msg("daemon exited with error")
	}
}

// resolveConfigPath picks the config file: -config, then MPVCTL_CONFIG, then
// the per-user config directory.
func resolveConfigPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(config.ParseString(config.EnvPrefix+"CONFIG", "")); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, serviceName, "config.yaml")
}

func run(ctx context.Context, configPath string) error {
	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: serviceName,
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.Listen).
		Str("config_path", configPath).
		Msg("starting " + serviceName)
	logger.Info().Msgf("→ Media dir: %s (max upload %d bytes)", cfg.MediaDir, cfg.MaxUploadSize)
	logger.Info().Msgf("→ Player: %s (socket %s, hwdec %v)", cfg.Player.Binary, cfg.Player.Socket, cfg.HardwareAccel)
	logger.Info().Msgf("→ Output: %s (volume %d, loop %v)", cfg.HDMIOutput, cfg.Volume, cfg.Loop)

	// The watcher needs the directory even before the first save.
	if configPath != "" {
		if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
			logger.Warn().Err(err).Str("event", "config.dir_unavailable").Msg("config directory unavailable, hot reload disabled")
		}
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	resolver := output.NewResolver(output.Config{})
	blanker := output.NewBlanker(output.BlankConfig{
		Enabled: cfg.Blank.Enabled,
		TTY:     cfg.Blank.TTY,
	})
	client := ipc.NewClient(ipc.Config{
		SocketPath:  cfg.Player.Socket,
		DialTimeout: cfg.Player.IPCDialTimeout,
		ReadTimeout: cfg.Player.IPCReadTimeout,
	})
	sup := supervisor.New(supervisor.Config{
		Binary:          cfg.Player.Binary,
		SocketPath:      cfg.Player.Socket,
		SafeMode:        cfg.Player.SafeMode,
		HardwareAccel:   cfg.HardwareAccel,
		AudioInHeadless: cfg.AudioInHeadless,
		SettleDelay:     cfg.Player.SettleDelay,
		Grace:           cfg.Player.QuitGrace,
		KillTimeout:     cfg.Player.KillTimeout,
		ExtraArgs:       cfg.Player.ExtraArgs,
	}, client, blanker)
	ctrl := player.New(player.Config{
		Volume:       cfg.Volume,
		Output:       cfg.HDMIOutput,
		PollInterval: cfg.Player.PollInterval,
		Settings: player.Settings{
			Loop:            cfg.Loop,
			AudioResync:     cfg.Player.AudioResync,
			HardwareAccel:   cfg.HardwareAccel,
			AudioInHeadless: cfg.AudioInHeadless,
		},
	}, resolver, player.SupervisorLauncher(sup), client)

	holder := config.NewHolder(cfg, loader, config.NewManager(configPath))

	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.NewBinaryChecker(cfg.Player.Binary))
	hm.RegisterChecker(health.NewDirectoryChecker(cfg.MediaDir))
	hm.RegisterChecker(health.NewSessionChecker(ctrl, client))

	tracingService := ""
	if tp.Enabled() {
		tracingService = serviceName
	}
	srv := api.New(api.Deps{
		Player:         ctrl,
		Library:        library.New(cfg.MediaDir),
		Config:         holder,
		Health:         hm,
		TracingService: tracingService,
	})

	mgr, err := daemon.NewManager(
		daemon.DefaultServerConfig(cfg.Listen, cfg.API.MaxConnections),
		daemon.Deps{APIHandler: srv.Handler()},
	)
	if err != nil {
		return err
	}
	// LIFO: playback is stopped before the last spans are flushed.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("player", func(ctx context.Context) error {
		ctrl.Close(ctx)
		return nil
	})

	return daemon.NewApp(mgr, ctrl, holder).Run(ctx)
}
