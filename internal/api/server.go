// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves the HTTP control surface of the player.
package api

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/ManuGH/headless-mpv/internal/api/middleware"
	"github.com/ManuGH/headless-mpv/internal/config"
	"github.com/ManuGH/headless-mpv/internal/health"
	"github.com/ManuGH/headless-mpv/internal/library"
	"github.com/ManuGH/headless-mpv/internal/log"
	"github.com/ManuGH/headless-mpv/internal/player"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Player is the playback session driven by the API.
type Player interface {
	Play(ctx context.Context, file string) player.Result
	Pause(ctx context.Context) player.Result
	Resume(ctx context.Context) player.Result
	Stop(ctx context.Context) player.Result
	Seek(ctx context.Context, position float64) player.Result
	Skip(ctx context.Context, delta float64) player.Result
	SetVolume(ctx context.Context, level int) player.Result
	SetOutput(ctx context.Context, preference string) player.Result
	Status(ctx context.Context) player.Status
	Outputs() []player.OutputStatus
	CurrentFile() string
}

// Library is the media directory.
type Library interface {
	List() ([]library.Item, error)
	Lookup(name string) (string, error)
	Save(name string, r io.Reader, limit int64) (string, error)
	Delete(name string) error
}

// ConfigStore reads and persists the configuration.
type ConfigStore interface {
	Get() config.AppConfig
	Update(ctx context.Context, fn func(*config.AppConfig)) (config.AppConfig, error)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Player  Player
	Library Library
	Config  ConfigStore
	Health  *health.Manager

	// Hostname is reported in the status body. Defaults to os.Hostname.
	Hostname string
	// TracingService enables otelhttp spans under this service name.
	TracingService string
}

// Server holds the HTTP handlers.
type Server struct {
	player   Player
	library  Library
	config   ConfigStore
	health   *health.Manager
	hostname string
	logger   zerolog.Logger
	router   chi.Router
}

// New builds the server and its routes.
func New(deps Deps) *Server {
	s := &Server{
		player:   deps.Player,
		library:  deps.Library,
		config:   deps.Config,
		health:   deps.Health,
		hostname: deps.Hostname,
		logger:   log.WithComponent("api"),
	}
	if s.hostname == "" {
		s.hostname, _ = os.Hostname()
	}
	if s.health == nil {
		s.health = health.NewManager("")
	}

	cfg := s.config.Get()
	r := middleware.NewRouter(middleware.StackConfig{
		AllowedOrigins: cfg.API.AllowedOrigins,
		EnableMetrics:  true,
		TracingService: deps.TracingService,
		EnableLogging:  true,
	})
	s.routes(r, cfg.API.RateLimit)
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(r chi.Router, rateLimit int) {
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/files", s.handleListFiles)
		r.Get("/config", s.handleGetConfig)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ControlRateLimit(rateLimit))

			r.Post("/play", s.handlePlay)
			r.Post("/pause", s.handlePause)
			r.Post("/stop", s.handleStop)
			r.Post("/seek", s.handleSeek)
			r.Post("/skip", s.handleSkip)
			r.Post("/volume", s.handleVolume)
			r.Post("/hdmi", s.handleOutput)
			r.Post("/upload", s.handleUpload)
			r.Delete("/files/{name}", s.handleDeleteFile)
			r.Post("/config", s.handleSetConfig)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.health.Health(r.Context(), true))
}
