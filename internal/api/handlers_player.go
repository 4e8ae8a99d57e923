// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"math"
	"net/http"

	"github.com/ManuGH/headless-mpv/internal/config"
	"github.com/ManuGH/headless-mpv/internal/library"
	"github.com/ManuGH/headless-mpv/internal/log"
	"github.com/ManuGH/headless-mpv/internal/player"
)

const defaultSkipSeconds = 30

type statusResponse struct {
	player.Status
	PositionFormatted string `json:"position_formatted"`
	DurationFormatted string `json:"duration_formatted"`
	Hostname          string `json:"hostname"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.player.Status(r.Context())
	writeJSON(w, r, http.StatusOK, statusResponse{
		Status:            st,
		PositionFormatted: player.FormatTime(st.Position),
		DurationFormatted: player.FormatTime(st.Duration),
		Hostname:          s.hostname,
	})
}

// resultCode maps a failed operation to 409 when there was no session to act
// on and 500 when the player did not respond.
func (s *Server) resultCode(r *http.Request, res player.Result) int {
	if res.OK {
		return http.StatusOK
	}
	if s.player.Status(r.Context()).State == player.StateStopped {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		File string `json:"file"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "%v", err)
		return
	}

	if req.File == "" {
		res := s.player.Resume(r.Context())
		writeResult(w, r, s.resultCode(r, res), res.OK, res.Message, nil)
		return
	}

	path, err := s.library.Lookup(req.File)
	switch {
	case errors.Is(err, library.ErrInvalidName):
		writeError(w, r, http.StatusBadRequest, "Invalid file name")
		return
	case err != nil:
		writeError(w, r, http.StatusNotFound, "File not found")
		return
	}

	res := s.player.Play(r.Context(), path)
	code := http.StatusOK
	if !res.OK {
		code = http.StatusInternalServerError
	}
	writeResult(w, r, code, res.OK, res.Message, nil)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	res := s.player.Pause(r.Context())
	writeResult(w, r, s.resultCode(r, res), res.OK, res.Message, nil)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	res := s.player.Stop(r.Context())
	writeResult(w, r, http.StatusOK, res.OK, res.Message, nil)
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position float64 `json:"position"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "%v", err)
		return
	}
	res := s.player.Seek(r.Context(), req.Position)
	writeResult(w, r, s.resultCode(r, res), res.OK, res.Message, map[string]any{
		"position": s.player.Status(r.Context()).Position,
	})
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Seconds float64 `json:"seconds"`
	}{Seconds: defaultSkipSeconds}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "%v", err)
		return
	}
	res := s.player.Skip(r.Context(), req.Seconds)
	pos := s.player.Status(r.Context()).Position
	writeResult(w, r, s.resultCode(r, res), res.OK, res.Message, map[string]any{
		"new_position":           pos,
		"new_position_formatted": player.FormatTime(pos),
	})
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Level float64 `json:"level"`
	}{Level: 100}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "%v", err)
		return
	}
	if math.IsNaN(req.Level) {
		writeError(w, r, http.StatusBadRequest, "Invalid volume level")
		return
	}
	// Clamp before converting: out-of-range float to int conversion is implementation-specific.
	level := int(math.Max(0, math.Min(100, req.Level)))

	res := s.player.SetVolume(r.Context(), level)
	if res.OK {
		s.persist(r, "volume", func(c *config.AppConfig) { c.Volume = level })
	}
	writeResult(w, r, s.resultCode(r, res), res.OK, res.Message, map[string]any{
		"level": level,
	})
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Output string `json:"output"`
	}{Output: config.DefaultHDMIOutput}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "%v", err)
		return
	}
	if !config.ValidOutput(req.Output) {
		writeError(w, r, http.StatusBadRequest, "Unknown output %q", req.Output)
		return
	}

	res := s.player.SetOutput(r.Context(), req.Output)
	if res.OK {
		s.persist(r, "hdmi_output", func(c *config.AppConfig) { c.HDMIOutput = req.Output })
	}
	writeResult(w, r, s.resultCode(r, res), res.OK, res.Message, map[string]any{
		"output":  req.Output,
		"outputs": s.player.Outputs(),
	})
}

// persist saves a setting that has already been applied to the session. A
// failed save is logged; the live change stands.
func (s *Server) persist(r *http.Request, key string, fn func(*config.AppConfig)) {
	if _, err := s.config.Update(r.Context(), fn); err != nil {
		logger := log.WithContext(r.Context(), s.logger)
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "api.persist_failed").
			Str("key", key).
			Msg("failed to persist setting")
	}
}
