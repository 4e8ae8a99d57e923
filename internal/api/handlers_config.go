// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"net/http"

	"github.com/ManuGH/headless-mpv/internal/config"
	"github.com/ManuGH/headless-mpv/internal/log"
)

type configView struct {
	MediaDir        string `json:"media_dir"`
	MaxUploadSize   int64  `json:"max_upload_size"`
	Listen          string `json:"listen"`
	Volume          int    `json:"volume"`
	Loop            bool   `json:"loop"`
	HardwareAccel   bool   `json:"hardware_accel"`
	HDMIOutput      string `json:"hdmi_output"`
	AudioInHeadless bool   `json:"audio_in_headless"`
	AudioResync     bool   `json:"audio_resync"`
}

func viewOf(cfg config.AppConfig) configView {
	return configView{
		MediaDir:        cfg.MediaDir,
		MaxUploadSize:   cfg.MaxUploadSize,
		Listen:          cfg.Listen,
		Volume:          cfg.Volume,
		Loop:            cfg.Loop,
		HardwareAccel:   cfg.HardwareAccel,
		HDMIOutput:      cfg.HDMIOutput,
		AudioInHeadless: cfg.AudioInHeadless,
		AudioResync:     cfg.Player.AudioResync,
	}
}

// configUpdate lists the keys changeable at runtime. Absent keys are kept.
type configUpdate struct {
	Volume          *float64 `json:"volume"`
	Loop            *bool    `json:"loop"`
	HardwareAccel   *bool    `json:"hardware_accel"`
	HDMIOutput      *string  `json:"hdmi_output"`
	AudioInHeadless *bool    `json:"audio_in_headless"`
	AudioResync     *bool    `json:"audio_resync"`
}

func (u configUpdate) apply(c *config.AppConfig) {
	if u.Volume != nil {
		c.Volume = min(max(int(*u.Volume), 0), 100)
	}
	if u.Loop != nil {
		c.Loop = *u.Loop
	}
	if u.HardwareAccel != nil {
		c.HardwareAccel = *u.HardwareAccel
	}
	if u.HDMIOutput != nil {
		c.HDMIOutput = *u.HDMIOutput
	}
	if u.AudioInHeadless != nil {
		c.AudioInHeadless = *u.AudioInHeadless
	}
	if u.AudioResync != nil {
		c.Player.AudioResync = *u.AudioResync
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, viewOf(s.config.Get()))
}

// handleSetConfig persists the update. The daemon's config listener applies
// it to the running session.
func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req configUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "%v", err)
		return
	}

	cfg, err := s.config.Update(r.Context(), req.apply)
	if err != nil {
		if errors.Is(err, config.ErrInvalid) {
			writeError(w, r, http.StatusBadRequest, "%v", err)
			return
		}
		logger := log.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).Str(log.FieldEvent, "api.config_update_failed").Msg("failed to update configuration")
		writeError(w, r, http.StatusInternalServerError, "Failed to save configuration")
		return
	}
	writeResult(w, r, http.StatusOK, true, "Configuration updated", map[string]any{
		"config": viewOf(cfg),
	})
}
