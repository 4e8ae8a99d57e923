// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package supervisor

import (
	"fmt"

	"github.com/ManuGH/headless-mpv/internal/output"
)

// uiArgs strip every on-screen element and make the player exit at end of
// media instead of idling.
var uiArgs = []string{
	"--fullscreen",
	"--no-border",
	"--no-osc",
	"--no-osd-bar",
	"--no-input-default-bindings",
	"--no-input-cursor",
	"--cursor-autohide=no",
	"--no-terminal",
	"--quiet",
	"--really-quiet",
	"--keep-open=no",
	"--idle=no",
}

// BuildArgs returns the player argument list for file under profile.
// The result is derived only from its inputs and the current settings.
func (s *Supervisor) BuildArgs(file string, profile output.Profile, volume int) []string {
	args := make([]string, 0, 32)

	if profile.Connected {
		args = append(args,
			"--vo=gpu",
			"--gpu-context=drm",
			"--drm-connector="+profile.VideoTarget,
		)
		if profile.DRMDevice != "" {
			args = append(args, "--drm-device="+profile.DRMDevice)
		}
		if s.cfg.SafeMode != "" {
			args = append(args, "--drm-mode="+s.cfg.SafeMode)
		}
		if s.hardwareAccel.Load() {
			args = append(args, "--hwdec=auto-copy", "--hwdec-codecs=all")
		}
		if profile.AudioSink != "" && profile.AudioSink != output.GenericAudioSink {
			args = append(args, "--audio-device="+profile.AudioSink)
		} else {
			args = append(args, "--ao=alsa", "--audio-channels=stereo")
		}
	} else {
		args = append(args, "--vo=null", "--no-video")
		if s.audioInHeadless.Load() {
			args = append(args,
				"--ao=alsa",
				"--audio-device="+output.GenericAudioSink,
				"--audio-channels=stereo",
			)
		} else {
			args = append(args, "--ao=null")
		}
	}

	args = append(args, uiArgs...)
	args = append(args,
		fmt.Sprintf("--volume=%d", clampVolume(volume)),
		"--input-ipc-server="+s.cfg.SocketPath,
	)
	args = append(args, s.cfg.ExtraArgs...)
	// Terminate option parsing so file names starting with "-" stay files.
	args = append(args, "--", file)
	return args
}

func clampVolume(v int) int {
	return max(0, min(100, v))
}
