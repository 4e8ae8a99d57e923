// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package output decides where the player renders video and sends audio.
//
// Every probe may legitimately be missing on a given board (tool not
// installed, different sysfs layout, permission denied). Probes therefore
// fail soft: a failed probe falls through to the next one and total failure
// yields a headless profile instead of an error.
package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/headless-mpv/internal/log"
	"github.com/ManuGH/headless-mpv/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	// Auto lets the resolver pick the output.
	Auto = "auto"
	// DefaultOutput is used when a display is present but its connector cannot be named.
	DefaultOutput = "HDMI-A-1"
	// GenericAudioSink is the line-level ALSA device used when no HDMI card is found.
	GenericAudioSink = "alsa/default"

	defaultSysfsRoot    = "/sys/class/drm"
	defaultProbeTimeout = 2 * time.Second
)

// DefaultDRMDevices lists render device candidates. Two-node boards expose
// the active render node at the higher index, so it comes first.
var DefaultDRMDevices = []string{"/dev/dri/card1", "/dev/dri/card0"}

// hdmiAudioCards are matched against `aplay -l`, most specific first.
var hdmiAudioCards = []string{"vc4hdmi0", "vc4hdmi1", "vc4hdmi", "HDMI"}

var (
	tvservicePortRe = regexp.MustCompile(`hdmi[: ]?(\d)`)
	connectorRe     = regexp.MustCompile(`card\d+-(HDMI-A-(\d+))`)
)

// Profile is the resolved choice of video target, render device and audio sink
// for one playback attempt. It is recomputed on every launch because displays
// can be hot-plugged.
type Profile struct {
	Connected   bool
	VideoTarget string
	DRMDevice   string
	AudioSink   string
	// Source names the probe that decided the profile.
	Source string
}

// Connector is one physical HDMI connector as reported by the DRM subsystem.
type Connector struct {
	Name      string
	Connected bool
}

// Config configures a Resolver. Zero values select the platform defaults.
type Config struct {
	SysfsRoot    string
	DRMDevices   []string
	ProbeTimeout time.Duration
	Runner       Runner
}

// Resolver probes the available hardware outputs.
type Resolver struct {
	sysfsRoot    string
	drmDevices   []string
	probeTimeout time.Duration
	runner       Runner
	logger       zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		sysfsRoot:    cfg.SysfsRoot,
		drmDevices:   cfg.DRMDevices,
		probeTimeout: cfg.ProbeTimeout,
		runner:       cfg.Runner,
		logger:       log.WithComponent("output"),
	}
	if r.sysfsRoot == "" {
		r.sysfsRoot = defaultSysfsRoot
	}
	if r.drmDevices == nil {
		r.drmDevices = DefaultDRMDevices
	}
	if r.probeTimeout <= 0 {
		r.probeTimeout = defaultProbeTimeout
	}
	if r.runner == nil {
		r.runner = ExecRunner{}
	}
	return r
}

type probe struct {
	name string
	fn   func(ctx context.Context) (string, bool)
}

// Resolve picks the output profile for preference ("auto" or a connector
// name such as "HDMI-A-2"). It never fails.
func (r *Resolver) Resolve(ctx context.Context, preference string) Profile {
	p := Profile{Source: "none"}

	if preference != "" && preference != Auto {
		// A named output short-circuits detection; the connected check only
		// decides between the hardware and the headless path.
		p.VideoTarget = preference
		p.Connected = r.DisplayConnected(ctx)
		p.Source = "manual"
	} else {
		probes := []probe{
			{name: "tvservice", fn: r.probeTVService},
			{name: "sysfs", fn: r.probeSysfs},
			{name: "generic", fn: r.probeGeneric},
		}
		for _, pr := range probes {
			if target, ok := pr.fn(ctx); ok {
				p.Connected = true
				p.VideoTarget = target
				p.Source = pr.name
				break
			}
		}
	}

	if p.Connected {
		p.DRMDevice = r.drmDevice()
	}
	p.AudioSink = r.audioSink(ctx)

	metrics.IncOutputResolution(p.Source)
	r.logger.Debug().
		Str(log.FieldEvent, "output.resolved").
		Str(log.FieldSource, p.Source).
		Bool("connected", p.Connected).
		Str(log.FieldOutput, p.VideoTarget).
		Str(log.FieldDevice, p.DRMDevice).
		Str(log.FieldAudioSink, p.AudioSink).
		Msg("resolved output profile")
	return p
}

// DisplayConnected reports whether any display is attached, using the
// platform tool first and the DRM connector status files second.
func (r *Resolver) DisplayConnected(ctx context.Context) bool {
	if _, ok := r.probeTVService(ctx); ok {
		return true
	}
	_, ok := r.probeGeneric(ctx)
	return ok
}

// Connectors lists the HDMI connectors exposed by the DRM subsystem, ordered
// by name. Connectors that appear on several cards are reported once.
func (r *Resolver) Connectors() []Connector {
	paths, err := filepath.Glob(filepath.Join(r.sysfsRoot, "card*-HDMI-A-*"))
	if err != nil {
		return nil
	}
	seen := make(map[string]int)
	var out []Connector
	for _, p := range paths {
		m := connectorRe.FindStringSubmatch(filepath.Base(p))
		if m == nil {
			continue
		}
		connected := readStatus(filepath.Join(p, "status"))
		if i, ok := seen[m[1]]; ok {
			out[i].Connected = out[i].Connected || connected
			continue
		}
		seen[m[1]] = len(out)
		out = append(out, Connector{Name: m[1], Connected: connected})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Resolver) probeTVService(ctx context.Context) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	raw, err := r.runner.Run(ctx, "tvservice", "-s")
	if err != nil {
		r.logger.Debug().Err(err).Str(log.FieldEvent, "output.tvservice_unavailable").Msg("tvservice probe failed")
		return "", false
	}
	out := strings.ToLower(string(raw))
	if !strings.Contains(out, "hdmi") || strings.Contains(out, "off") || strings.Contains(out, "unknown") {
		return "", false
	}
	if m := tvservicePortRe.FindStringSubmatch(out); m != nil {
		if idx, err := strconv.Atoi(m[1]); err == nil {
			return fmt.Sprintf("HDMI-A-%d", idx+1), true
		}
	}
	return DefaultOutput, true
}

func (r *Resolver) probeSysfs(_ context.Context) (string, bool) {
	paths, err := filepath.Glob(filepath.Join(r.sysfsRoot, "card*-HDMI-A-*", "status"))
	if err != nil {
		return "", false
	}
	sort.Strings(paths)
	for _, p := range paths {
		if !readStatus(p) {
			continue
		}
		if m := connectorRe.FindStringSubmatch(p); m != nil {
			return m[1], true
		}
		return DefaultOutput, true
	}
	return "", false
}

func (r *Resolver) probeGeneric(_ context.Context) (string, bool) {
	paths, err := filepath.Glob(filepath.Join(r.sysfsRoot, "card*-*", "status"))
	if err != nil {
		return "", false
	}
	for _, p := range paths {
		if readStatus(p) {
			return DefaultOutput, true
		}
	}
	return "", false
}

func (r *Resolver) drmDevice() string {
	for _, dev := range r.drmDevices {
		if _, err := os.Stat(dev); err == nil {
			return dev
		}
	}
	return ""
}

func (r *Resolver) audioSink(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	raw, err := r.runner.Run(ctx, "aplay", "-l")
	if err != nil {
		r.logger.Debug().Err(err).Str(log.FieldEvent, "output.aplay_unavailable").Msg("audio card probe failed")
		return GenericAudioSink
	}
	out := string(raw)
	for _, card := range hdmiAudioCards {
		if strings.Contains(out, card) {
			return fmt.Sprintf("alsa/hdmi:CARD=%s,DEV=0", card)
		}
	}
	return GenericAudioSink
}

func readStatus(path string) bool {
	// #nosec G304 -- paths come from a glob under the DRM sysfs root
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "connected"
}
