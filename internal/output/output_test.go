// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimSpace(name + " " + strings.Join(args, " "))
	f.calls = append(f.calls, key)
	out, ok := f.outputs[name]
	if !ok {
		return nil, errors.New("executable file not found in $PATH")
	}
	return []byte(out), nil
}

func (f *fakeRunner) called(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func writeConnector(t *testing.T, root, name, status string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "status"), []byte(status+"\n"), 0o644))
}

func newTestResolver(t *testing.T, runner Runner, devices ...string) (*Resolver, string) {
	t.Helper()
	root := t.TempDir()
	if devices == nil {
		devices = []string{}
	}
	return NewResolver(Config{SysfsRoot: root, DRMDevices: devices, Runner: runner}), root
}

func TestResolve_TVServicePort(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"tvservice": "state 0xa [HDMI:1 CEA (16) RGB lim 16:9], 1920x1080 @ 60.00Hz, progressive",
	}}
	r, _ := newTestResolver(t, runner)

	p := r.Resolve(context.Background(), Auto)
	assert.True(t, p.Connected)
	assert.Equal(t, "HDMI-A-2", p.VideoTarget)
	assert.Equal(t, "tvservice", p.Source)
}

func TestResolve_TVServiceOffFallsThroughToSysfs(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"tvservice": "state 0x120001 [TV is off]",
	}}
	r, root := newTestResolver(t, runner)
	writeConnector(t, root, "card1-HDMI-A-1", "disconnected")
	writeConnector(t, root, "card1-HDMI-A-2", "connected")

	p := r.Resolve(context.Background(), Auto)
	assert.True(t, p.Connected)
	assert.Equal(t, "HDMI-A-2", p.VideoTarget)
	assert.Equal(t, "sysfs", p.Source)
}

func TestResolve_GenericConnectorUsesDefault(t *testing.T) {
	r, root := newTestResolver(t, &fakeRunner{})
	writeConnector(t, root, "card0-DSI-1", "connected")

	p := r.Resolve(context.Background(), Auto)
	assert.True(t, p.Connected)
	assert.Equal(t, DefaultOutput, p.VideoTarget)
	assert.Equal(t, "generic", p.Source)
}

func TestResolve_Headless(t *testing.T) {
	r, root := newTestResolver(t, &fakeRunner{})
	writeConnector(t, root, "card1-HDMI-A-1", "disconnected")

	p := r.Resolve(context.Background(), Auto)
	assert.False(t, p.Connected)
	assert.Empty(t, p.VideoTarget)
	assert.Empty(t, p.DRMDevice)
	assert.Equal(t, GenericAudioSink, p.AudioSink)
	assert.Equal(t, "none", p.Source)
}

func TestResolve_ManualPreferenceSkipsDetection(t *testing.T) {
	r, root := newTestResolver(t, &fakeRunner{})
	writeConnector(t, root, "card1-HDMI-A-1", "connected")

	p := r.Resolve(context.Background(), "HDMI-A-2")
	assert.Equal(t, "HDMI-A-2", p.VideoTarget)
	assert.True(t, p.Connected, "connected flag still reflects any attached display")
	assert.Equal(t, "manual", p.Source)

	r2, _ := newTestResolver(t, &fakeRunner{})
	p2 := r2.Resolve(context.Background(), "HDMI-A-2")
	assert.Equal(t, "HDMI-A-2", p2.VideoTarget)
	assert.False(t, p2.Connected)
}

func TestResolve_DRMDevicePrefersHigherNode(t *testing.T) {
	dir := t.TempDir()
	card0 := filepath.Join(dir, "card0")
	card1 := filepath.Join(dir, "card1")
	require.NoError(t, os.WriteFile(card0, nil, 0o644))

	r, root := newTestResolver(t, &fakeRunner{}, card1, card0)
	writeConnector(t, root, "card1-HDMI-A-1", "connected")

	assert.Equal(t, card0, r.Resolve(context.Background(), Auto).DRMDevice)

	require.NoError(t, os.WriteFile(card1, nil, 0o644))
	assert.Equal(t, card1, r.Resolve(context.Background(), Auto).DRMDevice)
}

func TestResolve_AudioSinkPriority(t *testing.T) {
	tests := []struct {
		name  string
		aplay string
		want  string
	}{
		{
			name:  "pi4 first port",
			aplay: "card 0: vc4hdmi0 [vc4-hdmi-0], device 0\ncard 1: vc4hdmi1 [vc4-hdmi-1], device 0",
			want:  "alsa/hdmi:CARD=vc4hdmi0,DEV=0",
		},
		{
			name:  "pi4 second port only",
			aplay: "card 1: vc4hdmi1 [vc4-hdmi-1], device 0",
			want:  "alsa/hdmi:CARD=vc4hdmi1,DEV=0",
		},
		{
			name:  "single vc4hdmi",
			aplay: "card 0: vc4hdmi [vc4-hdmi], device 0",
			want:  "alsa/hdmi:CARD=vc4hdmi,DEV=0",
		},
		{
			name:  "generic hdmi",
			aplay: "card 0: HDMI [HDA Intel HDMI], device 3",
			want:  "alsa/hdmi:CARD=HDMI,DEV=0",
		},
		{
			name:  "headphones only",
			aplay: "card 0: Headphones [bcm2835 Headphones], device 0",
			want:  GenericAudioSink,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestResolver(t, &fakeRunner{outputs: map[string]string{"aplay": tt.aplay}})
			assert.Equal(t, tt.want, r.Resolve(context.Background(), Auto).AudioSink)
		})
	}
}

func TestConnectors(t *testing.T) {
	r, root := newTestResolver(t, &fakeRunner{})
	writeConnector(t, root, "card1-HDMI-A-2", "disconnected")
	writeConnector(t, root, "card1-HDMI-A-1", "connected")
	writeConnector(t, root, "card0-DSI-1", "connected")

	got := r.Connectors()
	assert.Equal(t, []Connector{
		{Name: "HDMI-A-1", Connected: true},
		{Name: "HDMI-A-2", Connected: false},
	}, got)
}

func TestConnectors_MissingSysfs(t *testing.T) {
	r := NewResolver(Config{SysfsRoot: filepath.Join(t.TempDir(), "missing"), Runner: &fakeRunner{}})
	assert.Empty(t, r.Connectors())
}

func TestBlanker_RunsAllTechniques(t *testing.T) {
	tty := filepath.Join(t.TempDir(), "tty1")
	require.NoError(t, os.WriteFile(tty, nil, 0o644))
	runner := &fakeRunner{outputs: map[string]string{"vcgencmd": "display_power=1"}}

	b := NewBlanker(BlankConfig{Enabled: true, TTY: tty, Runner: runner})
	b.Blank(context.Background())

	assert.True(t, runner.called("vcgencmd display_power 1"))
	assert.True(t, runner.called("sudo -n sh -c"), "failing technique is still attempted")

	data, err := os.ReadFile(tty)
	require.NoError(t, err)
	assert.Equal(t, ttyBlankSequence, string(data))
}

func TestBlanker_Disabled(t *testing.T) {
	runner := &fakeRunner{}
	b := NewBlanker(BlankConfig{Enabled: false, Runner: runner})
	b.Blank(context.Background())
	assert.Empty(t, runner.calls)

	var nilBlanker *Blanker
	assert.NotPanics(t, func() { nilBlanker.Blank(context.Background()) })
}
