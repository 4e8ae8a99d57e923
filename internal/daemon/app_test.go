// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/headless-mpv/internal/config"
	"github.com/ManuGH/headless-mpv/internal/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu       sync.Mutex
	settings player.Settings
	volume   int
	output   string
	calls    []string
	running  chan struct{}
}

func newFakeSession() *fakeSession {
	return &fakeSession{volume: 100, output: "auto", running: make(chan struct{})}
}

func (s *fakeSession) Run(ctx context.Context) error {
	close(s.running)
	<-ctx.Done()
	return nil
}

func (s *fakeSession) Status(context.Context) player.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return player.Status{State: player.StateStopped, Volume: s.volume, OutputPreference: s.output}
}

func (s *fakeSession) Settings() player.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *fakeSession) ApplySettings(v player.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = v
	s.calls = append(s.calls, "settings")
}

func (s *fakeSession) SetVolume(_ context.Context, level int) player.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = level
	s.calls = append(s.calls, fmt.Sprintf("volume %d", level))
	return player.Result{OK: true}
}

func (s *fakeSession) SetOutput(_ context.Context, pref string) player.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = pref
	s.calls = append(s.calls, "output "+pref)
	return player.Result{OK: true}
}

func (s *fakeSession) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type fakeConfig struct {
	mu        sync.Mutex
	listeners []chan<- config.AppConfig
	reloads   int
}

func (c *fakeConfig) Reload(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reloads++
	return nil
}

func (c *fakeConfig) Watch(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (c *fakeConfig) RegisterListener(ch chan<- config.AppConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, ch)
}

func (c *fakeConfig) publish(cfg config.AppConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.listeners {
		ch <- cfg
	}
}

type fakeManager struct {
	started chan struct{}
}

func (m *fakeManager) Start(ctx context.Context) error {
	close(m.started)
	<-ctx.Done()
	return nil
}

func (m *fakeManager) Shutdown(context.Context) error            { return nil }
func (m *fakeManager) RegisterShutdownHook(string, ShutdownHook) {}

func TestApp_RequiresParts(t *testing.T) {
	assert.ErrorIs(t, NewApp(nil, newFakeSession(), nil).Run(context.Background()), ErrMissingManager)
	assert.ErrorIs(t, NewApp(&fakeManager{started: make(chan struct{})}, nil, nil).Run(context.Background()), ErrMissingSession)
}

func TestApp_ApplySkipsValuesInEffect(t *testing.T) {
	sess := newFakeSession()
	app := NewApp(&fakeManager{}, sess, nil)

	cfg := config.Defaults()
	sess.settings = player.Settings{
		AudioResync:     cfg.Player.AudioResync,
		HardwareAccel:   cfg.HardwareAccel,
		AudioInHeadless: cfg.AudioInHeadless,
	}
	app.apply(context.Background(), cfg)
	assert.Empty(t, sess.Calls())

	cfg.Loop = true
	cfg.Volume = 40
	cfg.HDMIOutput = "HDMI-A-2"
	app.apply(context.Background(), cfg)
	assert.Equal(t, []string{"settings", "volume 40", "output HDMI-A-2"}, sess.Calls())
	assert.True(t, sess.Settings().Loop)

	// Same config again changes nothing.
	app.apply(context.Background(), cfg)
	assert.Len(t, sess.Calls(), 3)
}

func TestApp_RunAppliesConfigUpdates(t *testing.T) {
	sess := newFakeSession()
	mgr := &fakeManager{started: make(chan struct{})}
	src := &fakeConfig{}
	app := NewApp(mgr, sess, src)
	app.reloadSignal = nil

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	<-mgr.started
	<-sess.running

	cfg := config.Defaults()
	cfg.Volume = 55
	src.publish(cfg)

	require.Eventually(t, func() bool {
		for _, c := range sess.Calls() {
			if c == "volume 55" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
