// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/headless-mpv/internal/output"
	"github.com/ManuGH/headless-mpv/internal/supervisor"
)

type fakeProc struct {
	pid   int
	alive atomic.Bool
}

func (p *fakeProc) Alive() bool { return p.alive.Load() }
func (p *fakeProc) PID() int    { return p.pid }

func (p *fakeProc) ExitErr() error { return nil }

type launch struct {
	file    string
	profile output.Profile
	volume  int
}

type fakeLauncher struct {
	mu              sync.Mutex
	files           map[string]bool
	launches        []launch
	procs           []*fakeProc
	terminated      []Process
	err             error
	hwaccel         bool
	audioInHeadless bool
	canceled        int
}

func newFakeLauncher(files ...string) *fakeLauncher {
	l := &fakeLauncher{files: map[string]bool{}}
	for _, f := range files {
		l.files[f] = true
	}
	return l
}

func (l *fakeLauncher) Launch(ctx context.Context, file string, profile output.Profile, volume int) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ctx.Err() != nil {
		l.canceled++
	}
	if !l.files[file] {
		return nil, fmt.Errorf("%w: %s", supervisor.ErrFileNotFound, file)
	}
	if l.err != nil {
		return nil, l.err
	}
	l.launches = append(l.launches, launch{file: file, profile: profile, volume: volume})
	p := &fakeProc{pid: 1000 + len(l.procs)}
	p.alive.Store(true)
	l.procs = append(l.procs, p)
	return p, nil
}

func (l *fakeLauncher) Terminate(ctx context.Context, p Process) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ctx.Err() != nil {
		l.canceled++
	}
	l.terminated = append(l.terminated, p)
	if fp, ok := p.(*fakeProc); ok && fp != nil {
		fp.alive.Store(false)
	}
}

func (l *fakeLauncher) SetHardwareAccel(on bool) {
	l.mu.Lock()
	l.hwaccel = on
	l.mu.Unlock()
}

func (l *fakeLauncher) SetAudioInHeadless(on bool) {
	l.mu.Lock()
	l.audioInHeadless = on
	l.mu.Unlock()
}

func (l *fakeLauncher) lastProc() *fakeProc {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.procs) == 0 {
		return nil
	}
	return l.procs[len(l.procs)-1]
}

func (l *fakeLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launches)
}

// terminatedLive counts terminations of an actual process handle.
func (l *fakeLauncher) terminatedLive() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, p := range l.terminated {
		if p != nil {
			n++
		}
	}
	return n
}

type fakeResolver struct {
	connectors []output.Connector
}

func (r *fakeResolver) Resolve(_ context.Context, preference string) output.Profile {
	target := preference
	if target == output.Auto {
		target = output.DefaultOutput
	}
	return output.Profile{Connected: true, VideoTarget: target, AudioSink: output.GenericAudioSink, Source: "fake"}
}

func (r *fakeResolver) Connectors() []output.Connector { return r.connectors }

// fakeIPC models the player's property store. Seeks move time-pos.
type fakeIPC struct {
	mu         sync.Mutex
	props      map[string]any
	unreadable map[string]bool
	failing    map[string]bool
	commands   [][]any
	canceled   int
}

func newFakeIPC() *fakeIPC {
	return &fakeIPC{
		props:      map[string]any{"pause": false},
		unreadable: map[string]bool{},
		failing:    map[string]bool{},
	}
}

func (f *fakeIPC) Send(ctx context.Context, name string, args ...any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		f.canceled++
	}
	f.commands = append(f.commands, append([]any{name}, args...))
	if f.failing[name] {
		return false
	}
	switch name {
	case "set_property":
		f.props[args[0].(string)] = args[1]
	case "seek":
		amount := toFloat(args[0])
		if args[1] == "relative" {
			cur, _ := f.props["time-pos"].(float64)
			amount += cur
		}
		f.props["time-pos"] = amount
	}
	return true
}

func (f *fakeIPC) get(property string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreadable[property] {
		return nil, false
	}
	v, ok := f.props[property]
	return v, ok
}

func (f *fakeIPC) GetFloat(_ context.Context, property string) (float64, bool) {
	v, ok := f.get(property)
	if !ok {
		return 0, false
	}
	x, ok := v.(float64)
	return x, ok
}

func (f *fakeIPC) GetBool(_ context.Context, property string) (bool, bool) {
	v, ok := f.get(property)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (f *fakeIPC) set(property string, v any) {
	f.mu.Lock()
	f.props[property] = v
	f.mu.Unlock()
}

func (f *fakeIPC) fail(command string) {
	f.mu.Lock()
	f.failing[command] = true
	f.mu.Unlock()
}

func (f *fakeIPC) sent() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]any(nil), f.commands...)
}

func (f *fakeIPC) reset() {
	f.mu.Lock()
	f.commands = nil
	f.mu.Unlock()
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case float64:
		return x
	}
	return 0
}

var errSpawn = errors.New("exec: \"mpv\": executable file not found in $PATH")
