// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package output

import (
	"context"
	"os/exec"
)

// Runner executes the external probe and blanking tools. Tests substitute a
// fake so that no platform tool is required.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec and returns their standard output.
type ExecRunner struct{}

// Run executes name with args, bounded by ctx.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- tool names are fixed constants inside this package
	return exec.CommandContext(ctx, name, args...).Output()
}
