package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Invocation describes one external process run.
type Invocation struct {
	// Path is the program to run.
	//
	// CRITICAL: exec resolves a relative Path against Dir, not against
	// the harness working directory, so callers must absolutize tool
	// paths before setting Dir.
	Path string

	// Args are the program arguments, without the program name.
	Args []string

	// Dir is the working directory; empty inherits the caller's.
	Dir string

	// Stdin is fed to the process when non-empty.
	Stdin []byte
}

// Runner abstracts process execution so scenario runs and the fix
// workflow can be driven by scripted fakes in tests.
type Runner interface {
	// Run executes the process and returns its combined stdout+stderr
	// and exit status. err is non-nil only when the process could not
	// run at all; a non-zero exit status is a normal result.
	Run(ctx context.Context, inv Invocation) (output []byte, exitCode int, err error)
}

// OSRunner runs real processes.
type OSRunner struct{}

// Run implements Runner. Stdout and stderr share one buffer so the
// report interleaves them the way a terminal would.
func (OSRunner) Run(ctx context.Context, inv Invocation) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(inv.Stdin)
	}
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return combined.Bytes(), exitErr.ExitCode(), nil
		}
		return combined.Bytes(), 0, fmt.Errorf("running %s: %w", inv.Path, err)
	}
	return combined.Bytes(), 0, nil
}
