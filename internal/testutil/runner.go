// Package testutil provides scripted process fakes for harness tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/eyal0/pcb2gcode-tester/internal/executor"
)

// ScriptedRunner implements executor.Runner with a caller-supplied
// handler. Tests use the handler to write artifacts into the
// invocation's output directory and to pick exit codes per scenario.
//
// Thread-safety: pool workers call Run concurrently; the call log is
// mutex-protected. The handler itself must be safe for concurrent use
// when the test runs scenarios in parallel.
type ScriptedRunner struct {
	// Handle produces the response for one invocation. A nil handler
	// succeeds with no output.
	Handle func(inv executor.Invocation) (output []byte, exitCode int, err error)

	mu    sync.Mutex
	calls []executor.Invocation
}

// Run implements executor.Runner.
func (r *ScriptedRunner) Run(_ context.Context, inv executor.Invocation) ([]byte, int, error) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	r.mu.Unlock()

	if r.Handle == nil {
		return nil, 0, nil
	}
	return r.Handle(inv)
}

// Calls returns a copy of the invocations seen so far.
func (r *ScriptedRunner) Calls() []executor.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]executor.Invocation, len(r.calls))
	copy(out, r.calls)
	return out
}

// QueuedResponse is one canned Run result.
type QueuedResponse struct {
	Output   []byte
	ExitCode int
	Err      error
}

// QueuedRunner implements executor.Runner with canned responses
// consumed in order. The fix workflow tests script their child-run,
// patch and git invocations this way.
type QueuedRunner struct {
	mu        sync.Mutex
	calls     []executor.Invocation
	responses []QueuedResponse
}

// Enqueue appends a canned response.
func (r *QueuedRunner) Enqueue(resp QueuedResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
}

// Run implements executor.Runner. Running past the scripted responses
// returns an explicit error instead of panicking, so the code under
// test reports the extra invocation in its own failure path.
func (r *QueuedRunner) Run(_ context.Context, inv executor.Invocation) ([]byte, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, inv)
	if len(r.responses) == 0 {
		return nil, 0, fmt.Errorf("unscripted invocation: %s %v", inv.Path, inv.Args)
	}
	resp := r.responses[0]
	r.responses = r.responses[1:]
	return resp.Output, resp.ExitCode, resp.Err
}

// Calls returns a copy of the invocations seen so far.
func (r *QueuedRunner) Calls() []executor.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]executor.Invocation, len(r.calls))
	copy(out, r.calls)
	return out
}

// OutputDir returns the value following --output-dir in an
// invocation's arguments, empty if absent.
func OutputDir(inv executor.Invocation) string {
	for i, a := range inv.Args {
		if a == "--output-dir" && i+1 < len(inv.Args) {
			return inv.Args[i+1]
		}
	}
	return ""
}
