package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/eyal0/pcb2gcode-tester/internal/artifact"
	"github.com/eyal0/pcb2gcode-tester/internal/dirdiff"
	"github.com/eyal0/pcb2gcode-tester/internal/scenario"
)

// Status classifies a scenario outcome.
type Status int

const (
	// StatusPass means the exit status matched and, for scenarios that
	// expect success, the normalized artifacts reproduced the
	// expectations.
	StatusPass Status = iota + 1

	// StatusDiff means the artifacts differ from the expectations.
	StatusDiff

	// StatusExit means the tool exited with the wrong status.
	StatusExit

	// StatusError means the scenario could not be evaluated: the tool
	// failed to start or timed out, or its output could not be
	// normalized or compared.
	StatusError
)

// String returns the ledger spelling of the status.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusDiff:
		return "diff"
	case StatusExit:
		return "exit"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the result of one scenario run.
type Outcome struct {
	// Scenario is the table entry that ran.
	Scenario scenario.Scenario

	// Position is the scenario's index in the filtered table. The pool
	// releases outcomes in Position order.
	Position int

	// Status classifies the result.
	Status Status

	// Diff is the rendered fixture diff for StatusDiff outcomes.
	Diff string

	// Err carries the failure for StatusExit and StatusError outcomes.
	Err error

	// ToolExit is the status the tool exited with, -1 if it never ran
	// to completion.
	ToolExit int

	// Duration is the wall time the scenario took.
	Duration time.Duration
}

// Passed reports whether the scenario succeeded.
func (o Outcome) Passed() bool {
	return o.Status == StatusPass
}

// Executor runs single scenarios.
type Executor struct {
	// Tool is the absolute path of the program under test.
	Tool string

	// Runner executes processes; OSRunner outside tests.
	Runner Runner

	// Timeout bounds one tool run; zero means no limit.
	Timeout time.Duration

	// RunTag correlates the temp directories of one harness run.
	RunTag string

	// Log receives debug-level progress; nil disables logging.
	Log *slog.Logger
}

// RunScenario executes one scenario and classifies the result. Every
// failure folds into the Outcome; an infrastructure problem is
// StatusError, never a panic or a lost scenario.
func (e *Executor) RunScenario(ctx context.Context, pos int, sc scenario.Scenario) Outcome {
	start := time.Now()
	out := e.runScenario(ctx, sc)
	out.Position = pos
	out.Duration = time.Since(start)
	return out
}

func (e *Executor) runScenario(ctx context.Context, sc scenario.Scenario) Outcome {
	out := Outcome{Scenario: sc, ToolExit: -1}

	pattern := "pcb2gcode-test-"
	if e.RunTag != "" {
		pattern += e.RunTag + "-"
	}
	outDir, err := os.MkdirTemp("", pattern)
	if err != nil {
		out.Status = StatusError
		out.Err = fmt.Errorf("scenario %s: creating output dir: %w", sc.Name, err)
		return out
	}
	defer os.RemoveAll(outDir)

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := append([]string{"--output-dir", outDir}, sc.Args...)
	e.logDebug("running scenario", "scenario", sc.Name, "dir", sc.Dir, "args", args)
	output, exit, err := e.Runner.Run(ctx, Invocation{Path: e.Tool, Args: args, Dir: sc.Dir})
	if ctxErr := ctx.Err(); ctxErr != nil {
		out.Status = StatusError
		out.Err = fmt.Errorf("scenario %s: tool did not finish: %w", sc.Name, ctxErr)
		return out
	}
	if err != nil {
		out.Status = StatusError
		out.Err = fmt.Errorf("scenario %s: %w", sc.Name, err)
		return out
	}
	out.ToolExit = exit
	if exit != sc.ExitCode {
		out.Status = StatusExit
		out.Err = &ExitCodeMismatchError{Scenario: sc.Name, Got: exit, Want: sc.ExitCode, Output: output}
		return out
	}
	if sc.ExitCode != 0 {
		// A run that was supposed to fail leaves nothing to compare.
		out.Status = StatusPass
		return out
	}

	if err := artifact.Normalize(outDir); err != nil {
		out.Status = StatusError
		out.Err = fmt.Errorf("scenario %s: %w", sc.Name, err)
		return out
	}
	prefix := path.Join(sc.Dir, "expected")
	diff, err := dirdiff.Compare(
		filepath.Join(sc.Dir, "expected"), outDir,
		path.Join("expected", prefix), path.Join("actual", prefix))
	if err != nil {
		out.Status = StatusError
		out.Err = fmt.Errorf("scenario %s: %w", sc.Name, err)
		return out
	}
	if diff != "" {
		out.Status = StatusDiff
		out.Diff = diff
		return out
	}
	out.Status = StatusPass
	return out
}

func (e *Executor) logDebug(msg string, args ...any) {
	if e.Log != nil {
		e.Log.Debug(msg, args...)
	}
}
