// Package fixmode regenerates golden fixtures from a failing run.
//
// Instead of recomputing expected outputs itself, fix mode re-invokes
// the harness in verification mode, harvests the unified diffs it
// prints, and feeds them to patch -p1 at the repository root. The diff
// labels are written so that the patched paths land on the real
// fixture files. Optionally the patched files are staged with git add.
package fixmode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/eyal0/pcb2gcode-tester/internal/executor"
)

// PatchApplyError reports a patch run that did not apply cleanly.
// There is no retry and no partial recovery; the working tree is left
// exactly as patch left it.
type PatchApplyError struct {
	// Output is patch's combined output, verbatim.
	Output string

	// Code is patch's exit status.
	Code int

	// Err is set when patch could not be started at all.
	Err error
}

func (e *PatchApplyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("applying patch: %v", e.Err)
	}
	return fmt.Sprintf("patch -p1 exited %d:\n%s", e.Code, e.Output)
}

func (e *PatchApplyError) Unwrap() error {
	return e.Err
}

// IsPatchApplyError checks if an error is a PatchApplyError.
func IsPatchApplyError(err error) bool {
	var patchErr *PatchApplyError
	return errors.As(err, &patchErr)
}

// Options configures a fix run.
type Options struct {
	// Argv is the harness's own invocation, os.Args in production.
	// Argv[0] is re-invoked with the remaining arguments plus
	// --no-fix --format text so the child verifies and prints diffs
	// rather than recursing into fix mode.
	Argv []string

	// Add stages the patched files with git add when true.
	Add bool

	// Dir is the repository root patch and git run in. Empty means
	// the process working directory.
	Dir string

	// Runner executes the child processes.
	Runner executor.Runner

	// Out receives progress output.
	Out io.Writer

	// Log, when non-nil, receives debug lines.
	Log *slog.Logger
}

// Run regenerates expected outputs. Returns nil both when fixtures
// were patched and when there was nothing to patch.
func Run(ctx context.Context, opts Options) error {
	fmt.Fprintln(opts.Out, "Generating expected outputs...")

	childArgs := append(append([]string{}, opts.Argv[1:]...), "--no-fix", "--format", "text")
	opts.logDebug("rerunning verification", "path", opts.Argv[0], "args", childArgs)
	diffs, exit, err := opts.Runner.Run(ctx, executor.Invocation{
		Path: opts.Argv[0],
		Args: childArgs,
		Dir:  opts.Dir,
	})
	if err != nil {
		return fmt.Errorf("rerunning verification: %w", err)
	}
	if exit == 0 {
		fmt.Fprintln(opts.Out, "No diffs, nothing to do.")
		return nil
	}

	opts.logDebug("applying diffs", "bytes", len(diffs))
	patchOut, patchExit, err := opts.Runner.Run(ctx, executor.Invocation{
		Path:  "patch",
		Args:  []string{"-p1"},
		Dir:   opts.Dir,
		Stdin: diffs,
	})
	if err != nil {
		return &PatchApplyError{Err: err}
	}
	if patchExit != 0 {
		return &PatchApplyError{Output: string(patchOut), Code: patchExit}
	}
	fmt.Fprint(opts.Out, string(patchOut))

	files := parsePatchedFiles(string(patchOut))

	if opts.Add {
		if err := gitAdd(ctx, opts, files); err != nil {
			return err
		}
		fmt.Fprintln(opts.Out, "Done.\nAdded to git:\n"+strings.Join(files, "\n"))
		return nil
	}

	commands := make([]string, len(files))
	for i, f := range files {
		commands[i] = "git add " + f
	}
	fmt.Fprintln(opts.Out, "Done.\nYou now need to run:\n"+strings.Join(commands, "\n"))
	return nil
}

func gitAdd(ctx context.Context, opts Options, files []string) error {
	if len(files) == 0 {
		return nil
	}
	out, exit, err := opts.Runner.Run(ctx, executor.Invocation{
		Path: "git",
		Args: append([]string{"add"}, files...),
		Dir:  opts.Dir,
	})
	if err != nil {
		return fmt.Errorf("staging patched files: %w", err)
	}
	if exit != 0 {
		return fmt.Errorf("git add exited %d:\n%s", exit, out)
	}
	return nil
}

// parsePatchedFiles extracts file names from patch's "patching file"
// lines. patch quotes names containing spaces or shell metacharacters
// and prints the rest bare.
func parsePatchedFiles(output string) []string {
	const (
		quotedPrefix = "patching file '"
		barePrefix   = "patching file "
	)
	var files []string
	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.HasPrefix(line, quotedPrefix):
			files = append(files, strings.TrimSuffix(line[len(quotedPrefix):], "'"))
		case strings.HasPrefix(line, barePrefix):
			files = append(files, line[len(barePrefix):])
		}
	}
	return files
}

func (o Options) logDebug(msg string, args ...any) {
	if o.Log != nil {
		o.Log.Debug(msg, args...)
	}
}
