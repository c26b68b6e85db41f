package executor

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Reporter prints scenario outcomes as the pool releases them.
//
// Diff text prints at column zero, undecorated. The failure report
// doubles as input for patch -p1, so nothing may prefix or indent the
// diff lines.
type Reporter struct {
	// W receives the report.
	W io.Writer

	// Verbose adds per-scenario timing.
	Verbose bool
}

// Outcome prints one scenario line, plus failure details.
func (r *Reporter) Outcome(o Outcome) {
	name := o.Scenario.Name
	if o.Passed() {
		if r.Verbose {
			fmt.Fprintf(r.W, "✓ %s (%s)\n", name, o.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(r.W, "✓ %s\n", name)
		}
		return
	}
	fmt.Fprintf(r.W, "✗ %s\n", name)
	switch o.Status {
	case StatusExit:
		var mismatch *ExitCodeMismatchError
		if errors.As(o.Err, &mismatch) {
			fmt.Fprintf(r.W, "exit code mismatch: got %d, want %d\n", mismatch.Got, mismatch.Want)
			r.writeBlock(mismatch.Output)
			return
		}
		fmt.Fprintf(r.W, "error: %v\n", o.Err)
	case StatusDiff:
		fmt.Fprintf(r.W, "Files don't match:\n")
		io.WriteString(r.W, o.Diff)
	default:
		fmt.Fprintf(r.W, "error: %v\n", o.Err)
	}
}

// writeBlock prints tool output, newline-terminated.
func (r *Reporter) writeBlock(b []byte) {
	if len(b) == 0 {
		return
	}
	r.W.Write(b)
	if b[len(b)-1] != '\n' {
		io.WriteString(r.W, "\n")
	}
}

// Summary prints the run totals.
func (r *Reporter) Summary(passed, failed, total int) {
	fmt.Fprintf(r.W, "\nTest Summary: %d passed, %d failed, %d total\n", passed, failed, total)
}

// Remediation prints the fix-mode hint shown after a failed run.
func (r *Reporter) Remediation(command string) {
	fmt.Fprintf(r.W, "\n***\nRun one of these:\n%s --fix\n%s --fix --add\n***\n", command, command)
}
