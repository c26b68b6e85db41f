package executor

import (
	"errors"
	"fmt"
)

// ExitCodeMismatchError reports a tool run that ended with the wrong
// status. It keeps the tool's combined output so the report can show
// what the tool said on its way down.
type ExitCodeMismatchError struct {
	// Scenario names the table entry.
	Scenario string

	// Got is the status the tool exited with.
	Got int

	// Want is the status the scenario pinned.
	Want int

	// Output is the tool's combined stdout and stderr.
	Output []byte
}

// Error implements the error interface.
func (e *ExitCodeMismatchError) Error() string {
	return fmt.Sprintf("scenario %s: exit code mismatch: got %d, want %d", e.Scenario, e.Got, e.Want)
}

// IsExitCodeMismatch returns true if the error is an
// ExitCodeMismatchError. Uses errors.As to handle wrapped errors.
func IsExitCodeMismatch(err error) bool {
	var em *ExitCodeMismatchError
	return errors.As(err, &em)
}
