package cli

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/eyal0/pcb2gcode-tester/internal/executor"
	"github.com/eyal0/pcb2gcode-tester/internal/fixmode"
	"github.com/eyal0/pcb2gcode-tester/internal/history"
)

// runFix regenerates expected outputs by re-running verification and
// applying the harvested diffs. Progress is always plain text; the
// --format flag does not apply because the child run's output is
// consumed by patch, not by a reader.
func runFix(opts *VerifyOptions, cmd *cobra.Command) error {
	runner := opts.Runner
	if runner == nil {
		runner = &executor.OSRunner{}
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	runID := uuid.Must(uuid.NewV7()).String()
	startedAt := time.Now()
	slog.Debug("fix run starting", "run_id", runID, "add", opts.Add)

	err := fixmode.Run(ctx, fixmode.Options{
		Argv:   opts.Argv,
		Add:    opts.Add,
		Runner: runner,
		Out:    cmd.OutOrStdout(),
		Log:    slog.Default(),
	})

	recordRun(opts.Database, history.Run{
		ID:        runID,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Mode:      "fix",
		Workers:   opts.Jobs,
		Filter:    opts.Tests,
	}, nil)

	if err != nil {
		return WrapExitError(ExitFailure, "failed to regenerate fixtures", err)
	}
	return nil
}
