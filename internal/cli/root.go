// Package cli wires the verification harness into a cobra command
// tree. The root command runs the scenario table (or a --suite file)
// against the pcb2gcode binary under test; --fix switches to the
// fixture-regeneration workflow; the history subcommand queries the
// optional run ledger.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eyal0/pcb2gcode-tester/internal/executor"
)

// RootOptions holds global flags shared by the root run and all
// subcommands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // optional run ledger path
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// VerifyOptions holds flags for the root (verification) run.
type VerifyOptions struct {
	*RootOptions
	Fix     bool
	NoFix   bool
	Add     bool
	Jobs    int
	Tests   string
	Tool    string
	Suite   string
	Timeout time.Duration

	// Argv is the harness's own command line, defaulting to os.Args.
	// Fix mode re-invokes Argv[0] with the remaining arguments, and the
	// remediation hint printed after a failed run quotes it.
	Argv []string

	// Runner allows overriding process execution (for testing).
	// If nil, defaults to executor.OSRunner.
	Runner executor.Runner
}

// NewRootCommand creates the root command for the harness.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&VerifyOptions{RootOptions: &RootOptions{}})
}

// newRootCommand wires the command tree onto opts. Tests pre-populate
// the injection fields (Runner, Argv) before executing.
func newRootCommand(opts *VerifyOptions) *cobra.Command {
	rootOpts := opts.RootOptions

	cmd := &cobra.Command{
		Use:   "pcb2gcode-tester",
		Short: "Golden-fixture verification for pcb2gcode",
		Long: `Run pcb2gcode against a table of example boards and compare the
generated artifacts with checked-in expected outputs.

SVG artifacts are normalized before comparison so that semantically
equivalent geometry compares equal, and mismatches are reported as
patch-compatible unified diffs. The --fix workflow harvests those
diffs and applies them to the fixture tree.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (bad flags, unreadable suite, missing tool)

Examples:
  pcb2gcode-tester
  pcb2gcode-tester --tests 'multivibrator.*' -j 8
  pcb2gcode-tester --tool ./build/pcb2gcode --timeout 2m
  pcb2gcode-tester --fix --add
  pcb2gcode-tester --format json --db runs.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(rootOpts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", rootOpts.Format, ValidFormats))
			}
			configureLogging(rootOpts.Verbose)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.Argv) == 0 {
				opts.Argv = os.Args
			}
			// --no-fix wins so a --fix parent can re-invoke itself in
			// verification mode with its own arguments still present.
			if opts.Fix && !opts.NoFix {
				return runFix(opts, cmd)
			}
			return runVerify(opts, cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&rootOpts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&rootOpts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&rootOpts.Database, "db", "", "path to SQLite run ledger (optional)")

	// Verification flags
	cmd.Flags().BoolVar(&opts.Fix, "fix", false, "update expected outputs automatically")
	cmd.Flags().BoolVar(&opts.NoFix, "no-fix", false, "don't update expected outputs automatically")
	cmd.Flags().BoolVar(&opts.Add, "add", false, "git add new expected outputs automatically")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", executor.DefaultWorkers, "number of workers for running scenarios concurrently")
	cmd.Flags().StringVar(&opts.Tests, "tests", "", "regex of scenarios to run")
	cmd.Flags().StringVar(&opts.Tool, "tool", "./pcb2gcode", "path to the pcb2gcode binary under test")
	cmd.Flags().StringVar(&opts.Suite, "suite", "", "YAML suite file replacing the built-in scenario table")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-scenario timeout (0 = none)")

	cmd.AddCommand(NewHistoryCommand(rootOpts))

	return cmd
}

// configureLogging routes diagnostics to stderr so they never mix
// with report output, Debug level when --verbose.
func configureLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// signalContext derives a context from the command's that is canceled
// on SIGINT/SIGTERM. The returned stop func releases the handler.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
