package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/eyal0/pcb2gcode-tester/internal/executor"
	"github.com/eyal0/pcb2gcode-tester/internal/history"
	"github.com/eyal0/pcb2gcode-tester/internal/scenario"
)

// ScenarioOutcome is one scenario's result in the JSON payload.
type ScenarioOutcome struct {
	Name       string `json:"name"`
	Status     string `json:"status"` // pass | diff | exit | error
	DurationMS int64  `json:"duration_ms"`
	ToolExit   int    `json:"tool_exit"` // -1 when the tool never completed
	Diff       string `json:"diff,omitempty"`
	Error      string `json:"error,omitempty"`
}

// VerifyResult holds the overall verification result.
type VerifyResult struct {
	RunID     string            `json:"run_id,omitempty"`
	Tool      string            `json:"tool,omitempty"`
	Workers   int               `json:"workers,omitempty"`
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	scenarios, err := loadScenarios(opts)
	if err != nil {
		return err
	}
	scenarios, err = scenario.Filter(scenarios, opts.Tests)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --tests value", err)
	}

	if len(scenarios) == 0 {
		if opts.Format == "json" {
			return writeJSON(cmd.OutOrStdout(), CLIResponse{
				Status: "ok",
				Data:   VerifyResult{Scenarios: []ScenarioOutcome{}},
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios matched.")
		return nil
	}

	tool, err := filepath.Abs(opts.Tool)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve tool path", err)
	}
	runner := opts.Runner
	if runner == nil {
		// Scripted runners in tests never exec the tool, so only the
		// real one needs the binary to exist up front.
		if _, err := os.Stat(tool); err != nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("tool not found: %s", tool))
		}
		runner = &executor.OSRunner{}
	}

	runID := uuid.Must(uuid.NewV7()).String()
	startedAt := time.Now()
	slog.Debug("verification run starting",
		"run_id", runID, "tool", tool, "scenarios", len(scenarios), "workers", opts.Jobs)

	// Graceful shutdown: a signal cancels the context; in-flight
	// scenarios finish and the rest report as errors.
	ctx, stop := signalContext(cmd)
	defer stop()

	exec := &executor.Executor{
		Tool:    tool,
		Runner:  runner,
		Timeout: opts.Timeout,
		RunTag:  runID[:8],
		Log:     slog.Default(),
	}
	pool := &executor.Pool{Workers: opts.Jobs, Exec: exec}

	var reporter *executor.Reporter
	if opts.Format != "json" {
		reporter = &executor.Reporter{W: cmd.OutOrStdout(), Verbose: opts.Verbose}
	}
	var outcomes []executor.Outcome
	passed, failed := pool.Run(ctx, scenarios, func(o executor.Outcome) {
		outcomes = append(outcomes, o)
		if reporter != nil {
			reporter.Outcome(o)
		}
	})

	recordRun(opts.Database, history.Run{
		ID:        runID,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Mode:      "verify",
		Workers:   opts.Jobs,
		Filter:    opts.Tests,
		Passed:    passed,
		Failed:    failed,
		Total:     len(scenarios),
	}, outcomes)

	result := VerifyResult{
		RunID:     runID,
		Tool:      tool,
		Workers:   opts.Jobs,
		Scenarios: make([]ScenarioOutcome, 0, len(outcomes)),
		Passed:    passed,
		Failed:    failed,
		Total:     len(scenarios),
	}
	for _, o := range outcomes {
		result.Scenarios = append(result.Scenarios, ScenarioOutcome{
			Name:       o.Scenario.Name,
			Status:     o.Status.String(),
			DurationMS: o.Duration.Milliseconds(),
			ToolExit:   o.ToolExit,
			Diff:       o.Diff,
			Error:      errString(o.Err),
		})
	}

	if opts.Format == "json" {
		return outputVerifyJSON(cmd, result)
	}
	return outputVerifyText(reporter, opts, result)
}

// loadScenarios returns the built-in table or the --suite file.
func loadScenarios(opts *VerifyOptions) ([]scenario.Scenario, error) {
	if opts.Suite == "" {
		return scenario.Default(), nil
	}
	scenarios, err := scenario.LoadSuite(opts.Suite)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load suite", err)
	}
	slog.Debug("suite loaded", "path", opts.Suite, "scenarios", len(scenarios))
	return scenarios, nil
}

// recordRun appends the run to the SQLite ledger when --db is set.
// Ledger problems are logged, never fatal: a broken ledger must not
// turn a passing run into a failing one.
func recordRun(dbPath string, run history.Run, outcomes []executor.Outcome) {
	if dbPath == "" {
		return
	}
	st, err := history.Open(dbPath)
	if err != nil {
		slog.Warn("opening run ledger failed", "path", dbPath, "error", err)
		return
	}
	defer st.Close()

	results := make([]history.Result, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, history.Result{
			Position:  o.Position,
			Name:      o.Scenario.Name,
			Status:    o.Status.String(),
			Duration:  o.Duration,
			ToolExit:  o.ToolExit,
			DiffBytes: len(o.Diff),
			Detail:    outcomeDetail(o),
		})
	}
	// The write gets a fresh context so an interrupted run is still
	// recorded.
	if err := st.RecordRun(context.Background(), run, results); err != nil {
		slog.Warn("recording run in ledger failed", "error", err)
	}
}

func outcomeDetail(o executor.Outcome) string {
	if o.Err != nil {
		return o.Err.Error()
	}
	if o.Status == executor.StatusDiff {
		return "files don't match"
	}
	return ""
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// outputVerifyJSON outputs the verification result as JSON.
func outputVerifyJSON(cmd *cobra.Command, result VerifyResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_SCENARIOS_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := writeJSON(cmd.OutOrStdout(), response); err != nil {
		return err
	}

	if result.Failed > 0 {
		// Scenario failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputVerifyText prints the summary and, on failure, the fix-mode
// remediation hint.
func outputVerifyText(reporter *executor.Reporter, opts *VerifyOptions, result VerifyResult) error {
	reporter.Summary(result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		reporter.Remediation(opts.Argv[0])
		// Scenario failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(reporter.W, "✓ All scenarios passed")
	return nil
}
