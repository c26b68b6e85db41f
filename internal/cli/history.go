package cli

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/eyal0/pcb2gcode-tester/internal/history"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit    int
	Scenario string // optional scenario-name regex
}

// HistoryRun is one ledger run in the JSON payload.
type HistoryRun struct {
	ID         string `json:"id"`
	StartedAt  string `json:"started_at"`
	DurationMS int64  `json:"duration_ms"`
	Mode       string `json:"mode"`
	Workers    int    `json:"workers"`
	Filter     string `json:"filter,omitempty"`
	Passed     int    `json:"passed"`
	Failed     int    `json:"failed"`
	Total      int    `json:"total"`
}

// HistoryRecord is one scenario outcome in the JSON payload.
type HistoryRecord struct {
	RunID      string `json:"run_id"`
	StartedAt  string `json:"started_at"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	ToolExit   int    `json:"tool_exit"`
	Detail     string `json:"detail,omitempty"`
}

// HistoryResult holds the history command's output.
type HistoryResult struct {
	Runs    []HistoryRun    `json:"runs,omitempty"`
	Records []HistoryRecord `json:"records,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the run ledger",
		Long: `List recent harness runs from the SQLite run ledger, or the outcome
history of individual scenarios (useful for flake hunting).

Run verification with --db to populate the ledger first.

Examples:
  pcb2gcode-tester --db runs.db history
  pcb2gcode-tester --db runs.db history --limit 5
  pcb2gcode-tester --db runs.db history --scenario 'multivibrator.*'
  pcb2gcode-tester --db runs.db history --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of entries to list")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "list outcomes of scenarios matching this regex instead of runs")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	if opts.Database == "" {
		return NewExitError(ExitCommandError, "history requires --db")
	}

	st, err := history.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open run ledger", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Scenario != "" {
		re, err := regexp.Compile(opts.Scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --scenario pattern", err)
		}
		records, err := st.ScenarioHistory(ctx, re, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to query scenario history", err)
		}
		return outputRecords(cmd, opts, records)
	}

	runs, err := st.RecentRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query runs", err)
	}
	return outputRuns(cmd, opts, runs)
}

// outputRuns lists runs, newest first.
func outputRuns(cmd *cobra.Command, opts *HistoryOptions, runs []history.Run) error {
	if opts.Format == "json" {
		result := HistoryResult{Runs: make([]HistoryRun, 0, len(runs))}
		for _, r := range runs {
			result.Runs = append(result.Runs, HistoryRun{
				ID:         r.ID,
				StartedAt:  r.StartedAt.UTC().Format(time.RFC3339Nano),
				DurationMS: r.Duration.Milliseconds(),
				Mode:       r.Mode,
				Workers:    r.Workers,
				Filter:     r.Filter,
				Passed:     r.Passed,
				Failed:     r.Failed,
				Total:      r.Total,
			})
		}
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %-6s  %d/%d passed  (%s)\n",
			truncateRunID(r.ID),
			r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			r.Mode,
			r.Passed, r.Total,
			r.Duration.Round(time.Millisecond))
		if opts.Verbose && r.Filter != "" {
			fmt.Fprintf(w, "          filter: %s\n", r.Filter)
		}
	}
	return nil
}

// outputRecords lists per-scenario outcomes, newest run first.
func outputRecords(cmd *cobra.Command, opts *HistoryOptions, records []history.ScenarioRecord) error {
	if opts.Format == "json" {
		result := HistoryResult{Records: make([]HistoryRecord, 0, len(records))}
		for _, rec := range records {
			result.Records = append(result.Records, HistoryRecord{
				RunID:      rec.RunID,
				StartedAt:  rec.StartedAt.UTC().Format(time.RFC3339Nano),
				Name:       rec.Name,
				Status:     rec.Status,
				DurationMS: rec.Duration.Milliseconds(),
				ToolExit:   rec.ToolExit,
				Detail:     rec.Detail,
			})
		}
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(w, "No matching results.")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintf(w, "%s  %s  %-5s  %s (%s)\n",
			truncateRunID(rec.RunID),
			rec.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			rec.Status,
			rec.Name,
			rec.Duration.Round(time.Millisecond))
		if opts.Verbose && rec.Detail != "" {
			fmt.Fprintf(w, "          %s\n", rec.Detail)
		}
	}
	return nil
}

// truncateRunID keeps the leading timestamp segment of a v7 UUID.
func truncateRunID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
