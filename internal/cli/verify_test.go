package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyal0/pcb2gcode-tester/internal/executor"
	"github.com/eyal0/pcb2gcode-tester/internal/history"
	"github.com/eyal0/pcb2gcode-tester/internal/testutil"
)

// newTestRoot builds the command tree around pre-populated options so
// tests can inject a scripted runner and a fixed argv.
func newTestRoot(opts *VerifyOptions) (*cobra.Command, *bytes.Buffer) {
	if opts.RootOptions == nil {
		opts.RootOptions = &RootOptions{}
	}
	if len(opts.Argv) == 0 {
		opts.Argv = []string{"pcb2gcode-tester"}
	}
	cmd := newRootCommand(opts)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

func writeSuiteFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func passingSuite(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("scenarios:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  - name: %s\n    dir: %s\n", name, filepath.Join(dir, name))
	}
	return writeSuiteFile(t, b.String())
}

func TestVerifyAllScenariosPass(t *testing.T) {
	dir := t.TempDir()
	suite := writeSuiteFile(t, fmt.Sprintf(`scenarios:
  - name: first-board
    dir: %s
    args: ["front.gbr"]
  - name: second-board
    dir: %s
`, filepath.Join(dir, "first-board"), filepath.Join(dir, "second-board")))

	runner := &testutil.ScriptedRunner{}
	cmd, buf := newTestRoot(&VerifyOptions{Runner: runner})
	cmd.SetArgs([]string{"--suite", suite})

	err := cmd.Execute()
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "✓ first-board\n")
	assert.Contains(t, out, "✓ second-board\n")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")

	calls := runner.Calls()
	require.Len(t, calls, 2)
	assert.True(t, filepath.IsAbs(calls[0].Path), "tool path should be absolute")
	assert.True(t, strings.HasSuffix(calls[0].Path, "pcb2gcode"))
	require.GreaterOrEqual(t, len(calls[0].Args), 2)
	assert.Equal(t, "--output-dir", calls[0].Args[0])
}

func TestVerifyPassesScenarioArgsAndDir(t *testing.T) {
	scDir := filepath.Join(t.TempDir(), "drill-test")
	suite := writeSuiteFile(t, fmt.Sprintf(`scenarios:
  - name: drill-test
    dir: %s
    args: ["--metric", "board.drl"]
`, scDir))

	runner := &testutil.ScriptedRunner{}
	cmd, _ := newTestRoot(&VerifyOptions{Runner: runner})
	cmd.SetArgs([]string{"--suite", suite})

	require.NoError(t, cmd.Execute())

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, scDir, calls[0].Dir)
	assert.Equal(t, []string{"--metric", "board.drl"}, calls[0].Args[2:])
}

func TestVerifyExitMismatchFailsRun(t *testing.T) {
	suite := passingSuite(t, "broken-board")
	runner := &testutil.ScriptedRunner{
		Handle: func(inv executor.Invocation) ([]byte, int, error) {
			return []byte("drill file missing\n"), 3, nil
		},
	}
	cmd, buf := newTestRoot(&VerifyOptions{Runner: runner})
	cmd.SetArgs([]string{"--suite", suite})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 scenario(s) failed")

	out := buf.String()
	assert.Contains(t, out, "✗ broken-board\n")
	assert.Contains(t, out, "exit code mismatch: got 3, want 0")
	assert.Contains(t, out, "drill file missing")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestVerifyFailureShowsRemediation(t *testing.T) {
	suite := passingSuite(t, "broken-board")
	runner := &testutil.ScriptedRunner{
		Handle: func(inv executor.Invocation) ([]byte, int, error) {
			return nil, 1, nil
		},
	}
	cmd, buf := newTestRoot(&VerifyOptions{
		Runner: runner,
		Argv:   []string{"pcb2gcode-tester", "--suite", suite},
	})
	cmd.SetArgs([]string{"--suite", suite})

	err := cmd.Execute()
	require.Error(t, err)

	want := "\n***\nRun one of these:\npcb2gcode-tester --fix\npcb2gcode-tester --fix --add\n***\n"
	assert.Contains(t, buf.String(), want)
}

func TestVerifyDiffFailsRun(t *testing.T) {
	scDir := filepath.Join(t.TempDir(), "milling")
	require.NoError(t, os.MkdirAll(filepath.Join(scDir, "expected"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(scDir, "expected", "out.ngc"),
		[]byte("G1 X0 Y0\nG1 X1 Y1\n"), 0o644))
	suite := writeSuiteFile(t, fmt.Sprintf(`scenarios:
  - name: milling
    dir: %s
`, scDir))

	runner := &testutil.ScriptedRunner{
		Handle: func(inv executor.Invocation) ([]byte, int, error) {
			outDir := testutil.OutputDir(inv)
			if err := os.WriteFile(filepath.Join(outDir, "out.ngc"),
				[]byte("G1 X0 Y0\nG1 X2 Y2\n"), 0o644); err != nil {
				return nil, 0, err
			}
			return nil, 0, nil
		},
	}
	cmd, buf := newTestRoot(&VerifyOptions{Runner: runner})
	cmd.SetArgs([]string{"--suite", suite})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out := buf.String()
	assert.Contains(t, out, "✗ milling\n")
	assert.Contains(t, out, "Files don't match:")
	assert.Contains(t, out, "out.ngc")
	assert.Contains(t, out, "-G1 X1 Y1")
	assert.Contains(t, out, "+G1 X2 Y2")
}

func TestVerifyExpectedNonzeroExitPasses(t *testing.T) {
	scDir := filepath.Join(t.TempDir(), "version-check")
	suite := writeSuiteFile(t, fmt.Sprintf(`scenarios:
  - name: version-check
    dir: %s
    exit_code: 2
`, scDir))

	runner := &testutil.ScriptedRunner{
		Handle: func(inv executor.Invocation) ([]byte, int, error) {
			return []byte("usage: pcb2gcode ...\n"), 2, nil
		},
	}
	cmd, buf := newTestRoot(&VerifyOptions{Runner: runner})
	cmd.SetArgs([]string{"--suite", suite})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ version-check\n")
	assert.Contains(t, buf.String(), "✓ All scenarios passed")
}

func TestVerifyTestsFilter(t *testing.T) {
	suite := passingSuite(t, "alpha", "beta", "alpha-deep")
	runner := &testutil.ScriptedRunner{}
	cmd, buf := newTestRoot(&VerifyOptions{Runner: runner})
	cmd.SetArgs([]string{"--suite", suite, "--tests", "alpha"})

	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "✓ alpha\n")
	assert.Contains(t, out, "✓ alpha-deep\n")
	assert.NotContains(t, out, "beta")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Len(t, runner.Calls(), 2)
}

func TestVerifyNoScenariosMatched(t *testing.T) {
	suite := passingSuite(t, "alpha")
	runner := &testutil.ScriptedRunner{}
	cmd, buf := newTestRoot(&VerifyOptions{Runner: runner})
	cmd.SetArgs([]string{"--suite", suite, "--tests", "^nothing-matches$"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No scenarios matched.")
	assert.Empty(t, runner.Calls())
}

func TestVerifyInvalidTestsPattern(t *testing.T) {
	cmd, _ := newTestRoot(&VerifyOptions{Runner: &testutil.ScriptedRunner{}})
	cmd.SetArgs([]string{"--tests", "("})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --tests value")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVerifySuiteNotFound(t *testing.T) {
	cmd, _ := newTestRoot(&VerifyOptions{Runner: &testutil.ScriptedRunner{}})
	cmd.SetArgs([]string{"--suite", filepath.Join(t.TempDir(), "missing.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load suite")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVerifyToolNotFound(t *testing.T) {
	suite := passingSuite(t, "alpha")
	// No runner injected: the real execution path stats the tool.
	cmd, _ := newTestRoot(&VerifyOptions{})
	cmd.SetArgs([]string{"--suite", suite, "--tool", filepath.Join(t.TempDir(), "missing-binary")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVerifyTimeoutMarksError(t *testing.T) {
	suite := passingSuite(t, "slow-board")
	runner := &testutil.ScriptedRunner{}
	cmd, buf := newTestRoot(&VerifyOptions{Runner: runner})
	cmd.SetArgs([]string{"--suite", suite, "--timeout", "1ns"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out := buf.String()
	assert.Contains(t, out, "✗ slow-board\n")
	assert.Contains(t, out, "tool did not finish")
}

func TestVerifyJSONOutput(t *testing.T) {
	dir := t.TempDir()
	suite := writeSuiteFile(t, fmt.Sprintf(`scenarios:
  - name: good-board
    dir: %s
  - name: bad-board
    dir: %s
`, filepath.Join(dir, "good-board"), filepath.Join(dir, "bad-board")))

	runner := &testutil.ScriptedRunner{
		Handle: func(inv executor.Invocation) ([]byte, int, error) {
			if strings.HasSuffix(inv.Dir, "bad-board") {
				return []byte("boom\n"), 7, nil
			}
			return nil, 0, nil
		},
	}
	cmd, buf := newTestRoot(&VerifyOptions{Runner: runner})
	cmd.SetArgs([]string{"--suite", suite, "--format", "json"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   VerifyResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp), "output should be pure JSON: %s", buf.String())
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_SCENARIOS_FAILED", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "1 scenario(s) failed")

	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, 2, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "good-board", resp.Data.Scenarios[0].Name)
	assert.Equal(t, "pass", resp.Data.Scenarios[0].Status)
	assert.Equal(t, "bad-board", resp.Data.Scenarios[1].Name)
	assert.Equal(t, "exit", resp.Data.Scenarios[1].Status)
	assert.Equal(t, 7, resp.Data.Scenarios[1].ToolExit)
}

func TestVerifyJSONAllPass(t *testing.T) {
	suite := passingSuite(t, "alpha")
	cmd, buf := newTestRoot(&VerifyOptions{Runner: &testutil.ScriptedRunner{}})
	cmd.SetArgs([]string{"--suite", suite, "--format", "json"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string       `json:"status"`
		Data   VerifyResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.NotEmpty(t, resp.Data.RunID)
}

func TestVerifyRecordsRunInLedger(t *testing.T) {
	dir := t.TempDir()
	suite := writeSuiteFile(t, fmt.Sprintf(`scenarios:
  - name: good-board
    dir: %s
  - name: bad-board
    dir: %s
`, filepath.Join(dir, "good-board"), filepath.Join(dir, "bad-board")))
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	runner := &testutil.ScriptedRunner{
		Handle: func(inv executor.Invocation) ([]byte, int, error) {
			if strings.HasSuffix(inv.Dir, "bad-board") {
				return nil, 9, nil
			}
			return nil, 0, nil
		},
	}
	cmd, _ := newTestRoot(&VerifyOptions{Runner: runner})
	cmd.SetArgs([]string{"--suite", suite, "--db", dbPath})

	err := cmd.Execute()
	require.Error(t, err) // one scenario failed

	st, err := history.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	_, err = uuid.Parse(run.ID)
	assert.NoError(t, err, "run ID should be a UUID")
	assert.Equal(t, "verify", run.Mode)
	assert.Equal(t, 3, run.Workers)
	assert.Equal(t, 1, run.Passed)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 2, run.Total)

	records, err := st.ScenarioHistory(context.Background(), nil, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "good-board", records[0].Name)
	assert.Equal(t, "pass", records[0].Status)
	assert.Equal(t, "bad-board", records[1].Name)
	assert.Equal(t, "exit", records[1].Status)
	assert.Equal(t, 9, records[1].ToolExit)
}

func TestVerifyBrokenLedgerIsNonFatal(t *testing.T) {
	suite := passingSuite(t, "alpha")
	cmd, buf := newTestRoot(&VerifyOptions{Runner: &testutil.ScriptedRunner{}})
	cmd.SetArgs([]string{"--suite", suite, "--db", filepath.Join(t.TempDir(), "no", "such", "dir", "runs.db")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ All scenarios passed")
}
