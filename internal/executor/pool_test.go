package executor_test

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyal0/pcb2gcode-tester/internal/executor"
	"github.com/eyal0/pcb2gcode-tester/internal/scenario"
	"github.com/eyal0/pcb2gcode-tester/internal/testutil"
)

// failureTable builds scenarios that need no fixtures on disk: each
// pins exit 100, so a handler returning 100 passes and anything else
// fails without touching the filesystem.
func failureTable(names ...string) []scenario.Scenario {
	scs := make([]scenario.Scenario, len(names))
	for i, name := range names {
		scs[i] = scenario.Scenario{Name: name, Dir: "fixtures/" + name, ExitCode: 100}
	}
	return scs
}

func TestPoolRunReportsInTableOrder(t *testing.T) {
	table := failureTable("s0", "s1", "s2", "s3")
	gates := make(map[string]chan struct{}, len(table))
	for _, sc := range table {
		gates[sc.Name] = make(chan struct{})
	}

	runner := &testutil.ScriptedRunner{Handle: func(inv executor.Invocation) ([]byte, int, error) {
		<-gates[path.Base(inv.Dir)]
		return nil, 100, nil
	}}
	pool := &executor.Pool{
		Workers: len(table),
		Exec:    &executor.Executor{Tool: "/usr/bin/pcb2gcode", Runner: runner},
	}

	// Release the scenarios back to front. Whatever order they finish
	// in, the emitted order must be the table order.
	go func() {
		for i := len(table) - 1; i >= 0; i-- {
			close(gates[table[i].Name])
			time.Sleep(10 * time.Millisecond)
		}
	}()

	var emitted []string
	passed, failed := pool.Run(context.Background(), table, func(o executor.Outcome) {
		emitted = append(emitted, o.Scenario.Name)
	})

	assert.Equal(t, 4, passed)
	assert.Equal(t, 0, failed)
	assert.Equal(t, []string{"s0", "s1", "s2", "s3"}, emitted)
}

func TestPoolRunCounts(t *testing.T) {
	table := failureTable("ok0", "bad0", "ok1", "bad1", "ok2")
	runner := &testutil.ScriptedRunner{Handle: func(inv executor.Invocation) ([]byte, int, error) {
		if path.Base(inv.Dir)[0:2] == "ok" {
			return nil, 100, nil
		}
		return nil, 1, nil
	}}
	pool := &executor.Pool{
		Workers: 2,
		Exec:    &executor.Executor{Tool: "/usr/bin/pcb2gcode", Runner: runner},
	}

	var outcomes []executor.Outcome
	passed, failed := pool.Run(context.Background(), table, func(o executor.Outcome) {
		outcomes = append(outcomes, o)
	})

	assert.Equal(t, 3, passed)
	assert.Equal(t, 2, failed)
	require.Len(t, outcomes, 5)
	assert.Equal(t, executor.StatusExit, outcomes[1].Status)
	assert.Equal(t, 1, outcomes[1].Position)
}

func TestPoolRunOutputDirsAreDistinct(t *testing.T) {
	table := failureTable("a", "b", "c", "d", "e", "f", "g", "h")

	var mu sync.Mutex
	dirs := make(map[string]bool)
	runner := &testutil.ScriptedRunner{Handle: func(inv executor.Invocation) ([]byte, int, error) {
		mu.Lock()
		dirs[testutil.OutputDir(inv)] = true
		mu.Unlock()
		return nil, 100, nil
	}}
	pool := &executor.Pool{
		Workers: 4,
		Exec:    &executor.Executor{Tool: "/usr/bin/pcb2gcode", Runner: runner},
	}

	passed, _ := pool.Run(context.Background(), table, nil)
	assert.Equal(t, len(table), passed)
	assert.Len(t, dirs, len(table))
	assert.False(t, dirs[""])
}

func TestPoolRunEmptyTable(t *testing.T) {
	pool := &executor.Pool{Workers: 3, Exec: &executor.Executor{Runner: &testutil.ScriptedRunner{}}}
	passed, failed := pool.Run(context.Background(), nil, func(executor.Outcome) {
		t.Error("emit called for empty table")
	})
	assert.Equal(t, 0, passed)
	assert.Equal(t, 0, failed)
}

func TestPoolRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	table := failureTable("a", "b", "c")
	pool := &executor.Pool{
		Workers: 2,
		Exec:    &executor.Executor{Tool: "/usr/bin/pcb2gcode", Runner: &testutil.ScriptedRunner{}},
	}

	var outcomes []executor.Outcome
	passed, failed := pool.Run(ctx, table, func(o executor.Outcome) {
		outcomes = append(outcomes, o)
	})

	assert.Equal(t, 0, passed)
	assert.Equal(t, 3, failed)
	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.Equal(t, executor.StatusError, o.Status)
	}
}

func TestPoolRunSingleWorkerKeepsOrder(t *testing.T) {
	table := failureTable("x", "y", "z")
	runner := &testutil.ScriptedRunner{Handle: func(inv executor.Invocation) ([]byte, int, error) {
		return nil, 100, nil
	}}
	pool := &executor.Pool{
		Workers: 0, // below one runs sequentially
		Exec:    &executor.Executor{Tool: "/usr/bin/pcb2gcode", Runner: runner},
	}

	var emitted []string
	pool.Run(context.Background(), table, func(o executor.Outcome) {
		emitted = append(emitted, o.Scenario.Name)
	})
	assert.Equal(t, []string{"x", "y", "z"}, emitted)
}
