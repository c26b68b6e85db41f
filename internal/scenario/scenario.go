// Package scenario declares which fixture boards the harness runs and
// loads operator-supplied suite files.
package scenario

import (
	"fmt"
	"regexp"
)

// Scenario is one table entry: a fixture directory to run the tool in,
// the extra arguments to pass, and the exit status the run must end
// with.
type Scenario struct {
	// Name identifies the scenario in reports, filters and the run
	// ledger. Unique within a table.
	Name string `yaml:"name"`

	// Dir is the fixture directory, relative to the repository root
	// the harness runs in. The tool executes with Dir as its working
	// directory; expectations live in Dir/expected.
	Dir string `yaml:"dir"`

	// Args are extra command line arguments for the tool.
	Args []string `yaml:"args"`

	// ExitCode is the status the tool must exit with. Scenarios with a
	// non-zero ExitCode skip fixture comparison.
	ExitCode int `yaml:"exit_code"`
}

// Filter returns the scenarios whose names match expr, preserving
// table order. The expression is unanchored, matching anywhere in the
// name; an empty expr keeps everything.
func Filter(scs []Scenario, expr string) ([]Scenario, error) {
	if expr == "" {
		return scs, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid scenario filter %q: %w", expr, err)
	}
	var out []Scenario
	for _, sc := range scs {
		if re.MatchString(sc.Name) {
			out = append(out, sc)
		}
	}
	return out, nil
}

// validateTable rejects tables no run could report coherently.
func validateTable(scs []Scenario) error {
	seen := make(map[string]int, len(scs))
	for i, sc := range scs {
		if sc.Name == "" {
			return fmt.Errorf("scenario %d: name is required", i)
		}
		if sc.Dir == "" {
			return fmt.Errorf("scenario %d (%s): dir is required", i, sc.Name)
		}
		if sc.ExitCode < 0 || sc.ExitCode > 255 {
			return fmt.Errorf("scenario %d (%s): exit_code %d outside 0-255", i, sc.Name, sc.ExitCode)
		}
		if prev, dup := seen[sc.Name]; dup {
			return fmt.Errorf("scenario %d (%s): name already used by scenario %d", i, sc.Name, prev)
		}
		seen[sc.Name] = i
	}
	return nil
}
