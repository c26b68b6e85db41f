package scenario

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed suite_schema.cue
var suiteSchema string

type suiteFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadSuite reads a YAML suite file and returns its scenario table.
//
// Validation runs in two layers:
//  1. The embedded CUE schema checks shape and ranges. Scenario entries
//     unify against a closed definition, so a misspelled field fails
//     loudly instead of defaulting.
//  2. A strict YAML decode plus table-level checks: unique names,
//     non-empty dirs, exit codes within 0-255.
//
// Scenario names are NFC-normalized on load so that fixture names typed
// in decomposed form (macOS file dialogs do this) compare and report
// identically to the checked-in table.
func LoadSuite(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file: %w", err)
	}
	if err := validateSuiteSchema(path, data); err != nil {
		return nil, err
	}

	var suite suiteFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("parsing suite YAML: %w", err)
	}

	scs := suite.Scenarios
	for i := range scs {
		scs[i].Name = norm.NFC.String(scs[i].Name)
	}
	if err := validateTable(scs); err != nil {
		return nil, fmt.Errorf("invalid suite %s: %w", path, err)
	}
	return scs, nil
}

// validateSuiteSchema unifies the suite document with the embedded CUE
// schema and reports every violation it finds.
func validateSuiteSchema(path string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(suiteSchema, cue.Filename("suite_schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling suite schema: %w", err)
	}
	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return fmt.Errorf("parsing suite YAML: %w", err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("building suite document: %w", err)
	}
	if err := schema.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("suite %s does not match schema:\n%s", path, cueerrors.Details(err, nil))
	}
	return nil
}
