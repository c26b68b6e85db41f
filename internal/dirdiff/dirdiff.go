// Package dirdiff compares two flat directories of text artifacts and
// renders their differences as unified diffs.
//
// The output is patch(1) food: file pairs diff under quoted labels
// supplied by the caller, one-sided files diff against /dev/null, and a
// "Found X but not Y." sentence precedes each one-sided entry. Running
// the collected output through patch -p1 at the repository root rewrites
// the expected fixtures in place, which is how the fix workflow
// regenerates expectations.
package dirdiff

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const devNull = "/dev/null"

// Compare diffs the files of left against the files of right and
// returns the rendered report, empty when both sides agree.
//
// Only immediate children are compared; sub-directories are skipped. A
// missing directory reads as empty, so every file on the other side
// reports as one-sided. leftLabel and rightLabel name the directories
// in headers and Found lines; real filesystem paths never appear in the
// output.
func Compare(left, right, leftLabel, rightLabel string) (string, error) {
	leftNames, err := fileNames(left)
	if err != nil {
		return "", err
	}
	rightNames, err := fileNames(right)
	if err != nil {
		return "", err
	}
	leftSet := nameSet(leftNames)
	rightSet := nameSet(rightNames)

	var out strings.Builder
	for _, name := range leftNames {
		if rightSet[name] {
			continue
		}
		lf := path.Join(leftLabel, name)
		rf := path.Join(rightLabel, name)
		fmt.Fprintf(&out, "Found %s but not %s.\n", lf, rf)
		lines, err := readLines(filepath.Join(left, name))
		if err != nil {
			return "", err
		}
		if err := writeUnified(&out, lines, nil, quote(lf), devNull); err != nil {
			return "", err
		}
	}
	for _, name := range rightNames {
		if leftSet[name] {
			continue
		}
		lf := path.Join(leftLabel, name)
		rf := path.Join(rightLabel, name)
		fmt.Fprintf(&out, "Found %s but not %s.\n", rf, lf)
		lines, err := readLines(filepath.Join(right, name))
		if err != nil {
			return "", err
		}
		if err := writeUnified(&out, nil, lines, devNull, quote(rf)); err != nil {
			return "", err
		}
	}
	for _, name := range leftNames {
		if !rightSet[name] {
			continue
		}
		leftData, err := os.ReadFile(filepath.Join(left, name))
		if err != nil {
			return "", err
		}
		rightData, err := os.ReadFile(filepath.Join(right, name))
		if err != nil {
			return "", err
		}
		if bytes.Equal(leftData, rightData) {
			continue
		}
		lf := quote(path.Join(leftLabel, name))
		rf := quote(path.Join(rightLabel, name))
		if err := writeUnified(&out, toLines(leftData), toLines(rightData), lf, rf); err != nil {
			return "", err
		}
	}
	return out.String(), nil
}

// fileNames lists the regular entries of dir in lexical order (the
// order os.ReadDir guarantees). A missing directory yields nil.
func fileNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return toLines(data), nil
}

// toLines splits file content the way the differ consumes it: every
// line keeps its terminator and a file without a final newline yields a
// last line without one. difflib.SplitLines is deliberately not used;
// it appends a phantom empty line that would surface in every diff.
func toLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func writeUnified(out *strings.Builder, a, b []string, fromFile, toFile string) error {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  3,
	})
	if err != nil {
		return err
	}
	out.WriteString(text)
	return nil
}

// quote wraps a diff label so patch(1) keeps names with spaces intact.
func quote(label string) string {
	return `"` + label + `"`
}
