// Package executor runs scenarios against the tool under test and
// compares what the tool wrote with the checked-in expectations.
//
// # Flow
//
// Each scenario runs the same way:
//
//  1. Create a private output directory (os.MkdirTemp).
//  2. Run the tool with the scenario's fixture directory as its working
//     directory, prepending --output-dir so artifacts land in the
//     private directory.
//  3. Check the exit status against the scenario's expectation. A
//     scenario that expects failure stops here; a refused run leaves
//     nothing worth comparing.
//  4. Normalize the artifacts (artifact.Normalize) and diff them
//     against the scenario's expected directory (dirdiff.Compare).
//
// The pool fans scenarios out to a fixed number of workers but releases
// outcomes in table order, so interleaved completions never reorder the
// report and its diff output stays stable run over run.
//
// Diff labels put both sides under the scenario's repository-relative
// fixture path, "expected/<dir>/expected" against "actual/<dir>/expected".
// Stripping one component with patch -p1 lands harvested hunks on the
// real fixture files, which is what the fix workflow relies on.
package executor
