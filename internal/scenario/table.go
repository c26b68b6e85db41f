package scenario

import "path/filepath"

// Paths are relative to the pcb2gcode checkout the harness runs in.
const (
	examplesPath       = "testing/gerbv_example"
	brokenExamplesPath = "testing/broken_examples"
)

// fixtureNames lists the boards whose checked-in expectations must
// reproduce byte-for-byte with exit status 0.
var fixtureNames = []string{
	"am-test",
	"am-test-counterclockwise",
	"am-test-extended",
	"am-test-voronoi",
	"am-test-voronoi-extra-passes",
	"am-test-voronoi-front",
	"edge-cuts-inside-cuts",
	"edge-cuts-broken-loop",
	"example_board_al_custom",
	"example_board_al_linuxcnc",
	"invert_gerbers",
	"KNoT-Gateway Mini Starter Board",
	"KNoT_Thing_Starter_Board",
	"mill_masking",
	"mill_masking_voronoi",
	"milldrilldiatest",
	"multivibrator",
	"multivibrator-basename",
	"multivibrator-clockwise",
	"multivibrator-contentions",
	"multivibrator-extra-passes",
	"multivibrator-extra-passes-big",
	"multivibrator-extra-passes-two-isolators",
	"multivibrator-extra-passes-two-isolators-tiles",
	"multivibrator-extra-passes-two-isolators-tiles-al",
	"multivibrator-extra-passes-voronoi",
	"multivibrator-identical-isolators",
	"multivibrator-no-tsp-2opt",
	"multivibrator-no-zbridges",
	"multivibrator_no_export",
	"multivibrator_no_export_milldrill",
	"multivibrator_no_zero_start",
	"multivibrator_pre_post_milling_gcode",
	"multivibrator-two-isolators",
	"multivibrator_xy_offset",
	"multivibrator_xy_offset_zero_start",
	"multi_outline",
	"sharp_corner",
	"sharp_corner_2",
	"silk",
	"silk-lines",
	"slots-milldrill",
	"slots-with-drill",
	"slots-with-drill-and-milldrill",
	"slots-with-drill-metric",
	"slots-with-drills-available",
}

// Default returns the built-in scenario table.
//
// Beyond the fixture boards it pins the tool's failure modes: missing
// layer files, a config file that must be rejected (or tolerated under
// --ignore-warnings), bare --version/--help runs, and an invalid enum
// value, each with the exit status the tool must produce.
func Default() []Scenario {
	scs := make([]Scenario, 0, len(fixtureNames)+10)
	for _, name := range fixtureNames {
		scs = append(scs, Scenario{Name: name, Dir: filepath.Join(examplesPath, name)})
	}
	for _, layer := range []string{"front", "back", "outline", "drill"} {
		scs = append(scs, Scenario{
			Name:     "multivibrator_bad_" + layer,
			Dir:      filepath.Join(examplesPath, "multivibrator"),
			Args:     []string{"--" + layer + "=non_existant_file"},
			ExitCode: 100,
		})
	}
	scs = append(scs,
		Scenario{
			Name:     "broken_invalid-config",
			Dir:      filepath.Join(brokenExamplesPath, "invalid-config"),
			ExitCode: 100,
		},
		Scenario{
			Name: "version",
			Dir:  examplesPath,
			Args: []string{"--version"},
		},
		Scenario{
			Name: "help",
			Dir:  examplesPath,
			Args: []string{"--help"},
		},
		Scenario{
			Name:     "tsp_2opt_with_millfeedirection",
			Dir:      filepath.Join(examplesPath, "am-test"),
			Args:     []string{"--tsp-2opt", "--mill-feed-direction=climb"},
			ExitCode: 100,
		},
		Scenario{
			Name: "ignore warnings",
			Dir:  filepath.Join(brokenExamplesPath, "invalid-config"),
			Args: []string{"--ignore-warnings"},
		},
		Scenario{
			Name:     "invalid_millfeedirection",
			Dir:      examplesPath,
			Args:     []string{"--mill-feed-direction=invalid_value"},
			ExitCode: 101,
		},
	)
	return scs
}
