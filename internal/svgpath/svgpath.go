// Package svgpath parses and canonicalizes the restricted SVG path
// dialect that pcb2gcode emits in its vector exports.
//
// The dialect is a flat polyline form with one leading "M " and one
// trailing " z " wrapping the whole attribute:
//
//	M x1,y1 L x2,y2 L x3,y3M x4,y4 L x5,y5 z
//
// Sub-paths are separated by "M " with no space after the preceding
// coordinate, points by " L ", and coordinate fields by ",". Coordinates are kept as the literal text the tool
// printed, never re-parsed into floats for output, so serialization
// cannot drift from the original bytes.
//
// CRITICAL: Parse is lossless by construction. It re-serializes its
// result and rejects the input unless the round trip is byte-identical.
// Anything richer than the dialect (curves, arcs, unexpected spacing)
// either fails this gate or survives untouched as opaque field text.
package svgpath

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// A Point is one coordinate tuple, stored as its comma-separated fields
// ("1.5,-2" becomes ["1.5" "-2"]).
type Point []string

// Equal reports whether two points carry identical field text.
func (p Point) Equal(q Point) bool {
	return slices.Equal(p, q)
}

// A SubPath is an ordered run of points joined by line segments.
type SubPath []Point

// Closed reports whether the sub-path is a ring: its first and last
// points are textually identical.
func (s SubPath) Closed() bool {
	return len(s) > 0 && s[0].Equal(s[len(s)-1])
}

// A Path holds the ordered sub-paths of one "d" attribute.
type Path []SubPath

// String re-serializes the path in the exact dialect Parse accepts:
// sub-paths joined by "M ", points by " L ", fields by ",".
func (p Path) String() string {
	subs := make([]string, len(p))
	for i, sub := range p {
		pts := make([]string, len(sub))
		for j, pt := range sub {
			pts[j] = strings.Join(pt, ",")
		}
		subs[i] = strings.Join(pts, " L ")
	}
	return "M " + strings.Join(subs, "M ") + " z "
}

// MalformedPathError reports a path string outside the restricted
// dialect, or a ring whose coordinates cannot be ordered numerically.
type MalformedPathError struct {
	// Input is the offending path or point text.
	Input string

	// Reason describes what failed.
	Reason string
}

// Error implements the error interface.
func (e *MalformedPathError) Error() string {
	return fmt.Sprintf("malformed svg path %q: %s", truncate(e.Input, 60), e.Reason)
}

// IsMalformedPath returns true if the error is a MalformedPathError.
// Uses errors.As to handle wrapped errors.
func IsMalformedPath(err error) bool {
	var me *MalformedPathError
	return errors.As(err, &me)
}

// Parse splits a path string into its sub-paths and points.
//
// The string must begin with "M " and end with " z ". Parse then
// re-serializes the result and compares it against the input; any
// mismatch fails with MalformedPathError instead of being silently
// repaired.
func Parse(s string) (Path, error) {
	if len(s) < len("M  z ") || !strings.HasPrefix(s, "M ") || !strings.HasSuffix(s, " z ") {
		return nil, &MalformedPathError{Input: s, Reason: `missing "M " prefix or " z " suffix`}
	}
	body := s[2 : len(s)-3]
	var path Path
	for _, seg := range strings.Split(body, "M ") {
		seg = strings.TrimSpace(seg)
		var sub SubPath
		for _, pt := range strings.Split(seg, " L ") {
			sub = append(sub, Point(strings.Split(pt, ",")))
		}
		path = append(path, sub)
	}
	if path.String() != s {
		return nil, &MalformedPathError{Input: s, Reason: "re-serialization does not reproduce the input"}
	}
	return path, nil
}

// Canonicalize rewrites a path attribute into rotation-independent form.
//
// Closed sub-paths are rotated so the point with the smallest (x, y)
// value leads, ties broken by original position, and the duplicated
// closing point is re-created at the new seam. Open sub-paths pass
// through untouched. The result is a fixed point: canonicalizing it
// again returns the same string.
func Canonicalize(s string) (string, error) {
	path, err := Parse(s)
	if err != nil {
		return "", err
	}
	out := make(Path, len(path))
	for i, sub := range path {
		if !sub.Closed() {
			out[i] = sub
			continue
		}
		rot, err := rotateRing(sub)
		if err != nil {
			return "", err
		}
		out[i] = rot
	}
	return out.String(), nil
}

// rotateRing rotates a closed sub-path so its minimum point leads.
//
// A ring "a b c a" is the cycle a-b-c with the closing point repeated.
// Rotation drops the duplicate, shifts the cycle to start at the
// minimum, and closes it again: for minimum c the result is "c a b c".
func rotateRing(ring SubPath) (SubPath, error) {
	minIdx := -1
	var minX, minY float64
	for i, pt := range ring {
		x, y, err := pointXY(pt)
		if err != nil {
			return nil, err
		}
		if minIdx < 0 || x < minX || (x == minX && y < minY) {
			minIdx, minX, minY = i, x, y
		}
	}
	rot := make(SubPath, 0, len(ring))
	rot = append(rot, ring[minIdx:len(ring)-1]...)
	rot = append(rot, ring[:minIdx+1]...)
	return rot, nil
}

// pointXY interprets the first two fields of a ring point as floats.
// The parsed values order the ring; the field text itself is what gets
// serialized.
func pointXY(pt Point) (x, y float64, err error) {
	if len(pt) < 2 {
		return 0, 0, &MalformedPathError{Input: strings.Join(pt, ","), Reason: "ring point needs x and y fields"}
	}
	x, err = strconv.ParseFloat(pt[0], 64)
	if err == nil {
		y, err = strconv.ParseFloat(pt[1], 64)
	}
	if err != nil {
		return 0, 0, &MalformedPathError{Input: strings.Join(pt, ","), Reason: "ring point is not numeric"}
	}
	return x, y, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
