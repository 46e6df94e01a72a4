package search

import (
	"encoding/json"
	"math"

	"github.com/GoSim-25-26J-441/paramsearch/internal/space"
	"github.com/GoSim-25-26J-441/paramsearch/pkg/utils"
)

// Candidate is one evaluated point with its output and distance to the
// target. The distance is computed once by NewCandidate and never changes.
type Candidate struct {
	point    space.Point
	output   float64
	distance float64
}

// NewCandidate builds a candidate for point p whose objective output is
// output, measured against target.
func NewCandidate(p space.Point, output, target float64) Candidate {
	return Candidate{
		point:    p,
		output:   output,
		distance: math.Abs(output - target),
	}
}

// Point returns the evaluated tuple
func (c Candidate) Point() space.Point {
	return c.point
}

// Output returns the objective value at Point
func (c Candidate) Output() float64 {
	return c.output
}

// Distance returns |Output - target|
func (c Candidate) Distance() float64 {
	return c.distance
}

// candidateJSON is the flat record handed to presentation layers
type candidateJSON struct {
	P0       int     `json:"p0"`
	P1       int     `json:"p1"`
	P2       int     `json:"p2"`
	P3       int     `json:"p3"`
	Output   float64 `json:"output"`
	Distance float64 `json:"distance"`
}

func (c Candidate) MarshalJSON() ([]byte, error) {
	return json.Marshal(candidateJSON{
		P0:       c.point[0],
		P1:       c.point[1],
		P2:       c.point[2],
		P3:       c.point[3],
		Output:   c.output,
		Distance: c.distance,
	})
}

// Filter is the optional tolerance pre-filter. It admits an output only if
// output/target lies strictly inside (1-Window, 1+Window). A Window of
// zero or less disables it.
//
// The filter never changes which candidate wins once anything is admitted:
// the global optimum is at least as close as any admitted output, so it is
// admitted too. It can, however, admit nothing at all.
type Filter struct {
	Window float64
}

// Enabled reports whether the filter rejects anything.
func (f Filter) Enabled() bool {
	return f.Window > 0
}

// Admits reports whether output passes the filter for target.
func (f Filter) Admits(output, target float64) bool {
	if !f.Enabled() {
		return true
	}
	return utils.RelativeError(output, target) < f.Window
}
