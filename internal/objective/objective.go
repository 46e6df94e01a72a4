package objective

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/paramsearch/internal/space"
)

// Function maps a point of the parameter space to a real value.
// Implementations must be pure: no I/O, no retained state, and safe to
// call from many goroutines at once.
type Function interface {
	// Evaluate computes the output for p. It returns an *EvaluationError
	// when p has no finite output.
	Evaluate(p space.Point) (float64, error)

	// Name returns the name of the objective function.
	Name() string
}

// ObjectiveType names a registered objective function
type ObjectiveType string

const (
	// ObjectiveAPLL is the ESP32 audio PLL output frequency
	ObjectiveAPLL ObjectiveType = "apll"
)

// New creates an objective function from a type string
func New(objType string, baseScale float64) (Function, error) {
	switch ObjectiveType(objType) {
	case ObjectiveAPLL, "":
		return APLL{BaseScale: baseScale}, nil
	default:
		return nil, &UnknownObjectiveError{ObjectiveType: objType}
	}
}

// APLL computes the audio PLL output frequency:
//
//	f_out = f_xtal * (sdm2 + sdm1/2^8 + sdm0/2^16 + 4) / (2 * (odiv + 2))
//
// with p0=sdm0, p1=sdm1, p2=sdm2, p3=odiv and BaseScale=f_xtal. The axis
// order follows the register layout, so p2 is the integer numerator term
// and p3 the divider.
type APLL struct {
	BaseScale float64
}

func (a APLL) Name() string {
	return string(ObjectiveAPLL)
}

func (a APLL) Evaluate(p space.Point) (float64, error) {
	denom := 2 * float64(p[3]+2)
	if denom == 0 {
		return 0, &EvaluationError{Point: p, Reason: "zero output divider"}
	}
	num := float64(p[2]) + float64(p[1])/256 + float64(p[0])/65536 + 4
	return Finite(p, a.BaseScale*num/denom)
}

// Func adapts a plain function to Function.
type Func struct {
	Label string
	Fn    func(space.Point) (float64, error)
}

func (f Func) Name() string {
	if f.Label == "" {
		return "func"
	}
	return f.Label
}

func (f Func) Evaluate(p space.Point) (float64, error) {
	return f.Fn(p)
}

// Finite returns v unchanged, or an *EvaluationError if v is NaN or infinite.
func Finite(p space.Point, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &EvaluationError{Point: p, Reason: fmt.Sprintf("non-finite output %v", v)}
	}
	return v, nil
}

// UnknownObjectiveError indicates an unknown objective type
type UnknownObjectiveError struct {
	ObjectiveType string
}

func (e *UnknownObjectiveError) Error() string {
	return "unknown objective type: " + e.ObjectiveType
}

// EvaluationError indicates a point for which no finite output exists.
// Searchers skip such points instead of failing.
type EvaluationError struct {
	Point  space.Point
	Reason string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("cannot evaluate %v: %s", e.Point, e.Reason)
}
