package harness

import (
	"fmt"

	"gonum.org/v1/gonum/floats/scalar"
)

// Comparison selects how two elements are compared against a threshold.
type Comparison int

const (
	Absolute Comparison = iota
	Relative
	// AbsOrRel accepts an element when either test passes, which keeps
	// near-zero values from failing a relative check.
	AbsOrRel
)

func (c Comparison) String() string {
	switch c {
	case Absolute:
		return "absolute"
	case Relative:
		return "relative"
	case AbsOrRel:
		return "abs-or-rel"
	default:
		return "unknown"
	}
}

// Tolerance is a workload's verification rule.
type Tolerance struct {
	Threshold  float64
	Comparison Comparison
}

func (t Tolerance) String() string {
	return fmt.Sprintf("%s %g", t.Comparison, t.Threshold)
}

func (t Tolerance) within(got, want float64) bool {
	switch t.Comparison {
	case Relative:
		return scalar.EqualWithinRel(got, want, t.Threshold)
	case AbsOrRel:
		return scalar.EqualWithinAbsOrRel(got, want, t.Threshold, t.Threshold)
	default:
		return scalar.EqualWithinAbs(got, want, t.Threshold)
	}
}

// VerificationOutcome is the result of comparing device output with a
// reference. Index is -1 when every element is within tolerance.
type VerificationOutcome struct {
	Pass      bool
	Index     int
	Tolerance Tolerance
	Got       float64
	Want      float64
}

// FirstMismatch returns the smallest index whose elements differ by more
// than the tolerance, or -1. If the lengths differ, the first index past the
// shorter slice counts as a mismatch.
func FirstMismatch(output, reference []float64, tol Tolerance) int {
	n := min(len(output), len(reference))
	for i := 0; i < n; i++ {
		if !tol.within(output[i], reference[i]) {
			return i
		}
	}
	if len(output) != len(reference) {
		return n
	}
	return -1
}

// Verify compares output against reference once.
func Verify(output, reference []float64, tol Tolerance) VerificationOutcome {
	idx := FirstMismatch(output, reference, tol)
	out := VerificationOutcome{Pass: idx == -1, Index: idx, Tolerance: tol}
	if idx >= 0 {
		if idx < len(output) {
			out.Got = output[idx]
		}
		if idx < len(reference) {
			out.Want = reference[idx]
		}
	}
	return out
}
