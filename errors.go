package meanshift

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when the point cloud has no points or the
	// points have no dimensions.
	ErrEmptyInput = errors.New("meanshift: empty input")

	// ErrInvalidBandwidth is returned when the bandwidth is not a finite
	// positive number.
	ErrInvalidBandwidth = errors.New("meanshift: invalid bandwidth")

	// ErrInvalidSpeedupFactor is returned when the speedup factor c does not
	// satisfy c > 1.
	ErrInvalidSpeedupFactor = errors.New("meanshift: invalid speedup factor")

	// ErrNonFiniteValue is returned when a coordinate is NaN or infinite.
	ErrNonFiniteValue = errors.New("meanshift: non-finite coordinate")

	// ErrNotConverged is returned when an ascent exceeds MaxIterations.
	ErrNotConverged = errors.New("meanshift: ascent failed to converge")
)

// DimensionMismatchError reports a point whose length differs from the first point.
type DimensionMismatchError struct {
	Index    int
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("meanshift: point %d has dimension %d, expected %d", e.Index, e.Actual, e.Expected)
}

// IndexOutOfRangeError reports a seed index outside [0, N).
type IndexOutOfRangeError struct {
	Index int
	N     int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("meanshift: seed index %d out of range [0, %d)", e.Index, e.N)
}

// ConvergenceError describes an ascent that did not settle within the
// iteration cap. It unwraps to ErrNotConverged.
type ConvergenceError struct {
	// Index is the seed point the ascent started from.
	Index int
	// Iterations is the number of steps taken before giving up.
	Iterations int
	// Shift is the size of the last step.
	Shift float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("meanshift: ascent from point %d did not converge after %d iterations (last shift %g)",
		e.Index, e.Iterations, e.Shift)
}

func (e *ConvergenceError) Unwrap() error { return ErrNotConverged }
