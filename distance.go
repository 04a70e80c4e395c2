package meanshift

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// euclidean returns the L2 distance between a and b.
func euclidean(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// boxDistSq returns the squared Euclidean distance from point to the
// axis-aligned box [lo, hi]. It is 0 when the point lies inside the box.
func boxDistSq(point, lo, hi []float64) float64 {
	var sum float64
	for j, v := range point {
		var d float64
		if v < lo[j] {
			d = lo[j] - v
		} else if v > hi[j] {
			d = v - hi[j]
		}
		sum += d * d
	}
	return sum
}

// centroidOf writes the mean of the rows listed in idx into dst.
// Rows are summed in the order given, so callers that pass sorted indices
// get a result independent of how the neighborhood was found.
func centroidOf(dst, data []float64, dims int, idx []int) {
	for k := range dst {
		dst[k] = 0
	}
	for _, i := range idx {
		floats.Add(dst, data[i*dims:(i+1)*dims])
	}
	floats.Scale(1/float64(len(idx)), dst)
}

// flatten copies data into a row-major slice, validating that every row has
// the same length and only finite coordinates.
func flatten(data [][]float64) ([]float64, int, int, error) {
	n := len(data)
	if n == 0 {
		return nil, 0, 0, ErrEmptyInput
	}
	dims := len(data[0])
	if dims == 0 {
		return nil, 0, 0, ErrEmptyInput
	}

	flat := make([]float64, n*dims)
	for i, row := range data {
		if len(row) != dims {
			return nil, 0, 0, &DimensionMismatchError{Index: i, Expected: dims, Actual: len(row)}
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, 0, 0, ErrNonFiniteValue
			}
		}
		copy(flat[i*dims:], row)
	}
	return flat, n, dims, nil
}
