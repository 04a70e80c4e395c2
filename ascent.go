package meanshift

import (
	"github.com/bits-and-blooms/bitset"
)

// ascender runs mean-shift ascents over a fixed, read-only point cloud.
// A single ascender is shared by all workers; every call allocates its own
// scratch buffers.
type ascender struct {
	data      []float64
	n, dims   int
	index     neighborIndex
	bandwidth float64
	// inner is the marking radius bandwidth/c; only used by tracked ascents.
	inner     float64
	threshold float64
	maxIter   int
}

// ascent is the outcome of climbing from one seed point.
type ascent struct {
	peak       []float64
	marked     *bitset.BitSet // nil unless the ascent was tracked
	iterations int
}

func (a *ascender) point(i int) []float64 {
	return a.data[i*a.dims : (i+1)*a.dims]
}

// climb moves seed to the centroid of its bandwidth neighborhood until a
// step is no larger than the threshold. The loop always takes at least one
// step. When track is set, every point within the inner radius of any
// position visited before a step is flagged in the returned marker vector;
// flags are never cleared.
func (a *ascender) climb(seed int, track bool) (ascent, error) {
	current := make([]float64, a.dims)
	copy(current, a.point(seed))
	next := make([]float64, a.dims)

	var marked *bitset.BitSet
	if track {
		marked = bitset.New(uint(a.n))
	}

	neighbors := make([]int, 0, 64)
	var shift float64
	for iter := 1; iter <= a.maxIter; iter++ {
		neighbors = a.index.Within(current, a.bandwidth, neighbors[:0])
		if len(neighbors) == 0 {
			// The centroid of a bandwidth ball always has a member within
			// the bandwidth, so this only happens for a degenerate radius.
			return ascent{iterations: iter}, ErrInvalidBandwidth
		}

		if track {
			for _, j := range neighbors {
				if euclidean(current, a.point(j)) <= a.inner {
					marked.Set(uint(j))
				}
			}
		}

		centroidOf(next, a.data, a.dims, neighbors)
		shift = euclidean(current, next)
		current, next = next, current

		if shift <= a.threshold {
			return ascent{peak: current, marked: marked, iterations: iter}, nil
		}
	}

	return ascent{iterations: a.maxIter}, &ConvergenceError{Index: seed, Iterations: a.maxIter, Shift: shift}
}
