package meanshift

import (
	"math/rand/v2"
)

// Unlabeled is the reserved label of a point that has not been assigned to
// a peak yet. Assigned labels start at 1.
const Unlabeled = 0

// peakSet holds the peaks discovered during one clustering run, in
// discovery order. peak i carries label i+1.
type peakSet struct {
	peaks  [][]float64
	labels []int
}

// near returns the positions (not labels) of all discovered peaks within
// radius of p.
func (ps *peakSet) near(p []float64, radius float64) []int {
	var out []int
	for i, q := range ps.peaks {
		if euclidean(p, q) <= radius {
			out = append(out, i)
		}
	}
	return out
}

// add records p as a new peak and returns its label.
func (ps *peakSet) add(p []float64) int {
	label := len(ps.peaks) + 1
	peak := make([]float64, len(p))
	copy(peak, p)
	ps.peaks = append(ps.peaks, peak)
	ps.labels = append(ps.labels, label)
	return label
}

// assign returns the label for a point whose ascent ended at p. A peak with
// no discovered peak within mergeRadius is added and gets the next label;
// a single match reuses that peak's label; several matches pick one of
// their labels using rng. created reports whether p was added.
func (ps *peakSet) assign(p []float64, mergeRadius float64, rng *rand.Rand) (label int, created bool) {
	matches := ps.near(p, mergeRadius)
	switch len(matches) {
	case 0:
		return ps.add(p), true
	case 1:
		return ps.labels[matches[0]], false
	default:
		return ps.labels[matches[rng.IntN(len(matches))]], false
	}
}
