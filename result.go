package meanshift

import (
	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/mat"
)

// NumClusters returns the number of discovered peaks.
func (r *Result) NumClusters() int { return len(r.Peaks) }

// Members returns the indices of the points carrying label. The bitmap is
// empty for labels that no point carries.
func (r *Result) Members(label int) *roaring.Bitmap {
	bm := roaring.New()
	for i, l := range r.Labels {
		if l == label {
			bm.Add(uint32(i))
		}
	}
	return bm
}

// Clusters returns the member set of every peak; element k holds the points
// labeled k+1.
func (r *Result) Clusters() []*roaring.Bitmap {
	out := make([]*roaring.Bitmap, len(r.Peaks))
	for k := range out {
		out[k] = roaring.New()
	}
	for i, l := range r.Labels {
		if l > 0 && l <= len(out) {
			out[l-1].Add(uint32(i))
		}
	}
	return out
}

// Centers replaces every point by the peak it was assigned to. For a cloud
// of pixel colors this is the segmented image.
func (r *Result) Centers() [][]float64 {
	out := make([][]float64, len(r.Labels))
	for i, l := range r.Labels {
		out[i] = r.Peaks[l-1]
	}
	return out
}

// PeaksDense returns the peaks as a len(Peaks)×d matrix, or nil if there
// are no peaks.
func (r *Result) PeaksDense() *mat.Dense {
	if len(r.Peaks) == 0 {
		return nil
	}
	dims := len(r.Peaks[0])
	m := mat.NewDense(len(r.Peaks), dims, nil)
	for k, p := range r.Peaks {
		m.SetRow(k, p)
	}
	return m
}
