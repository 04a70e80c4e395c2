package meanshift

import "slices"

// nodeData describes a single node of a KD-tree or ball tree. The node
// owns idxArray[idxStart:idxEnd]; radius is only set by the ball tree.
type nodeData struct {
	idxStart, idxEnd int
	isLeaf           bool
	radius           float64
}

// collectNodes walks an array-form tree in preorder and returns its nodes.
func collectNodes(nodes []nodeData, n, numNodes int) []nodeData {
	out := make([]nodeData, 0, numNodes)
	if n == 0 {
		return out
	}
	var walk func(nodeID int)
	walk = func(nodeID int) {
		node := nodes[nodeID]
		out = append(out, node)
		if !node.isLeaf {
			walk(2*nodeID + 1)
			walk(2*nodeID + 2)
		}
	}
	walk(0)
	return out
}

// neighborIndex answers flat-kernel neighborhood queries over a fixed point
// cloud.
type neighborIndex interface {
	// Within appends to buf the indices of all points whose Euclidean
	// distance to query is <= radius, in ascending index order, and returns
	// the extended slice.
	Within(query []float64, radius float64, buf []int) []int

	// NumPoints returns the number of points in the index.
	NumPoints() int
}

// bruteIndex scans every point for each query.
type bruteIndex struct {
	data []float64
	n    int
	dims int
}

func newBruteIndex(data []float64, n, dims int) *bruteIndex {
	return &bruteIndex{data: data, n: n, dims: dims}
}

func (b *bruteIndex) NumPoints() int { return b.n }

func (b *bruteIndex) Within(query []float64, radius float64, buf []int) []int {
	for i := 0; i < b.n; i++ {
		if euclidean(query, b.data[i*b.dims:(i+1)*b.dims]) <= radius {
			buf = append(buf, i)
		}
	}
	return buf
}

// newNeighborIndex builds the index for the resolved algorithm.
func newNeighborIndex(algo Algorithm, data []float64, n, dims, leafSize int) neighborIndex {
	switch algo {
	case AlgorithmKDTree:
		return NewKDTree(data, n, dims, leafSize)
	case AlgorithmBallTree:
		return NewBallTree(data, n, dims, leafSize)
	default:
		return newBruteIndex(data, n, dims)
	}
}

// sortIndices sorts idx in place. Tree traversal yields leaves out of index
// order; the ascent sums neighbors in ascending order so that every index
// produces bit-identical centroids.
func sortIndices(idx []int) []int {
	slices.Sort(idx)
	return idx
}
