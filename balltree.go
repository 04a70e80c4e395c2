package meanshift

import (
	"math"
	"sort"
)

// BallTree is a ball tree over a fixed point cloud used to answer bandwidth
// neighborhood queries in high dimensions, where KD-tree boxes stop pruning.
// Each node stores a centroid and radius defining a ball that encloses all
// of its points.
//
// The tree is stored as a complete binary tree in array form:
//   - node i has children at 2*i+1 and 2*i+2
//   - centroids[node*dims .. (node+1)*dims) is the centroid of node
type BallTree struct {
	data      []float64 // flat row-major point data (n * dims)
	n         int       // number of points
	dims      int       // dimensionality
	leafSize  int
	idxArray  []int      // permutation: tree-order position → original index
	nodes     []nodeData // one entry per tree node; radius is used
	centroids []float64
	numNodes  int
}

// NewBallTree builds a ball tree from flat row-major data with n points of
// dimensionality dims. leafSize controls the max points per leaf node.
// The tree keeps a reference to data; callers must not modify it afterwards.
func NewBallTree(data []float64, n, dims, leafSize int) *BallTree {
	if leafSize < 1 {
		leafSize = 1
	}

	idxArray := make([]int, n)
	for i := range idxArray {
		idxArray[i] = i
	}

	maxNodes := kdMaxNodes(n, leafSize) // same shape bound as the KD-tree
	t := &BallTree{
		data:      data,
		n:         n,
		dims:      dims,
		leafSize:  leafSize,
		idxArray:  idxArray,
		nodes:     make([]nodeData, maxNodes),
		centroids: make([]float64, maxNodes*dims),
	}

	if n > 0 {
		t.buildNode(0, 0, n)
		t.numNodes = kdCountNodes(t.nodes, 0, len(t.nodes))
	}

	return t
}

// buildNode recursively builds the ball tree for points in idxArray[start:end].
func (t *BallTree) buildNode(nodeID, start, end int) {
	for nodeID >= len(t.nodes) {
		t.nodes = append(t.nodes, nodeData{})
		t.centroids = append(t.centroids, make([]float64, t.dims)...)
	}

	centroid := t.centroid(nodeID)
	centroidOf(centroid, t.data, t.dims, t.idxArray[start:end])

	// Radius: max distance from centroid to any point in this node.
	var radius float64
	for i := start; i < end; i++ {
		if d := euclidean(centroid, t.point(t.idxArray[i])); d > radius {
			radius = d
		}
	}

	count := end - start
	if count <= t.leafSize {
		t.nodes[nodeID] = nodeData{idxStart: start, idxEnd: end, isLeaf: true, radius: radius}
		return
	}

	// Identical points cannot be split further.
	splitDim, spread := t.findSpreadDim(start, end)
	if spread == 0 {
		t.nodes[nodeID] = nodeData{idxStart: start, idxEnd: end, isLeaf: true, radius: radius}
		return
	}
	t.nodes[nodeID] = nodeData{idxStart: start, idxEnd: end, isLeaf: false, radius: radius}

	t.sortByDim(start, end, splitDim)
	mid := start + count/2

	t.buildNode(2*nodeID+1, start, mid)
	t.buildNode(2*nodeID+2, mid, end)
}

// findSpreadDim returns the dimension with the greatest spread among
// points in idxArray[start:end], and that spread.
func (t *BallTree) findSpreadDim(start, end int) (int, float64) {
	bestDim := 0
	bestSpread := -1.0
	for d := 0; d < t.dims; d++ {
		minVal := math.Inf(1)
		maxVal := math.Inf(-1)
		for i := start; i < end; i++ {
			v := t.data[t.idxArray[i]*t.dims+d]
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
		if spread := maxVal - minVal; spread > bestSpread {
			bestSpread = spread
			bestDim = d
		}
	}
	return bestDim, bestSpread
}

// sortByDim sorts idxArray[start:end] by the given dimension.
func (t *BallTree) sortByDim(start, end, dim int) {
	sub := t.idxArray[start:end]
	dims := t.dims
	data := t.data
	sort.Slice(sub, func(i, j int) bool {
		return data[sub[i]*dims+dim] < data[sub[j]*dims+dim]
	})
}

func (t *BallTree) point(i int) []float64 { return t.data[i*t.dims : (i+1)*t.dims] }

func (t *BallTree) centroid(nodeID int) []float64 {
	return t.centroids[nodeID*t.dims : (nodeID+1)*t.dims]
}

func (t *BallTree) NumPoints() int { return t.n }

// Within appends the indices of all points within radius of query to buf,
// sorted ascending. The inclusion test is the same Euclidean comparison the
// brute-force scan uses.
func (t *BallTree) Within(query []float64, radius float64, buf []int) []int {
	if t.n == 0 {
		return buf
	}
	start := len(buf)
	buf = t.within(0, query, radius, buf)
	sortIndices(buf[start:])
	return buf
}

func (t *BallTree) within(nodeID int, query []float64, radius float64, buf []int) []int {
	if nodeID >= len(t.nodes) {
		return buf
	}
	node := t.nodes[nodeID]

	// Every point of the node lies within node.radius of its centroid, so
	// the ball can be skipped when the query is farther than the sum.
	reach := radius + node.radius
	if euclidean(query, t.centroid(nodeID)) > reach*(1+pruneSlack)+pruneSlack {
		return buf
	}

	if node.isLeaf {
		for i := node.idxStart; i < node.idxEnd; i++ {
			ptIdx := t.idxArray[i]
			if euclidean(query, t.point(ptIdx)) <= radius {
				buf = append(buf, ptIdx)
			}
		}
		return buf
	}

	buf = t.within(2*nodeID+1, query, radius, buf)
	return t.within(2*nodeID+2, query, radius, buf)
}

// nodeList returns the metadata for every built node in preorder.
func (t *BallTree) nodeList() []nodeData {
	return collectNodes(t.nodes, t.n, t.numNodes)
}
