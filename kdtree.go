package meanshift

import (
	"math"
	"sort"
)

// pruneSlack widens the bounds used to skip tree nodes, so rounding in the
// box or ball distance never drops a point that the exact distance test in
// the leaf would accept.
const pruneSlack = 1e-9

// KDTree is a KD-tree over a fixed point cloud used to answer bandwidth
// neighborhood queries. Points are stored in a flat row-major array and
// reordered internally via an index permutation array.
//
// The tree is stored as a complete binary tree in array form:
//   - node i has children at 2*i+1 and 2*i+2
//   - node bounds are stored as min/max per dimension per node
type KDTree struct {
	data     []float64 // flat row-major point data (n * dims)
	n        int       // number of points
	dims     int       // dimensionality
	leafSize int
	idxArray []int      // permutation: tree-order position → original index
	nodes    []nodeData // one entry per tree node
	// nodeBoundsMin[node*dims + j] = min value of feature j in node
	nodeBoundsMin []float64
	// nodeBoundsMax[node*dims + j] = max value of feature j in node
	nodeBoundsMax []float64
	numNodes      int
}

// NewKDTree builds a KD-tree from flat row-major data with n points of
// dimensionality dims. leafSize controls the max points per leaf node.
// The tree keeps a reference to data; callers must not modify it afterwards.
func NewKDTree(data []float64, n, dims, leafSize int) *KDTree {
	if leafSize < 1 {
		leafSize = 1
	}

	idxArray := make([]int, n)
	for i := range idxArray {
		idxArray[i] = i
	}

	maxNodes := kdMaxNodes(n, leafSize)

	t := &KDTree{
		data:          data,
		n:             n,
		dims:          dims,
		leafSize:      leafSize,
		idxArray:      idxArray,
		nodes:         make([]nodeData, maxNodes),
		nodeBoundsMin: make([]float64, maxNodes*dims),
		nodeBoundsMax: make([]float64, maxNodes*dims),
	}

	if n > 0 {
		t.buildNode(0, 0, n)
		t.numNodes = kdCountNodes(t.nodes, 0, len(t.nodes))
	}

	return t
}

// kdMaxNodes returns an upper bound on the number of nodes needed for a
// binary tree with n points and the given leaf size.
func kdMaxNodes(n, leafSize int) int {
	if n == 0 {
		return 1
	}
	leaves := (n + leafSize - 1) / leafSize
	depth := 0
	for v := 1; v < leaves; v *= 2 {
		depth++
	}
	return (1 << (depth + 1)) - 1 + 2
}

// kdCountNodes counts how many nodes were actually initialized by the build.
func kdCountNodes(nodes []nodeData, nodeID, maxNodes int) int {
	if nodeID >= maxNodes {
		return 0
	}
	if nodes[nodeID].idxStart == 0 && nodes[nodeID].idxEnd == 0 && nodeID != 0 {
		return 0
	}
	count := 1
	if !nodes[nodeID].isLeaf {
		count += kdCountNodes(nodes, 2*nodeID+1, maxNodes)
		count += kdCountNodes(nodes, 2*nodeID+2, maxNodes)
	}
	return count
}

// buildNode recursively builds the tree for points in idxArray[start:end].
func (t *KDTree) buildNode(nodeID, start, end int) {
	for nodeID >= len(t.nodes) {
		t.nodes = append(t.nodes, nodeData{})
		t.nodeBoundsMin = append(t.nodeBoundsMin, make([]float64, t.dims)...)
		t.nodeBoundsMax = append(t.nodeBoundsMax, make([]float64, t.dims)...)
	}

	t.computeNodeBounds(nodeID, start, end)

	count := end - start
	if count <= t.leafSize {
		t.nodes[nodeID] = nodeData{idxStart: start, idxEnd: end, isLeaf: true}
		return
	}

	// Split on the dimension with the greatest spread.
	splitDim := 0
	maxSpread := -1.0
	for d := 0; d < t.dims; d++ {
		spread := t.nodeBoundsMax[nodeID*t.dims+d] - t.nodeBoundsMin[nodeID*t.dims+d]
		if spread > maxSpread {
			maxSpread = spread
			splitDim = d
		}
	}

	// A box with zero spread holds identical points; splitting it further
	// buys nothing.
	if maxSpread == 0 {
		t.nodes[nodeID] = nodeData{idxStart: start, idxEnd: end, isLeaf: true}
		return
	}

	t.sortByDimension(start, end, splitDim)
	mid := start + count/2

	t.nodes[nodeID] = nodeData{idxStart: start, idxEnd: end, isLeaf: false}

	t.buildNode(2*nodeID+1, start, mid)
	t.buildNode(2*nodeID+2, mid, end)
}

// computeNodeBounds computes min/max per dimension for points idxArray[start:end].
func (t *KDTree) computeNodeBounds(nodeID, start, end int) {
	base := nodeID * t.dims
	for d := 0; d < t.dims; d++ {
		t.nodeBoundsMin[base+d] = math.Inf(1)
		t.nodeBoundsMax[base+d] = math.Inf(-1)
	}
	for i := start; i < end; i++ {
		row := t.point(t.idxArray[i])
		for d, v := range row {
			if v < t.nodeBoundsMin[base+d] {
				t.nodeBoundsMin[base+d] = v
			}
			if v > t.nodeBoundsMax[base+d] {
				t.nodeBoundsMax[base+d] = v
			}
		}
	}
}

// sortByDimension sorts idxArray[start:end] by the given dimension.
func (t *KDTree) sortByDimension(start, end, dim int) {
	sub := t.idxArray[start:end]
	dims := t.dims
	data := t.data
	sort.Slice(sub, func(i, j int) bool {
		return data[sub[i]*dims+dim] < data[sub[j]*dims+dim]
	})
}

func (t *KDTree) point(i int) []float64 { return t.data[i*t.dims : (i+1)*t.dims] }

func (t *KDTree) NumPoints() int { return t.n }

// nodeList returns the metadata for every built node in preorder.
func (t *KDTree) nodeList() []nodeData {
	return collectNodes(t.nodes, t.n, t.numNodes)
}

// Within appends the indices of all points within radius of query to buf,
// sorted ascending. The inclusion test is the same Euclidean comparison the
// brute-force scan uses.
func (t *KDTree) Within(query []float64, radius float64, buf []int) []int {
	if t.n == 0 {
		return buf
	}
	start := len(buf)
	bound := radius * radius * (1 + pruneSlack)
	buf = t.within(0, query, radius, bound, buf)
	sortIndices(buf[start:])
	return buf
}

func (t *KDTree) within(nodeID int, query []float64, radius, bound float64, buf []int) []int {
	if nodeID >= len(t.nodes) {
		return buf
	}
	base := nodeID * t.dims
	lo := t.nodeBoundsMin[base : base+t.dims]
	hi := t.nodeBoundsMax[base : base+t.dims]
	if boxDistSq(query, lo, hi) > bound {
		return buf
	}

	node := t.nodes[nodeID]
	if node.isLeaf {
		for i := node.idxStart; i < node.idxEnd; i++ {
			ptIdx := t.idxArray[i]
			if euclidean(query, t.point(ptIdx)) <= radius {
				buf = append(buf, ptIdx)
			}
		}
		return buf
	}

	buf = t.within(2*nodeID+1, query, radius, bound, buf)
	return t.within(2*nodeID+2, query, radius, bound, buf)
}
