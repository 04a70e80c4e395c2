package meanshift

import "fmt"

// kdTreeMaxDims is the dimensionality above which AlgorithmAuto switches
// from the KD-tree to the ball tree; box pruning stops paying off in high
// dimensions.
const kdTreeMaxDims = 60

// selectAlgorithm resolves AlgorithmAuto into a concrete neighborhood search
// strategy based on the size and dimensionality of the point cloud.
func selectAlgorithm(cfg Config, n, dims int) (Algorithm, error) {
	switch cfg.Algorithm {
	case AlgorithmAuto:
		if n <= cfg.LeafSize {
			return AlgorithmBrute, nil
		}
		if dims <= kdTreeMaxDims {
			return AlgorithmKDTree, nil
		}
		return AlgorithmBallTree, nil
	case AlgorithmBrute, AlgorithmKDTree, AlgorithmBallTree:
		return cfg.Algorithm, nil
	default:
		return "", fmt.Errorf("meanshift: invalid Algorithm %q", cfg.Algorithm)
	}
}
