package meanshift

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// twoPairs is the smallest cloud with two well-separated peaks.
var twoPairs = [][]float64{{0, 0}, {0.1, 0.1}, {5, 5}, {5.1, 4.9}}

// makeBlobs draws perBlob points around each center with Gaussian noise of
// the given spread. Points are grouped by blob, in center order.
func makeBlobs(seed uint64, centers [][]float64, perBlob int, spread float64) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, seed))
	data := make([][]float64, 0, len(centers)*perBlob)
	for _, c := range centers {
		for i := 0; i < perBlob; i++ {
			p := make([]float64, len(c))
			for j := range c {
				p[j] = c[j] + rng.NormFloat64()*spread
			}
			data = append(data, p)
		}
	}
	return data
}

var blobCenters = [][]float64{
	{0, 0, 0},
	{20, 20, 20},
	{40, 0, 20},
}

// labelsEquivalent checks if two label arrays describe the same partition.
func labelsEquivalent(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}

	mapping := make(map[int]int)
	reverse := make(map[int]int)
	for i := range a {
		if mapped, ok := mapping[a[i]]; ok && mapped != b[i] {
			return false
		}
		if rk, ok := reverse[b[i]]; ok && rk != a[i] {
			return false
		}
		mapping[a[i]] = b[i]
		reverse[b[i]] = a[i]
	}
	return true
}

// assertLabelInvariants checks that every point is labeled and that the
// labels in use are exactly 1..len(Peaks).
func assertLabelInvariants(t *testing.T, res *Result, n int) {
	t.Helper()
	require.Len(t, res.Labels, n)
	require.Len(t, res.PeakLabels, len(res.Peaks))

	for k, l := range res.PeakLabels {
		assert.Equal(t, k+1, l, "peak %d label", k)
	}

	used := make(map[int]bool)
	for i, l := range res.Labels {
		assert.Greater(t, l, Unlabeled, "label of point %d", i)
		assert.LessOrEqual(t, l, len(res.Peaks), "label of point %d", i)
		used[l] = true
	}
	assert.Len(t, used, len(res.Peaks))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Zero(t, cfg.Bandwidth)
	assert.False(t, cfg.Optimized)
	assert.Equal(t, 4.0, cfg.SpeedupFactor)
	assert.Equal(t, 0.01, cfg.Threshold)
	assert.Equal(t, 1000, cfg.MaxIterations)
	assert.Equal(t, AlgorithmAuto, cfg.Algorithm)
	assert.Equal(t, 40, cfg.LeafSize)
	assert.Zero(t, cfg.Workers)
	assert.Nil(t, cfg.Rand)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"zero bandwidth", func(c *Config) { c.Bandwidth = 0 }, ErrInvalidBandwidth},
		{"negative bandwidth", func(c *Config) { c.Bandwidth = -1 }, ErrInvalidBandwidth},
		{"NaN bandwidth", func(c *Config) { c.Bandwidth = nan() }, ErrInvalidBandwidth},
		{"infinite bandwidth", func(c *Config) { c.Bandwidth = inf() }, ErrInvalidBandwidth},
		{"speedup factor 1", func(c *Config) { c.Optimized = true; c.SpeedupFactor = 1 }, ErrInvalidSpeedupFactor},
		{"speedup factor below 1", func(c *Config) { c.Optimized = true; c.SpeedupFactor = 0.5 }, ErrInvalidSpeedupFactor},
		{"negative threshold", func(c *Config) { c.Threshold = -0.1 }, nil},
		{"negative max iterations", func(c *Config) { c.MaxIterations = -1 }, nil},
		{"invalid algorithm", func(c *Config) { c.Algorithm = "vptree" }, nil},
		{"negative leaf size", func(c *Config) { c.LeafSize = -3 }, nil},
		{"negative workers", func(c *Config) { c.Workers = -2 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Bandwidth = 1
			tt.mutate(&cfg)
			_, err := Cluster(twoPairs, cfg)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestSpeedupFactorIgnoredWhenNotOptimized(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bandwidth = 1
	cfg.SpeedupFactor = 0.5
	_, err := Cluster(twoPairs, cfg)
	assert.NoError(t, err)
}

func TestClusterEmptyData(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bandwidth = 1

	_, err := Cluster([][]float64{}, cfg)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Cluster(nil, cfg)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestClusterTwoPairs(t *testing.T) {
	for _, optimized := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.Bandwidth = 1
		cfg.Optimized = optimized

		res, err := Cluster(twoPairs, cfg)
		require.NoError(t, err)

		assert.Equal(t, []int{1, 1, 2, 2}, res.Labels, "optimized=%v", optimized)
		require.Len(t, res.Peaks, 2)
		assert.InDeltaSlice(t, []float64{0.05, 0.05}, res.Peaks[0], 1e-12)
		assert.InDeltaSlice(t, []float64{5.05, 4.95}, res.Peaks[1], 1e-12)
		assert.Equal(t, []int{1, 2}, res.PeakLabels)
	}
}

func TestClusterSinglePoint(t *testing.T) {
	for _, optimized := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.Bandwidth = 0.5
		cfg.Optimized = optimized

		res, err := Cluster([][]float64{{3, -1, 7}}, cfg)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, res.Labels)
		require.Len(t, res.Peaks, 1)
		assert.Equal(t, []float64{3, -1, 7}, res.Peaks[0])
		assert.Equal(t, 1, res.Ascents)
	}
}

func TestClusterBlobsLabelInvariants(t *testing.T) {
	data := makeBlobs(7, blobCenters, 50, 0.3)

	for _, optimized := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.Bandwidth = 2
		cfg.Optimized = optimized

		res, err := Cluster(data, cfg)
		require.NoError(t, err)
		assertLabelInvariants(t, res, len(data))
		assert.Equal(t, 3, res.NumClusters(), "optimized=%v", optimized)

		for b := range blobCenters {
			assert.InDeltaSlice(t, blobCenters[b], res.Peaks[b], 0.2)
			for i := b * 50; i < (b+1)*50; i++ {
				assert.Equal(t, b+1, res.Labels[i], "point %d", i)
			}
		}
	}
}

func TestBasicAndOptimizedAgree(t *testing.T) {
	data := makeBlobs(11, blobCenters, 40, 0.5)

	cfg := DefaultConfig()
	cfg.Bandwidth = 3
	basic, err := Cluster(data, cfg)
	require.NoError(t, err)

	cfg.Optimized = true
	opt, err := Cluster(data, cfg)
	require.NoError(t, err)

	assert.Equal(t, basic.NumClusters(), opt.NumClusters())
	assert.True(t, labelsEquivalent(basic.Labels, opt.Labels), "partitions differ")
	assert.Equal(t, basic.Labels, opt.Labels)

	assert.Equal(t, len(data), basic.Ascents)
	assert.Less(t, opt.Ascents, basic.Ascents)
}

func TestClusterIdempotent(t *testing.T) {
	data := makeBlobs(3, blobCenters, 30, 0.8)

	for _, optimized := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.Bandwidth = 2.5
		cfg.Optimized = optimized
		cfg.Seed = 99

		first, err := Cluster(data, cfg)
		require.NoError(t, err)
		second, err := Cluster(data, cfg)
		require.NoError(t, err)

		assert.Equal(t, first.Peaks, second.Peaks)
		assert.Equal(t, first.PeakLabels, second.PeakLabels)
		assert.Equal(t, first.Labels, second.Labels)
	}
}

func TestClusterWorkersDeterministic(t *testing.T) {
	data := makeBlobs(5, blobCenters, 60, 1.0)

	cfg := DefaultConfig()
	cfg.Bandwidth = 2
	cfg.Workers = 1
	want, err := Cluster(data, cfg)
	require.NoError(t, err)

	for _, workers := range []int{2, 3, 8, 500} {
		cfg.Workers = workers
		got, err := Cluster(data, cfg)
		require.NoError(t, err)
		assert.Equal(t, want.Labels, got.Labels, "workers=%d", workers)
		assert.Equal(t, want.Peaks, got.Peaks, "workers=%d", workers)
		assert.Equal(t, want.Iterations, got.Iterations, "workers=%d", workers)
	}
}

func TestClusterTreesMatchBrute(t *testing.T) {
	data := makeBlobs(13, blobCenters, 80, 1.5)

	for _, optimized := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.Bandwidth = 2
		cfg.Optimized = optimized
		cfg.LeafSize = 8

		cfg.Algorithm = AlgorithmBrute
		brute, err := Cluster(data, cfg)
		require.NoError(t, err)

		for _, algo := range []Algorithm{AlgorithmKDTree, AlgorithmBallTree} {
			cfg.Algorithm = algo
			tree, err := Cluster(data, cfg)
			require.NoError(t, err)

			assert.Equal(t, brute.Labels, tree.Labels, "%s optimized=%v", algo, optimized)
			assert.Equal(t, brute.Peaks, tree.Peaks, "%s optimized=%v", algo, optimized)
			assert.Equal(t, brute.Ascents, tree.Ascents, "%s optimized=%v", algo, optimized)
		}
	}
}

// Above 60 dimensions auto selects the ball tree; it must agree with the
// linear scan.
func TestClusterHighDimensionalBallTree(t *testing.T) {
	dims := 64
	centers := [][]float64{make([]float64, dims), make([]float64, dims)}
	for j := range centers[1] {
		centers[1][j] = 10
	}
	data := makeBlobs(21, centers, 60, 0.2)

	for _, optimized := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.Bandwidth = 4
		cfg.Optimized = optimized
		cfg.LeafSize = 10

		auto, err := Cluster(data, cfg)
		require.NoError(t, err)
		assertLabelInvariants(t, auto, len(data))

		cfg.Algorithm = AlgorithmBrute
		brute, err := Cluster(data, cfg)
		require.NoError(t, err)

		assert.Equal(t, brute.Labels, auto.Labels, "optimized=%v", optimized)
		assert.Equal(t, brute.Peaks, auto.Peaks, "optimized=%v", optimized)
	}
}

// Propagation from a later ascent must not take over every member of an
// earlier peak.
func TestClusterOptimizedKeepsEveryPeak(t *testing.T) {
	data := [][]float64{{2.33}, {2.62}, {0.91}, {3.40}, {2.50}, {1.70}, {2.82}, {3.95}, {3.80}}

	for _, algo := range []Algorithm{AlgorithmBrute, AlgorithmKDTree, AlgorithmBallTree} {
		cfg := DefaultConfig()
		cfg.Bandwidth = 1
		cfg.SpeedupFactor = 4
		cfg.Optimized = true
		cfg.Workers = 1
		cfg.Algorithm = algo
		cfg.LeafSize = 2

		res, err := Cluster(data, cfg)
		require.NoError(t, err)
		assertLabelInvariants(t, res, len(data))
		assert.Equal(t, 1, res.Labels[0], "%s: seed of the first peak", algo)
		for _, label := range res.PeakLabels {
			assert.False(t, res.Members(label).IsEmpty(), "%s: peak %d has no members", algo, label)
		}
	}
}

// TestClusterOptimizedRandomClouds checks the label invariants of the
// optimized driver over many small random 1-D clouds.
func TestClusterOptimizedRandomClouds(t *testing.T) {
	rng := rand.New(rand.NewPCG(20, 24))
	for trial := 0; trial < 500; trial++ {
		data := make([][]float64, 3+rng.IntN(12))
		for i := range data {
			data[i] = []float64{rng.Float64() * 4}
		}

		cfg := DefaultConfig()
		cfg.Bandwidth = 1
		cfg.Optimized = true
		cfg.Workers = 1

		res, err := Cluster(data, cfg)
		require.NoError(t, err, "trial %d", trial)
		assertLabelInvariants(t, res, len(data))
	}
}

func TestClusterDense(t *testing.T) {
	m := mat.NewDense(4, 2, []float64{
		0, 0,
		0.1, 0.1,
		5, 5,
		5.1, 4.9,
	})

	cfg := DefaultConfig()
	cfg.Bandwidth = 1
	res, err := ClusterDense(m, cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 2}, res.Labels)
}

func TestClusterContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, optimized := range []bool{false, true} {
		for _, workers := range []int{1, 4} {
			cfg := DefaultConfig()
			cfg.Bandwidth = 1
			cfg.Optimized = optimized
			cfg.Workers = workers

			_, err := ClusterContext(ctx, twoPairs, cfg)
			assert.ErrorIs(t, err, context.Canceled, "optimized=%v workers=%d", optimized, workers)
		}
	}
}

func TestClusterNotConverged(t *testing.T) {
	for _, optimized := range []bool{false, true} {
		metrics := &BasicMetricsCollector{}
		cfg := DefaultConfig()
		cfg.Bandwidth = 1
		cfg.Optimized = optimized
		cfg.MaxIterations = 1
		cfg.Workers = 1
		cfg.Metrics = metrics

		_, err := Cluster(twoPairs, cfg)
		require.ErrorIs(t, err, ErrNotConverged)

		var ce *ConvergenceError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, 0, ce.Index)
		assert.Equal(t, 1, ce.Iterations)
		assert.Greater(t, ce.Shift, DefaultThreshold)

		assert.Equal(t, int64(1), metrics.AscentErrors.Load())
		assert.Equal(t, int64(1), metrics.ClusterErrors.Load())
	}
}

func TestClusterInjectedRand(t *testing.T) {
	data := makeBlobs(17, blobCenters, 20, 0.5)

	cfg := DefaultConfig()
	cfg.Bandwidth = 2
	cfg.Rand = rand.New(rand.NewPCG(1, 2))
	a, err := Cluster(data, cfg)
	require.NoError(t, err)

	cfg.Rand = rand.New(rand.NewPCG(1, 2))
	b, err := Cluster(data, cfg)
	require.NoError(t, err)

	assert.Equal(t, a.Labels, b.Labels)
}

// With Threshold above every first step, each ascent stops after one step
// at the mean of its seed's neighborhood. Seeds 0 and 1 give peaks -0.1 and
// 0.5, 0.6 apart; seed 2 gives 0.2, within Bandwidth/2 of both, so its label
// is drawn from Config.Rand.
func TestClusterTieBreakUsesInjectedRand(t *testing.T) {
	data := [][]float64{{-0.4}, {0.8}, {0.2}}

	seen := make(map[int]bool)
	for seed := uint64(0); seed < 64; seed++ {
		cfg := DefaultConfig()
		cfg.Bandwidth = 1
		cfg.Threshold = 1
		cfg.Workers = 1
		cfg.Rand = rand.New(rand.NewPCG(seed, 7))

		res, err := Cluster(data, cfg)
		require.NoError(t, err)
		require.Len(t, res.Peaks, 2)
		assert.InDeltaSlice(t, []float64{-0.1}, res.Peaks[0], 1e-12)
		assert.InDeltaSlice(t, []float64{0.5}, res.Peaks[1], 1e-12)
		assert.Equal(t, []int{1, 2}, res.Labels[:2])
		assert.Contains(t, []int{1, 2}, res.Labels[2], "seed %d", seed)
		seen[res.Labels[2]] = true

		cfg.Rand = rand.New(rand.NewPCG(seed, 7))
		again, err := Cluster(data, cfg)
		require.NoError(t, err)
		assert.Equal(t, res.Labels, again.Labels, "seed %d", seed)
	}
	assert.Len(t, seen, 2, "tie-break never picked one of the two peaks")
}

func TestMeanShiftFunctions(t *testing.T) {
	labels, peaks, err := MeanShift(twoPairs, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 2}, labels)
	assert.Len(t, peaks, 2)

	labels, peaks, err = MeanShiftOpt(twoPairs, 1, 4, rand.New(rand.NewPCG(5, 5)))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 2}, labels)
	assert.Len(t, peaks, 2)
}

func TestMeanShiftErrors(t *testing.T) {
	_, _, err := MeanShift(twoPairs, -1, nil)
	assert.ErrorIs(t, err, ErrInvalidBandwidth)

	_, _, err = MeanShift(nil, 1, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	for _, c := range []float64{0, 1, -2, nan()} {
		_, _, err = MeanShiftOpt(twoPairs, 1, c, nil)
		assert.ErrorIs(t, err, ErrInvalidSpeedupFactor, "c=%v", c)
	}
}
