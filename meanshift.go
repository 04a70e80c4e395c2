package meanshift

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/mat"
)

// Algorithm selects the neighborhood search strategy used by every ascent step.
type Algorithm string

const (
	AlgorithmAuto     Algorithm = "auto"
	AlgorithmBrute    Algorithm = "brute"
	AlgorithmKDTree   Algorithm = "kdtree"
	AlgorithmBallTree Algorithm = "balltree"
)

const (
	// DefaultThreshold is the step size at or below which an ascent is
	// considered converged.
	DefaultThreshold = 0.01

	// DefaultSpeedupFactor is the default c; points within Bandwidth/c of an
	// ascent trajectory inherit the ascent's label.
	DefaultSpeedupFactor = 4.0

	// DefaultMaxIterations caps the number of steps of a single ascent.
	DefaultMaxIterations = 1000

	defaultLeafSize = 40
)

// Config controls mean-shift clustering behavior.
// Start with [DefaultConfig], set Bandwidth, and override the fields you need.
type Config struct {
	// Bandwidth is the flat kernel radius r. Each ascent step moves to the
	// mean of all points within Bandwidth, and peaks closer than Bandwidth/2
	// are treated as the same peak. Must be finite and > 0. No default.
	Bandwidth float64

	// Optimized enables the trajectory-marking driver: points close to an
	// ascent path or within Bandwidth of its peak take the ascent's label
	// and are not climbed from themselves. Default: false.
	Optimized bool

	// SpeedupFactor is c in the marking radius Bandwidth/c. Only used when
	// Optimized is set. Must be finite and > 1. Default: 4.
	SpeedupFactor float64

	// Threshold is the convergence threshold on the step length.
	// 0 means the default. Must be >= 0. Default: 0.01.
	Threshold float64

	// MaxIterations bounds the steps of one ascent; exceeding it fails the
	// run with a *ConvergenceError. 0 means the default. Default: 1000.
	MaxIterations int

	// Algorithm selects the neighborhood search strategy. "auto" uses a
	// linear scan for clouds that fit in one leaf, a KD-tree up to 60
	// dimensions and a ball tree above that. All strategies produce
	// identical results. Default: "auto".
	Algorithm Algorithm

	// LeafSize is the maximum number of points in a tree leaf.
	// Default: 40.
	LeafSize int

	// Workers controls the number of goroutines that run ascents in the
	// basic driver. The optimized driver is sequential. Results do not
	// depend on Workers. 0 means runtime.NumCPU(). Default: 0 (auto).
	Workers int

	// Seed seeds the PCG generator used for the multiple-match tie-break
	// when Rand is nil. Default: 0.
	Seed uint64

	// Rand is the random source for the multiple-match tie-break. When nil,
	// a fresh generator seeded from Seed is used for every run.
	Rand *rand.Rand

	// Logger receives debug and warning records. Default: discards.
	Logger *Logger

	// Metrics receives per-ascent and per-run metrics. Default: no-op.
	Metrics MetricsCollector
}

// Result contains the output of mean-shift clustering.
type Result struct {
	// Labels assigns each point the label of its peak. Labels are 1-based:
	// point i belongs to Peaks[Labels[i]-1].
	Labels []int

	// Peaks lists the discovered density peaks in discovery order.
	Peaks [][]float64

	// PeakLabels[k] is the label assigned to Peaks[k]; always k+1.
	PeakLabels []int

	// Ascents is the number of full ascents that were run. For the basic
	// driver it equals the number of points.
	Ascents int

	// Iterations is the total number of mean-shift steps over all ascents.
	Iterations int
}

// DefaultConfig returns a Config with reasonable defaults. Bandwidth is
// left at zero and must be set by the caller.
func DefaultConfig() Config {
	return Config{
		SpeedupFactor: DefaultSpeedupFactor,
		Threshold:     DefaultThreshold,
		MaxIterations: DefaultMaxIterations,
		Algorithm:     AlgorithmAuto,
		LeafSize:      defaultLeafSize,
	}
}

func checkBandwidth(r float64) error {
	if !(r > 0) || math.IsInf(r, 0) {
		return fmt.Errorf("%w: Bandwidth must be finite and > 0, got %v", ErrInvalidBandwidth, r)
	}
	return nil
}

func checkSpeedupFactor(c float64) error {
	if !(c > 1) || math.IsInf(c, 0) {
		return fmt.Errorf("%w: SpeedupFactor must be finite and > 1, got %v", ErrInvalidSpeedupFactor, c)
	}
	return nil
}

// validateConfig checks that cfg fields are valid and returns a descriptive error if not.
func validateConfig(cfg *Config) error {
	if err := checkBandwidth(cfg.Bandwidth); err != nil {
		return err
	}
	if cfg.Optimized {
		if err := checkSpeedupFactor(cfg.SpeedupFactor); err != nil {
			return err
		}
	}
	if !(cfg.Threshold >= 0) || math.IsInf(cfg.Threshold, 0) {
		return fmt.Errorf("meanshift: Threshold must be finite and >= 0, got %v", cfg.Threshold)
	}
	if cfg.MaxIterations < 1 {
		return fmt.Errorf("meanshift: MaxIterations must be >= 1, got %d", cfg.MaxIterations)
	}
	switch cfg.Algorithm {
	case AlgorithmAuto, AlgorithmBrute, AlgorithmKDTree:
		// valid
	default:
		return fmt.Errorf("meanshift: invalid Algorithm %q", cfg.Algorithm)
	}
	if cfg.LeafSize < 1 {
		return fmt.Errorf("meanshift: LeafSize must be >= 1, got %d", cfg.LeafSize)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("meanshift: Workers must be >= 0 (0 means NumCPU), got %d", cfg.Workers)
	}
	return nil
}

// applyDefaults fills in zero-valued config fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.SpeedupFactor == 0 {
		cfg.SpeedupFactor = DefaultSpeedupFactor
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmAuto
	}
	if cfg.LeafSize == 0 {
		cfg.LeafSize = defaultLeafSize
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	}
	if cfg.Logger == nil {
		cfg.Logger = NoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetricsCollector{}
	}
}

// Cluster performs mean-shift clustering on the given data.
// Each element is a point (float64 slice); all points must have the same
// dimensionality. The data is copied and never modified.
func Cluster(data [][]float64, cfg Config) (*Result, error) {
	return ClusterContext(context.Background(), data, cfg)
}

// ClusterContext is like Cluster but stops between ascents once ctx is done,
// returning ctx.Err().
func ClusterContext(ctx context.Context, data [][]float64, cfg Config) (*Result, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	flat, n, dims, err := flatten(data)
	if err != nil {
		return nil, err
	}

	return clusterFlat(ctx, flat, n, dims, cfg)
}

// ClusterDense clusters the rows of m, e.g. an N×3 matrix of pixel colors.
func ClusterDense(m mat.Matrix, cfg Config) (*Result, error) {
	rows, _ := m.Dims()
	data := make([][]float64, rows)
	for i := range data {
		data[i] = mat.Row(nil, i, m)
	}
	return Cluster(data, cfg)
}

// clusterer owns the mutable state of one run: the label vector and the
// peak set. Only the driver goroutine touches it.
type clusterer struct {
	cfg        Config
	asc        *ascender
	labels     []int
	peaks      peakSet
	ascents    int
	iterations int
	log        *Logger
}

// clusterFlat runs the selected driver over validated, flattened data.
func clusterFlat(ctx context.Context, flat []float64, n, dims int, cfg Config) (*Result, error) {
	start := time.Now()

	algo, err := selectAlgorithm(cfg, n, dims)
	if err != nil {
		return nil, err
	}

	c := &clusterer{
		cfg: cfg,
		asc: &ascender{
			data:      flat,
			n:         n,
			dims:      dims,
			index:     newNeighborIndex(algo, flat, n, dims, cfg.LeafSize),
			bandwidth: cfg.Bandwidth,
			inner:     cfg.Bandwidth / cfg.SpeedupFactor,
			threshold: cfg.Threshold,
			maxIter:   cfg.MaxIterations,
		},
		labels: make([]int, n),
		log:    cfg.Logger.WithBandwidth(cfg.Bandwidth),
	}

	if cfg.Optimized {
		err = c.runOptimized(ctx)
	} else {
		err = c.runBasic(ctx)
	}

	elapsed := time.Since(start)
	cfg.Metrics.RecordCluster(n, len(c.peaks.peaks), c.ascents, elapsed, err)
	c.log.logRun(algo, cfg.Optimized, n, len(c.peaks.peaks), c.ascents, elapsed, err)
	if err != nil {
		return nil, err
	}

	return &Result{
		Labels:     c.labels,
		Peaks:      c.peaks.peaks,
		PeakLabels: c.peaks.labels,
		Ascents:    c.ascents,
		Iterations: c.iterations,
	}, nil
}

// runBasic climbs from every point, in parallel, then assigns labels
// sequentially in index order so that peak discovery order and the
// tie-break draws do not depend on scheduling.
func (c *clusterer) runBasic(ctx context.Context) error {
	results, err := ascendAll(ctx, c.asc, c.cfg.Workers, c.cfg.Metrics)
	if err != nil {
		c.noteFailure(err)
		return err
	}

	c.ascents = len(results)
	for i, res := range results {
		c.iterations += res.iterations
		c.labels[i] = c.resolve(i, res.peak)
	}
	return nil
}

// runOptimized climbs only from points that are still unlabeled. After each
// ascent, the ascent's label is written to every still-unlabeled point
// within Bandwidth of the final peak or marked along the trajectory.
// A point keeps the first label it receives, so every peak retains at least
// the seed it was discovered from.
func (c *clusterer) runOptimized(ctx context.Context) error {
	a := c.asc
	basin := bitset.New(uint(a.n))
	var neighbors []int

	for i := 0; i < a.n; i++ {
		if c.labels[i] != Unlabeled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := a.climb(i, true)
		c.cfg.Metrics.RecordAscent(res.iterations, err)
		if err != nil {
			c.noteFailure(err)
			return err
		}
		c.ascents++
		c.iterations += res.iterations

		label := c.resolve(i, res.peak)
		c.labels[i] = label

		basin.ClearAll()
		neighbors = a.index.Within(res.peak, a.bandwidth, neighbors[:0])
		for _, j := range neighbors {
			basin.Set(uint(j))
		}
		basin.InPlaceUnion(res.marked)

		for j, ok := basin.NextSet(0); ok; j, ok = basin.NextSet(j + 1) {
			if c.labels[j] == Unlabeled {
				c.labels[j] = label
			}
		}
	}
	return nil
}

// resolve maps an ascent's end point to a label, growing the peak set when
// the point is a new peak.
func (c *clusterer) resolve(seed int, peak []float64) int {
	label, created := c.peaks.assign(peak, c.cfg.Bandwidth/2, c.cfg.Rand)
	if created {
		c.log.logNewPeak(label, seed, peak)
	}
	return label
}

func (c *clusterer) noteFailure(err error) {
	var ce *ConvergenceError
	if errors.As(err, &ce) {
		c.log.logNotConverged(ce.Index, err)
	}
}

// singleAscender validates the inputs of a standalone ascent and builds a
// brute-force ascender for it.
func singleAscender(data [][]float64, index int, r, inner float64) (*ascender, error) {
	if err := checkBandwidth(r); err != nil {
		return nil, err
	}
	flat, n, dims, err := flatten(data)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= n {
		return nil, &IndexOutOfRangeError{Index: index, N: n}
	}
	return &ascender{
		data:      flat,
		n:         n,
		dims:      dims,
		index:     newBruteIndex(flat, n, dims),
		bandwidth: r,
		inner:     inner,
		threshold: DefaultThreshold,
		maxIter:   DefaultMaxIterations,
	}, nil
}

// FindPeak climbs from data[index] with bandwidth r and returns the peak
// the ascent converges to.
func FindPeak(data [][]float64, index int, r float64) ([]float64, error) {
	a, err := singleAscender(data, index, r, 0)
	if err != nil {
		return nil, err
	}
	res, err := a.climb(index, false)
	if err != nil {
		return nil, err
	}
	return res.peak, nil
}

// FindPeakOpt is FindPeak that also returns the marker vector: bit j is set
// if data[j] lay within r/c of the ascent position at the start of any step.
// c must be > 1.
func FindPeakOpt(data [][]float64, index int, r, c float64) ([]float64, *bitset.BitSet, error) {
	if err := checkSpeedupFactor(c); err != nil {
		return nil, nil, err
	}
	a, err := singleAscender(data, index, r, r/c)
	if err != nil {
		return nil, nil, err
	}
	res, err := a.climb(index, true)
	if err != nil {
		return nil, nil, err
	}
	return res.peak, res.marked, nil
}

// MeanShift clusters data with bandwidth r by climbing from every point.
// rng drives the multiple-match tie-break; nil uses a fixed seed.
func MeanShift(data [][]float64, r float64, rng *rand.Rand) ([]int, [][]float64, error) {
	cfg := DefaultConfig()
	cfg.Bandwidth = r
	cfg.Rand = rng
	res, err := Cluster(data, cfg)
	if err != nil {
		return nil, nil, err
	}
	return res.Labels, res.Peaks, nil
}

// MeanShiftOpt clusters data with bandwidth r, skipping ascents for points
// already labeled through a previous trajectory (marking radius r/c).
func MeanShiftOpt(data [][]float64, r, c float64, rng *rand.Rand) ([]int, [][]float64, error) {
	if err := checkSpeedupFactor(c); err != nil {
		return nil, nil, err
	}
	cfg := DefaultConfig()
	cfg.Bandwidth = r
	cfg.Optimized = true
	cfg.SpeedupFactor = c
	cfg.Rand = rng
	res, err := Cluster(data, cfg)
	if err != nil {
		return nil, nil, err
	}
	return res.Labels, res.Peaks, nil
}
