package meanshift

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics from the clustering drivers.
// Implementations must be safe for concurrent use: RecordAscent is called
// from every worker goroutine.
type MetricsCollector interface {
	// RecordAscent is called after each full ascent. iterations is the number
	// of mean-shift steps taken; err is non-nil if the ascent failed.
	RecordAscent(iterations int, err error)

	// RecordCluster is called once per clustering run.
	RecordCluster(points, peaks, ascents int, duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAscent(int, error)                           {}
func (NoopMetricsCollector) RecordCluster(int, int, int, time.Duration, error) {}

// BasicMetricsCollector keeps simple in-memory counters.
type BasicMetricsCollector struct {
	AscentCount     atomic.Int64
	AscentErrors    atomic.Int64
	IterationsTotal atomic.Int64
	ClusterCount    atomic.Int64
	ClusterErrors   atomic.Int64
	PointsTotal     atomic.Int64
	PeaksTotal      atomic.Int64
	ClusterNanos    atomic.Int64
}

// RecordAscent implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAscent(iterations int, err error) {
	b.AscentCount.Add(1)
	b.IterationsTotal.Add(int64(iterations))
	if err != nil {
		b.AscentErrors.Add(1)
	}
}

// RecordCluster implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCluster(points, peaks, ascents int, duration time.Duration, err error) {
	b.ClusterCount.Add(1)
	b.ClusterNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ClusterErrors.Add(1)
		return
	}
	b.PointsTotal.Add(int64(points))
	b.PeaksTotal.Add(int64(peaks))
}

// AverageIterations returns the mean number of steps per ascent, or 0 if
// no ascents were recorded.
func (b *BasicMetricsCollector) AverageIterations() float64 {
	n := b.AscentCount.Load()
	if n == 0 {
		return 0
	}
	return float64(b.IterationsTotal.Load()) / float64(n)
}
