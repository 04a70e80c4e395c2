package meanshift

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ascendAll runs an untracked ascent from every point and returns the
// results indexed by seed. numWorkers controls the degree of parallelism;
// if <= 1, seeds are processed sequentially on the calling goroutine.
//
// Seeds are split into contiguous ranges, one per worker. Each worker
// writes only its own range of the result slice, so no synchronization is
// needed for writes. The first failing ascent cancels the remaining work.
func ascendAll(ctx context.Context, a *ascender, numWorkers int, metrics MetricsCollector) ([]ascent, error) {
	n := a.n
	results := make([]ascent, n)

	if numWorkers <= 1 || n <= 1 {
		if err := ascendRange(ctx, a, 0, n, results, metrics); err != nil {
			return nil, err
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	rowsPerWorker := (n + numWorkers - 1) / numWorkers

	for w := 0; w < numWorkers; w++ {
		start := w * rowsPerWorker
		end := min(start+rowsPerWorker, n)
		if start >= n {
			break
		}

		g.Go(func() error {
			return ascendRange(gctx, a, start, end, results, metrics)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ascendRange climbs from seeds [start, end) and stores the results.
func ascendRange(ctx context.Context, a *ascender, start, end int, results []ascent, metrics MetricsCollector) error {
	for i := start; i < end; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := a.climb(i, false)
		metrics.RecordAscent(res.iterations, err)
		if err != nil {
			return err
		}
		results[i] = res
	}
	return nil
}
