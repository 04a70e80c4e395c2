// Package meanshift implements mean-shift mode-seeking clustering with a
// flat (uniform) kernel.
//
// Every point climbs the density gradient: it repeatedly moves to the mean of
// all points within the bandwidth r until a step is no longer than the
// convergence threshold. The end point is a density peak. Peaks closer than
// r/2 are treated as the same peak, and every point is labeled with the peak
// its ascent reached. Labels start at 1 and follow peak discovery order.
//
// Basic usage:
//
//	cfg := meanshift.DefaultConfig()
//	cfg.Bandwidth = 25
//	result, err := meanshift.Cluster(pixels, cfg)
//	// result.Labels[i] is the label of point i (1-based)
//	// result.Peaks[result.Labels[i]-1] is its peak
//
// # Optimized driver
//
// Setting Config.Optimized skips most ascents. While climbing from a point,
// every point within r/c of the current position is marked; after the ascent
// the marked points and all points within r of the final peak that are still
// unlabeled take the same label and are never climbed from. A point keeps the
// first label it receives. SpeedupFactor sets c.
//
// # Functional surface
//
// FindPeak, FindPeakOpt, MeanShift and MeanShiftOpt expose the same
// algorithm with positional parameters and the default threshold.
//
// # Randomness
//
// When a peak lies within r/2 of several earlier peaks, one of their labels
// is picked at random. The generator comes from Config.Rand or is seeded from
// Config.Seed, so runs are reproducible. The choice changes label values
// only, never which peaks exist.
package meanshift
