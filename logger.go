package meanshift

import (
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with the field names used by the clustering
// drivers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithBandwidth adds the bandwidth field to the logger.
func (l *Logger) WithBandwidth(r float64) *Logger {
	return &Logger{
		Logger: l.Logger.With("bandwidth", r),
	}
}

func (l *Logger) logNewPeak(label, seed int, peak []float64) {
	l.Debug("new peak",
		"label", label,
		"seed", seed,
		"peak", peak,
	)
}

func (l *Logger) logNotConverged(seed int, err error) {
	l.Warn("ascent did not converge",
		"seed", seed,
		"error", err,
	)
}

func (l *Logger) logRun(algo Algorithm, optimized bool, points, peaks, ascents int, elapsed time.Duration, err error) {
	if err != nil {
		l.Error("clustering failed",
			"algorithm", string(algo),
			"optimized", optimized,
			"points", points,
			"error", err,
		)
		return
	}
	l.Debug("clustering completed",
		"algorithm", string(algo),
		"optimized", optimized,
		"points", points,
		"peaks", peaks,
		"ascents", ascents,
		"elapsed", elapsed,
	)
}
