package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// QueryStats holds query execution statistics.
type QueryStats struct {
	// TotalQueries is the total number of queries executed.
	TotalQueries atomic.Int64
	// TotalExecs is the total number of exec statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing statements.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of statements exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of statement errors.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is a function called when a slow statement is detected.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// Recorder collects statistics for every connection it wraps.
type Recorder struct {
	stats         *QueryStats
	logger        *slog.Logger
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the Recorder.
type StatsOption func(*Recorder)

// WithSlowThreshold sets the threshold for slow statement detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(r *Recorder) {
		r.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(r *Recorder) {
		r.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements at warn level.
func WithSlowQueryLog() StatsOption {
	return func(r *Recorder) {
		r.slowHook = func(ctx context.Context, query string, args []any, duration time.Duration) {
			r.logger.WarnContext(ctx, "slow query detected", "duration", duration, "query", query, "args", args)
		}
	}
}

// WithStatsLogger sets the logger statements are logged to at debug level.
func WithStatsLogger(l *slog.Logger) StatsOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRecorder returns a Recorder.
//
// Example:
//
//	rec := sql.NewRecorder(
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(),
//	)
//	reg, err := compiler.NewRegistry(compiler.WithConnection(db), compiler.WithStats(rec))
//
//	// Later, check statistics:
//	fmt.Println(rec.QueryStats().Stats())
func NewRecorder(opts ...StatsOption) *Recorder {
	r := &Recorder{
		stats:         &QueryStats{},
		logger:        slog.Default(),
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (r *Recorder) QueryStats() *QueryStats {
	return r.stats
}

// SlowThreshold returns the current slow statement threshold.
func (r *Recorder) SlowThreshold() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slowThreshold
}

// SetSlowThreshold updates the slow statement threshold.
func (r *Recorder) SetSlowThreshold(threshold time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slowThreshold = threshold
}

// Wrap returns eq with statistics collection.
func (r *Recorder) Wrap(eq ExecQuerier) *StatsConn {
	return &StatsConn{ExecQuerier: eq, rec: r}
}

func (r *Recorder) record(ctx context.Context, query string, args []any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	if isQuery {
		r.stats.TotalQueries.Add(1)
	} else {
		r.stats.TotalExecs.Add(1)
	}
	r.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		r.stats.Errors.Add(1)
	}
	r.logger.DebugContext(ctx, "statement executed", "query", query, "duration", duration, "error", err)

	r.mu.RLock()
	threshold := r.slowThreshold
	hook := r.slowHook
	r.mu.RUnlock()

	if duration > threshold {
		r.stats.SlowQueries.Add(1)
		if hook != nil {
			hook(ctx, query, args, duration)
		}
	}
}

// StatsConn wraps an ExecQuerier with statistics collection.
// Query durations cover statement execution, not reading the rows.
type StatsConn struct {
	ExecQuerier
	rec *Recorder
}

// QueryContext executes a query and records statistics.
func (c *StatsConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := c.ExecQuerier.QueryContext(ctx, query, args...)
	c.rec.record(ctx, query, args, start, err, true)
	return rows, err
}

// ExecContext executes a statement and records statistics.
func (c *StatsConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := c.ExecQuerier.ExecContext(ctx, query, args...)
	c.rec.record(ctx, query, args, start, err, false)
	return res, err
}

var _ ExecQuerier = (*StatsConn)(nil)
