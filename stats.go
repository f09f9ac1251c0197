package tablekit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Stats accumulates execution counters for the statements a service runs.
// Attach an instance through Options.Stats; several services may share one
// to aggregate across tables. Safe for concurrent use.
type Stats struct {
	queries atomic.Int64
	execs   atomic.Int64
	nanos   atomic.Int64
	slow    atomic.Int64
	errors  atomic.Int64
}

// Snapshot returns a point-in-time copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Queries:  s.queries.Load(),
		Execs:    s.execs.Load(),
		Duration: time.Duration(s.nanos.Load()),
		Slow:     s.slow.Load(),
		Errors:   s.errors.Load(),
	}
}

// Reset resets all counters to zero.
func (s *Stats) Reset() {
	s.queries.Store(0)
	s.execs.Store(0)
	s.nanos.Store(0)
	s.slow.Store(0)
	s.errors.Store(0)
}

// StatsSnapshot is a point-in-time view of a Stats instance.
type StatsSnapshot struct {
	// Queries counts row-returning statements (finds, counts, RETURNING
	// writes, verification selects).
	Queries int64
	// Execs counts statements executed without a result set.
	Execs int64
	// Duration is the total time spent in the database.
	Duration time.Duration
	// Slow counts statements that exceeded the slow threshold.
	Slow int64
	// Errors counts statements the database rejected.
	Errors int64
}

// AvgDuration returns the average statement duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	total := s.Queries + s.Execs
	if total == 0 {
		return 0
	}
	return s.Duration / time.Duration(total)
}

// String returns a human-readable summary of the counters.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.Queries, s.Execs, s.Duration, s.AvgDuration(), s.Slow, s.Errors,
	)
}

// SlowQueryHook is called when a statement exceeds the service's slow
// threshold. The table is the service's table, letting one hook serve many
// services.
type SlowQueryHook func(ctx context.Context, table, query string, args []any, duration time.Duration)

// LogSlowQueries returns a SlowQueryHook that warns through the default
// structured logger.
func LogSlowQueries() SlowQueryHook {
	return func(_ context.Context, table, query string, args []any, duration time.Duration) {
		slog.Warn("slow query detected",
			"table", table, "duration", duration, "query", query, "args", args)
	}
}

// observe records one executed statement against the service's counters and
// fires the slow hook when the statement exceeded the threshold.
func (s *Service) observe(ctx context.Context, query string, args []any, start time.Time, err error, exec bool) {
	if s.stats == nil && s.slowHook == nil {
		return
	}
	duration := time.Since(start)
	if s.stats != nil {
		if exec {
			s.stats.execs.Add(1)
		} else {
			s.stats.queries.Add(1)
		}
		s.stats.nanos.Add(int64(duration))
		if err != nil {
			s.stats.errors.Add(1)
		}
	}
	if duration > s.slowThreshold {
		if s.stats != nil {
			s.stats.slow.Add(1)
		}
		if s.slowHook != nil {
			s.slowHook(ctx, s.table, query, args, duration)
		}
	}
}

// logStatement writes a debug line for a statement about to run. No-op
// without a configured logger.
func (s *Service) logStatement(ctx context.Context, kind, query string, args []any) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, kind,
		slog.String("table", s.table),
		slog.String("query", query),
		slog.Any("args", args),
	)
}
