package valori

import (
	"sync/atomic"
	"time"
)

// MetricsCollector is the hook for operational metrics. Implement it to
// integrate with monitoring systems; the engine core stays free of any
// observability concern.
type MetricsCollector interface {
	// RecordApply is called after each single-command commit attempt.
	RecordApply(duration time.Duration, err error)

	// RecordBatch is called after each batch commit attempt.
	RecordBatch(count int, duration time.Duration, err error)

	// RecordSearch is called after each search.
	RecordSearch(k int, duration time.Duration, err error)

	// RecordCheckpoint is called after each checkpoint attempt.
	RecordCheckpoint(duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordApply(time.Duration, error)       {}
func (NoopMetricsCollector) RecordBatch(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordCheckpoint(time.Duration, error)  {}

// BasicMetricsCollector provides simple in-memory counters, useful for
// debugging without external dependencies.
type BasicMetricsCollector struct {
	ApplyCount       atomic.Int64
	ApplyErrors      atomic.Int64
	ApplyTotalNanos  atomic.Int64
	BatchCount       atomic.Int64
	BatchItems       atomic.Int64
	BatchErrors      atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	CheckpointCount  atomic.Int64
	CheckpointErrors atomic.Int64
}

// RecordApply implements MetricsCollector.
func (b *BasicMetricsCollector) RecordApply(duration time.Duration, err error) {
	b.ApplyCount.Add(1)
	b.ApplyTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ApplyErrors.Add(1)
	}
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(count int, duration time.Duration, err error) {
	b.BatchCount.Add(1)
	b.BatchItems.Add(int64(count))
	if err != nil {
		b.BatchErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(k int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordCheckpoint implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCheckpoint(duration time.Duration, err error) {
	b.CheckpointCount.Add(1)
	if err != nil {
		b.CheckpointErrors.Add(1)
	}
}
