package strata

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    writeCounter    prometheus.Counter
//	    lookupHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordWrite(op string, duration time.Duration, err error) {
//	    p.writeCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordWrite is called after each mutating operation. op names the
	// operation (e.g. "set_alias"), duration is the total time taken, err is
	// nil if successful.
	RecordWrite(op string, duration time.Duration, err error)

	// RecordLookup is called after each alias lookup or search operation.
	RecordLookup(duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot save.
	RecordSnapshot(duration time.Duration, err error)

	// RecordRecovery is called after journal recovery with the number of
	// records replayed.
	RecordRecovery(replayed int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordWrite(string, time.Duration, error) {}
func (NoopMetricsCollector) RecordLookup(time.Duration, error)        {}
func (NoopMetricsCollector) RecordSnapshot(time.Duration, error)      {}
func (NoopMetricsCollector) RecordRecovery(int, time.Duration)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	WriteCount       atomic.Int64
	WriteErrors      atomic.Int64
	WriteTotalNanos  atomic.Int64
	LookupCount      atomic.Int64
	LookupErrors     atomic.Int64
	LookupTotalNanos atomic.Int64
	SnapshotCount    atomic.Int64
	SnapshotErrors   atomic.Int64
	RecoveryCount    atomic.Int64
	RecordsReplayed  atomic.Int64
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(op string, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// RecordLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLookup(duration time.Duration, err error) {
	b.LookupCount.Add(1)
	b.LookupTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LookupErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// RecordRecovery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRecovery(replayed int, duration time.Duration) {
	b.RecoveryCount.Add(1)
	b.RecordsReplayed.Add(int64(replayed))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		WriteCount:      b.WriteCount.Load(),
		WriteErrors:     b.WriteErrors.Load(),
		WriteAvgNanos:   b.getAvgWriteNanos(),
		LookupCount:     b.LookupCount.Load(),
		LookupErrors:    b.LookupErrors.Load(),
		LookupAvgNanos:  b.getAvgLookupNanos(),
		SnapshotCount:   b.SnapshotCount.Load(),
		SnapshotErrors:  b.SnapshotErrors.Load(),
		RecoveryCount:   b.RecoveryCount.Load(),
		RecordsReplayed: b.RecordsReplayed.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgWriteNanos() int64 {
	count := b.WriteCount.Load()
	if count == 0 {
		return 0
	}
	return b.WriteTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgLookupNanos() int64 {
	count := b.LookupCount.Load()
	if count == 0 {
		return 0
	}
	return b.LookupTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	WriteCount      int64
	WriteErrors     int64
	WriteAvgNanos   int64
	LookupCount     int64
	LookupErrors    int64
	LookupAvgNanos  int64
	SnapshotCount   int64
	SnapshotErrors  int64
	RecoveryCount   int64
	RecordsReplayed int64
}
