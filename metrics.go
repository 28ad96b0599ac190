package seglog

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics from a writer. Implement it
// to integrate with a monitoring system; the writer calls it outside its
// append lock.
type MetricsCollector interface {
	// RecordAppend is called after each message append attempt.
	RecordAppend(duration time.Duration, err error)
	// RecordRotation is called after each segment handoff, with the time the
	// triggering append spent on handoff bookkeeping (including any
	// backpressure wait).
	RecordRotation(duration time.Duration)
	// RecordFinalize is called when a segment finalization completes.
	RecordFinalize(duration time.Duration, err error)
	// RecordArchive is called when an archive upload completes.
	RecordArchive(duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAppend(time.Duration, error)   {}
func (NoopMetricsCollector) RecordRotation(time.Duration)        {}
func (NoopMetricsCollector) RecordFinalize(time.Duration, error) {}
func (NoopMetricsCollector) RecordArchive(time.Duration, error)  {}

// BasicMetricsCollector counts operations in memory. Useful for tests and
// debugging without an external monitoring system.
type BasicMetricsCollector struct {
	Appends        atomic.Uint64
	AppendErrors   atomic.Uint64
	Rotations      atomic.Uint64
	Finalizes      atomic.Uint64
	FinalizeErrors atomic.Uint64
	Archives       atomic.Uint64
	ArchiveErrors  atomic.Uint64
}

func (c *BasicMetricsCollector) RecordAppend(_ time.Duration, err error) {
	c.Appends.Add(1)
	if err != nil {
		c.AppendErrors.Add(1)
	}
}

func (c *BasicMetricsCollector) RecordRotation(time.Duration) {
	c.Rotations.Add(1)
}

func (c *BasicMetricsCollector) RecordFinalize(_ time.Duration, err error) {
	c.Finalizes.Add(1)
	if err != nil {
		c.FinalizeErrors.Add(1)
	}
}

func (c *BasicMetricsCollector) RecordArchive(_ time.Duration, err error) {
	c.Archives.Add(1)
	if err != nil {
		c.ArchiveErrors.Add(1)
	}
}
