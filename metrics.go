package barq

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives timing and outcome data for every engine
// operation. Implement this to bridge into a monitoring system.
type MetricsCollector interface {
	RecordMutation(op string, duration time.Duration, err error)
	RecordQuery(op string, duration time.Duration, results int, err error)
	RecordFlush(duration time.Duration, err error)
}

// NoopMetricsCollector discards everything.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordMutation(string, time.Duration, error)    {}
func (NoopMetricsCollector) RecordQuery(string, time.Duration, int, error)  {}
func (NoopMetricsCollector) RecordFlush(time.Duration, error)               {}

// BasicMetricsCollector is a simple in-memory collector, useful for tests
// and local debugging without wiring an external system.
type BasicMetricsCollector struct {
	MutationCount  atomic.Int64
	MutationErrors atomic.Int64
	QueryCount     atomic.Int64
	QueryErrors    atomic.Int64
	FlushCount     atomic.Int64
	FlushErrors    atomic.Int64
}

func (b *BasicMetricsCollector) RecordMutation(_ string, _ time.Duration, err error) {
	b.MutationCount.Add(1)
	if err != nil {
		b.MutationErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordQuery(_ string, _ time.Duration, _ int, err error) {
	b.QueryCount.Add(1)
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordFlush(_ time.Duration, err error) {
	b.FlushCount.Add(1)
	if err != nil {
		b.FlushErrors.Add(1)
	}
}
