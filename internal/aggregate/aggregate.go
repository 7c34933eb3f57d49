// Package aggregate derives the detail and summary tables from a series.
package aggregate

import (
	"sync"
)

// StreamingAggregate maintains the running sum and count of one metric.
type StreamingAggregate struct {
	mu sync.Mutex

	metric string

	count   int64
	sum     float64
	firstTs int64
	lastTs  int64
}

// New creates an empty aggregate for metric.
func New(metric string) *StreamingAggregate {
	return &StreamingAggregate{metric: metric}
}

// Add adds a value observed at timestampMs.
func (a *StreamingAggregate) Add(value float64, timestampMs int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.count++
	a.sum += value

	if a.firstTs == 0 || timestampMs < a.firstTs {
		a.firstTs = timestampMs
	}
	if timestampMs > a.lastTs {
		a.lastTs = timestampMs
	}
}

// Count returns the number of values added.
func (a *StreamingAggregate) Count() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// IsEmpty returns true if no values have been added.
func (a *StreamingAggregate) IsEmpty() bool {
	return a.Count() == 0
}

// Result returns the summary row. Average is zero for an empty aggregate.
func (a *StreamingAggregate) Result() SummaryRow {
	a.mu.Lock()
	defer a.mu.Unlock()

	row := SummaryRow{
		Metric:  a.metric,
		Total:   a.sum,
		Count:   a.count,
		FirstTs: a.firstTs,
		LastTs:  a.lastTs,
	}
	if a.count > 0 {
		row.Average = a.sum / float64(a.count)
	}
	return row
}

// Metric returns the metric name.
func (a *StreamingAggregate) Metric() string {
	return a.metric
}
