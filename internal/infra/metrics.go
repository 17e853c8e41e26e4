package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	upstreamCalls atomic.Uint64
	emptyResults  atomic.Uint64
	framesSent    atomic.Uint64
	errorsTotal   atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeStreams   atomic.Int32
	instrumentCount atomic.Int64
}

// GlobalMetrics is the process-wide metrics instance.
var GlobalMetrics = &Metrics{}

// RecordUpstream records one upstream call with its latency and whether it produced data.
func (m *Metrics) RecordUpstream(latency time.Duration, empty bool) {
	m.upstreamCalls.Add(1)
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)
	if empty {
		m.emptyResults.Add(1)
	}
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// RecordFrame records a frame pushed to a stream subscriber.
func (m *Metrics) RecordFrame() {
	m.framesSent.Add(1)
}

// IncrementStreams increments active stream subscriptions by 1.
func (m *Metrics) IncrementStreams() {
	m.activeStreams.Add(1)
}

// DecrementStreams decrements active stream subscriptions by 1.
func (m *Metrics) DecrementStreams() {
	m.activeStreams.Add(-1)
}

// SetInstrumentCount stores the size of the loaded instrument table.
func (m *Metrics) SetInstrumentCount(n int) {
	m.instrumentCount.Store(int64(n))
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	UpstreamCalls   uint64    `json:"upstream_calls"`
	EmptyResults    uint64    `json:"empty_results"`
	FramesSent      uint64    `json:"frames_sent"`
	ErrorsTotal     uint64    `json:"errors_total"`
	AvgLatencyNs    int64     `json:"avg_latency_ns"`
	ActiveStreams   int32     `json:"active_streams"`
	InstrumentCount int64     `json:"instrument_count"`
	Timestamp       time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		UpstreamCalls:   m.upstreamCalls.Load(),
		EmptyResults:    m.emptyResults.Load(),
		FramesSent:      m.framesSent.Load(),
		ErrorsTotal:     m.errorsTotal.Load(),
		AvgLatencyNs:    avgLatency,
		ActiveStreams:   m.activeStreams.Load(),
		InstrumentCount: m.instrumentCount.Load(),
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.upstreamCalls.Store(0)
	m.emptyResults.Store(0)
	m.framesSent.Store(0)
	m.errorsTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeStreams.Store(0)
	m.instrumentCount.Store(0)
}
