package broadcast

import (
	"sync"
	"time"
)

// Metrics tracks delivery counters for a broadcaster.
type Metrics struct {
	mu sync.Mutex

	framesDelivered uint64
	framesSkipped   uint64 // pacing interval not yet elapsed
	framesDropped   uint64 // async dispatch queue full
	sinkFailures    uint64 // sink callback panicked
	lastScaleTime   time.Duration
}

func (m *Metrics) recordDeliver() {
	m.mu.Lock()
	m.framesDelivered++
	m.mu.Unlock()
}

func (m *Metrics) recordSkip() {
	m.mu.Lock()
	m.framesSkipped++
	m.mu.Unlock()
}

func (m *Metrics) recordDrop() {
	m.mu.Lock()
	m.framesDropped++
	m.mu.Unlock()
}

func (m *Metrics) recordFailure() {
	m.mu.Lock()
	m.sinkFailures++
	m.mu.Unlock()
}

func (m *Metrics) recordScale(d time.Duration) {
	m.mu.Lock()
	m.lastScaleTime = d
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time copy of delivery counters for logging.
type MetricsSnapshot struct {
	FramesDelivered uint64
	FramesSkipped   uint64
	FramesDropped   uint64
	SinkFailures    uint64
	ScaleMs         float64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		FramesDelivered: m.framesDelivered,
		FramesSkipped:   m.framesSkipped,
		FramesDropped:   m.framesDropped,
		SinkFailures:    m.sinkFailures,
		ScaleMs:         float64(m.lastScaleTime.Microseconds()) / 1000.0,
	}
}
