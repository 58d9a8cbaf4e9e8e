package capture

import (
	"sync"
	"time"
)

// Metrics tracks capture-side counters for a single capturer.
type Metrics struct {
	mu sync.Mutex

	framesReceived  uint64
	framesConverted uint64
	framesSkipped   uint64 // capture-level pacing
	framesDropped   uint64 // conversion failure or out-of-order timestamp
	lastConvertTime time.Duration
	startTime       time.Time
}

func (m *Metrics) start() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

func (m *Metrics) recordReceive() {
	m.mu.Lock()
	m.framesReceived++
	m.mu.Unlock()
}

func (m *Metrics) recordConvert(d time.Duration) {
	m.mu.Lock()
	m.framesConverted++
	m.lastConvertTime = d
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

// MetricsSnapshot is a point-in-time copy of capture counters for logging.
type MetricsSnapshot struct {
	FramesReceived  uint64
	FramesConverted uint64
	FramesSkipped   uint64
	FramesDropped   uint64
	ConvertMs       float64
	Uptime          time.Duration
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		FramesReceived:  m.framesReceived,
		FramesConverted: m.framesConverted,
		FramesSkipped:   m.framesSkipped,
		FramesDropped:   m.framesDropped,
		ConvertMs:       float64(m.lastConvertTime.Microseconds()) / 1000.0,
		Uptime:          time.Since(m.startTime),
	}
}
