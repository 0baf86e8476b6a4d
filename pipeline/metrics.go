package pipeline

import (
	"sync"
	"time"
)

// Metrics counts tick outcomes. The loop writes, HTTP handlers read.
type Metrics struct {
	mu                sync.RWMutex
	ticks             uint64
	reportsPublished  uint64
	previewsPublished uint64
	failures          map[Stage]uint64
	lastTickDuration  time.Duration
	lastTickAt        time.Time
}

type MetricsSnapshot struct {
	Ticks             uint64            `json:"ticks"`
	ReportsPublished  uint64            `json:"reports_published"`
	PreviewsPublished uint64            `json:"previews_published"`
	Failures          map[string]uint64 `json:"failures"`
	LastTickMs        float64           `json:"last_tick_ms"`
	LastTickAt        time.Time         `json:"last_tick_at"`
}

func newMetrics() *Metrics {
	return &Metrics{
		failures: map[Stage]uint64{},
	}
}

func (m *Metrics) tickDone(at time.Time, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
	m.lastTickAt = at
	m.lastTickDuration = d
	if se, ok := err.(*StageError); ok {
		m.failures[se.Stage]++
	}
}

func (m *Metrics) reportPublished() {
	m.mu.Lock()
	m.reportsPublished++
	m.mu.Unlock()
}

func (m *Metrics) previewPublished() {
	m.mu.Lock()
	m.previewsPublished++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	failures := make(map[string]uint64, len(m.failures))
	for stage, n := range m.failures {
		failures[string(stage)] = n
	}
	return MetricsSnapshot{
		Ticks:             m.ticks,
		ReportsPublished:  m.reportsPublished,
		PreviewsPublished: m.previewsPublished,
		Failures:          failures,
		LastTickMs:        float64(m.lastTickDuration) / float64(time.Millisecond),
		LastTickAt:        m.lastTickAt,
	}
}
