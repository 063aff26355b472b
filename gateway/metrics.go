package gateway

import (
	"sync"
	"time"
)

// LatencyStats summarizes observed durations.
type LatencyStats struct {
	Samples int64         `json:"samples"`
	Sum     time.Duration `json:"sum"`
	Max     time.Duration `json:"max"`
}

// Average returns the mean duration, or zero without samples.
func (s LatencyStats) Average() time.Duration {
	if s.Samples == 0 {
		return 0
	}
	return s.Sum / time.Duration(s.Samples)
}

func (s *LatencyStats) observe(d time.Duration) {
	s.Samples++
	s.Sum += d
	if d > s.Max {
		s.Max = d
	}
}

// MetricsSnapshot holds the stage metrics accumulated so far.
type MetricsSnapshot struct {
	Count              int64        `json:"Count"`
	ClientErrors       int64        `json:"4XXError"`
	ServerErrors       int64        `json:"5XXError"`
	Latency            LatencyStats `json:"Latency"`
	IntegrationLatency LatencyStats `json:"IntegrationLatency"`
}

// metrics accumulates stage metrics.
type metrics struct {
	mu       sync.Mutex
	snapshot MetricsSnapshot
}

// record adds one request. integration is zero when the function was not
// invoked.
func (m *metrics) record(status int, latency, integration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot.Count++

	switch {
	case status >= 500:
		m.snapshot.ServerErrors++
	case status >= 400:
		m.snapshot.ClientErrors++
	}

	m.snapshot.Latency.observe(latency)

	if integration > 0 {
		m.snapshot.IntegrationLatency.observe(integration)
	}
}

func (m *metrics) get() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshot
}
