package hsAuth

import (
	"sync/atomic"
	"time"
)

// MetricID indexes an engine counter. The ids are stable within a release
// and are mapped to exported names by metrics/export/internaldefs.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricLogout
	MetricDeviceMinted
	MetricDeviceRevoked
	MetricAuthenticateHit
	MetricAuthenticateMiss
	MetricUIASessionCreated
	MetricUIAStageSuccess
	MetricUIAStageFailure
	MetricUIASatisfied
	MetricLoginTokenIssued
	MetricEmailIdentityRequested
	MetricEmailIdentityValidated
	MetricAuthenticateLatency
	metricIDCount
)

// latencyBoundsMS are the inclusive upper bounds, in whole milliseconds,
// of every histogram bucket but the last (+Inf).
var latencyBoundsMS = [...]int64{5, 10, 25, 50, 100, 250, 500}

const (
	histBucketCount = len(latencyBoundsMS) + 1
	cacheLineSize   = 64
)

type paddedCounter struct {
	v atomic.Uint64
	_ [cacheLineSize - 8]byte
}

type latencyHistogram struct {
	buckets  [histBucketCount]atomic.Uint64
	sumNanos atomic.Uint64
}

// Metrics is a fixed set of lock-free counters plus the Authenticate latency
// histogram. A disabled Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	latency       latencyHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters. Histograms hold
// non-cumulative bucket counts; LatencySums the total observed duration
// per histogram.
type MetricsSnapshot struct {
	Counters    map[MetricID]uint64
	Histograms  map[MetricID][]uint64
	LatencySums map[MetricID]time.Duration
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool        { return m != nil && m.enabled }
func (m *Metrics) LatencyEnabled() bool { return m != nil && m.enableLatency }

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.counters[id].v.Add(1)
}

// Observe records d for MetricAuthenticateLatency; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricAuthenticateLatency {
		return
	}
	m.latency.buckets[bucketIndex(d)].Add(1)
	if d > 0 {
		m.latency.sumNanos.Add(uint64(d))
	}
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].v.Load()
}

// Snapshot copies all counters. A disabled Metrics returns empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:    map[MetricID]uint64{},
		Histograms:  map[MetricID][]uint64{},
		LatencySums: map[MetricID]time.Duration{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = m.counters[id].v.Load()
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.latency.buckets[i].Load()
		}
		s.Histograms[MetricAuthenticateLatency] = buckets
		s.LatencySums[MetricAuthenticateLatency] = time.Duration(m.latency.sumNanos.Load())
	}
	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()
	for i, bound := range latencyBoundsMS {
		if ms <= bound {
			return i
		}
	}
	return len(latencyBoundsMS)
}
