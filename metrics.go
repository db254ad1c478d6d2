package shmipc

import (
	"sync/atomic"
	"time"

	"github.com/fzheng/shmipc/internal/interfaces"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// covering from 1us to 10s with logarithmic spacing, the same range
// the reference tracked since spinning enqueue/dequeue calls on a
// saturated queue fall in exactly this band.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for a queue and
// the regions it lives in.
type Metrics struct {
	EnqueueOps atomic.Uint64
	DequeueOps atomic.Uint64

	EnqueueBytes atomic.Uint64
	DequeueBytes atomic.Uint64

	EnqueueErrors atomic.Uint64
	DequeueErrors atomic.Uint64

	RegionsCreated  atomic.Uint64
	RegionsAttached atomic.Uint64
	RegionsDestroyed atomic.Uint64
	RegionErrors    atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	// LatencyBuckets[i] is the cumulative count of operations with
	// latency <= LatencyBuckets package var's i-th entry.
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with its start time stamped.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordEnqueue records one enqueue attempt.
func (m *Metrics) RecordEnqueue(bytes uint64, latencyNs uint64, success bool) {
	m.EnqueueOps.Add(1)
	if success {
		m.EnqueueBytes.Add(bytes)
	} else {
		m.EnqueueErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordDequeue records one dequeue attempt.
func (m *Metrics) RecordDequeue(bytes uint64, latencyNs uint64, success bool) {
	m.DequeueOps.Add(1)
	if success {
		m.DequeueBytes.Add(bytes)
	} else {
		m.DequeueErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordRegionCreate records a create_shm_region/create_named_shm_region call.
func (m *Metrics) RecordRegionCreate(success bool) {
	if success {
		m.RegionsCreated.Add(1)
	} else {
		m.RegionErrors.Add(1)
	}
}

// RecordRegionAttach records an attach_shm_region/attach_named_shm_region call.
func (m *Metrics) RecordRegionAttach(success bool) {
	if success {
		m.RegionsAttached.Add(1)
	} else {
		m.RegionErrors.Add(1)
	}
}

// RecordRegionDestroy records a destroy_shm_region call.
func (m *Metrics) RecordRegionDestroy(success bool) {
	if success {
		m.RegionsDestroyed.Add(1)
	} else {
		m.RegionErrors.Add(1)
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the tracked queue/method as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	EnqueueOps uint64
	DequeueOps uint64

	EnqueueBytes uint64
	DequeueBytes uint64

	EnqueueErrors uint64
	DequeueErrors uint64

	RegionsCreated   uint64
	RegionsAttached  uint64
	RegionsDestroyed uint64
	RegionErrors     uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	EnqueueRate float64 // ops/sec
	DequeueRate float64
	TotalOps    uint64
	TotalBytes  uint64
	ErrorRate   float64 // percentage
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		EnqueueOps:       m.EnqueueOps.Load(),
		DequeueOps:       m.DequeueOps.Load(),
		EnqueueBytes:     m.EnqueueBytes.Load(),
		DequeueBytes:     m.DequeueBytes.Load(),
		EnqueueErrors:    m.EnqueueErrors.Load(),
		DequeueErrors:    m.DequeueErrors.Load(),
		RegionsCreated:   m.RegionsCreated.Load(),
		RegionsAttached:  m.RegionsAttached.Load(),
		RegionsDestroyed: m.RegionsDestroyed.Load(),
		RegionErrors:     m.RegionErrors.Load(),
	}

	snap.TotalOps = snap.EnqueueOps + snap.DequeueOps
	snap.TotalBytes = snap.EnqueueBytes + snap.DequeueBytes

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.EnqueueRate = float64(snap.EnqueueOps) / uptimeSeconds
		snap.DequeueRate = float64(snap.DequeueOps) / uptimeSeconds
	}

	totalErrors := snap.EnqueueErrors + snap.DequeueErrors + snap.RegionErrors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters.
func (m *Metrics) Reset() {
	m.EnqueueOps.Store(0)
	m.DequeueOps.Store(0)
	m.EnqueueBytes.Store(0)
	m.DequeueBytes.Store(0)
	m.EnqueueErrors.Store(0)
	m.DequeueErrors.Store(0)
	m.RegionsCreated.Store(0)
	m.RegionsAttached.Store(0)
	m.RegionsDestroyed.Store(0)
	m.RegionErrors.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// NoOpObserver is a no-op implementation of interfaces.Observer, the
// default when no observer is configured.
type NoOpObserver struct{}

func (NoOpObserver) ObserveEnqueue(uint64, uint64, bool)            {}
func (NoOpObserver) ObserveDequeue(uint64, uint64, bool)            {}
func (NoOpObserver) ObserveRegionCreate(string, uint64, bool)       {}
func (NoOpObserver) ObserveRegionAttach(string, uint64, bool)       {}
func (NoOpObserver) ObserveRegionDestroy(string, bool)              {}

// MetricsObserver implements interfaces.Observer using the built-in
// Metrics type.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given
// metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveEnqueue(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordEnqueue(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveDequeue(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordDequeue(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveRegionCreate(backendKind string, size uint64, success bool) {
	o.metrics.RecordRegionCreate(success)
}

func (o *MetricsObserver) ObserveRegionAttach(backendKind string, size uint64, success bool) {
	o.metrics.RecordRegionAttach(success)
}

func (o *MetricsObserver) ObserveRegionDestroy(backendKind string, success bool) {
	o.metrics.RecordRegionDestroy(success)
}

var _ interfaces.Observer = (*MetricsObserver)(nil)
var _ interfaces.Observer = (*NoOpObserver)(nil)
