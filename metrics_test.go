package shmipc

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.TotalOps != 0 {
		t.Errorf("Expected 0 initial ops, got %d", snap.TotalOps)
	}

	m.RecordEnqueue(1024, 1000000, true)
	m.RecordDequeue(2048, 2000000, true)
	m.RecordEnqueue(512, 500000, false)

	snap = m.Snapshot()

	if snap.EnqueueOps != 2 {
		t.Errorf("Expected 2 enqueue ops, got %d", snap.EnqueueOps)
	}
	if snap.DequeueOps != 1 {
		t.Errorf("Expected 1 dequeue op, got %d", snap.DequeueOps)
	}

	if snap.EnqueueBytes != 1024 {
		t.Errorf("Expected 1024 enqueue bytes, got %d", snap.EnqueueBytes)
	}
	if snap.DequeueBytes != 2048 {
		t.Errorf("Expected 2048 dequeue bytes, got %d", snap.DequeueBytes)
	}

	if snap.EnqueueErrors != 1 {
		t.Errorf("Expected 1 enqueue error, got %d", snap.EnqueueErrors)
	}
	if snap.DequeueErrors != 0 {
		t.Errorf("Expected 0 dequeue errors, got %d", snap.DequeueErrors)
	}

	expectedErrorRate := float64(1) / float64(3) * 100.0
	if snap.ErrorRate < expectedErrorRate-0.1 || snap.ErrorRate > expectedErrorRate+0.1 {
		t.Errorf("Expected error rate ~%.1f%%, got %.1f%%", expectedErrorRate, snap.ErrorRate)
	}
}

func TestMetricsRegionLifecycle(t *testing.T) {
	m := NewMetrics()

	m.RecordRegionCreate(true)
	m.RecordRegionCreate(true)
	m.RecordRegionAttach(true)
	m.RecordRegionDestroy(false)

	snap := m.Snapshot()

	if snap.RegionsCreated != 2 {
		t.Errorf("Expected 2 regions created, got %d", snap.RegionsCreated)
	}
	if snap.RegionsAttached != 1 {
		t.Errorf("Expected 1 region attached, got %d", snap.RegionsAttached)
	}
	if snap.RegionErrors != 1 {
		t.Errorf("Expected 1 region error, got %d", snap.RegionErrors)
	}
}

func TestMetricsLatency(t *testing.T) {
	m := NewMetrics()

	m.RecordEnqueue(1024, 1000000, true)
	m.RecordDequeue(1024, 2000000, true)

	snap := m.Snapshot()

	expectedAvgNs := uint64(1500000)
	if snap.AvgLatencyNs != expectedAvgNs {
		t.Errorf("Expected avg latency %d ns, got %d ns", expectedAvgNs, snap.AvgLatencyNs)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()

	if snap.UptimeNs < 10*1000000 {
		t.Errorf("Expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()

	if snap2.UptimeNs > snap.UptimeNs+2*1000000 {
		t.Errorf("Uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordEnqueue(1024, 1000000, true)
	m.RecordDequeue(2048, 2000000, true)
	m.RecordRegionCreate(true)

	snap := m.Snapshot()
	if snap.TotalOps == 0 {
		t.Error("Expected some operations before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.TotalOps != 0 {
		t.Errorf("Expected 0 ops after reset, got %d", snap.TotalOps)
	}
	if snap.TotalBytes != 0 {
		t.Errorf("Expected 0 bytes after reset, got %d", snap.TotalBytes)
	}
	if snap.RegionsCreated != 0 {
		t.Errorf("Expected 0 regions created after reset, got %d", snap.RegionsCreated)
	}
}

func TestObserver(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObserveEnqueue(1024, 1000000, true)
	observer.ObserveDequeue(1024, 1000000, true)
	observer.ObserveRegionCreate("filemap", 4096, true)
	observer.ObserveRegionAttach("filemap", 4096, true)
	observer.ObserveRegionDestroy("filemap", true)

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveEnqueue(1024, 1000000, true)
	metricsObserver.ObserveDequeue(2048, 2000000, true)

	snap := m.Snapshot()
	if snap.EnqueueOps != 1 {
		t.Errorf("Expected 1 enqueue op from observer, got %d", snap.EnqueueOps)
	}
	if snap.DequeueOps != 1 {
		t.Errorf("Expected 1 dequeue op from observer, got %d", snap.DequeueOps)
	}
	if snap.EnqueueBytes != 1024 {
		t.Errorf("Expected 1024 enqueue bytes from observer, got %d", snap.EnqueueBytes)
	}
	if snap.DequeueBytes != 2048 {
		t.Errorf("Expected 2048 dequeue bytes from observer, got %d", snap.DequeueBytes)
	}
}

func TestMetricsRates(t *testing.T) {
	m := NewMetrics()

	startTime := time.Now()
	m.StartTime.Store(startTime.UnixNano())

	m.RecordEnqueue(1024, 1000000, true)
	m.RecordDequeue(2048, 2000000, true)

	stopTime := startTime.Add(1 * time.Second)
	m.StopTime.Store(stopTime.UnixNano())

	snap := m.Snapshot()

	if snap.EnqueueRate < 0.9 || snap.EnqueueRate > 1.1 {
		t.Errorf("Expected EnqueueRate ~1.0, got %.2f", snap.EnqueueRate)
	}
	if snap.DequeueRate < 0.9 || snap.DequeueRate > 1.1 {
		t.Errorf("Expected DequeueRate ~1.0, got %.2f", snap.DequeueRate)
	}
}

func TestMetricsHistogram(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.RecordEnqueue(1024, 500_000, true) // 500us
	}
	for i := 0; i < 49; i++ {
		m.RecordDequeue(1024, 5_000_000, true) // 5ms
	}
	m.RecordDequeue(1024, 50_000_000, true) // 50ms, the single slowest op

	snap := m.Snapshot()

	if snap.TotalOps != 100 {
		t.Errorf("Expected 100 total ops, got %d", snap.TotalOps)
	}

	if snap.LatencyP50Ns < 100_000 || snap.LatencyP50Ns > 1_000_000 {
		t.Errorf("Expected P50 in 100us-1ms range, got %d ns", snap.LatencyP50Ns)
	}

	if snap.LatencyP99Ns < 5_000_000 || snap.LatencyP99Ns > 100_000_000 {
		t.Errorf("Expected P99 in 5ms-100ms range, got %d ns", snap.LatencyP99Ns)
	}

	totalInBuckets := uint64(0)
	for i := 0; i < len(snap.LatencyHistogram); i++ {
		totalInBuckets += snap.LatencyHistogram[i]
	}
	if totalInBuckets == 0 {
		t.Error("Expected histogram buckets to be populated")
	}
}
