package goEnroll

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricCodeIssued)

	if got := m.Value(MetricCodeIssued); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricCheckInvalid)
	m.Inc(MetricCheckInvalid)
	m.Inc(MetricCheckInvalid)

	if got := m.Value(MetricCheckInvalid); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricCodeResent)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricCodeResent); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		10 * time.Microsecond,
		75 * time.Microsecond,
		200 * time.Microsecond,
		400 * time.Microsecond,
		time.Millisecond,
		3 * time.Millisecond,
		20 * time.Millisecond,
		time.Second,
	}

	for _, d := range observations {
		m.Observe(MetricCheckLatency, d)
	}
	// Only the check latency metric has a histogram.
	m.Observe(MetricCodeIssued, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricCheckLatency]
	if len(buckets) != len(HistogramBucketBounds)+1 {
		t.Fatalf("expected %d buckets, got %d", len(HistogramBucketBounds)+1, len(buckets))
	}

	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Histograms[MetricCodeIssued]; ok {
		t.Fatal("unexpected histogram for a counter metric")
	}
}

func TestMetricsSnapshotSkipsLatencyCounter(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricCodeIssued)

	snap := m.Snapshot()
	if _, ok := snap.Counters[MetricCheckLatency]; ok {
		t.Fatal("latency must not appear as a counter")
	}
	if len(snap.Histograms) != 0 {
		t.Fatal("histograms must be absent when latency is disabled")
	}
	if snap.Counters[MetricCodeIssued] != 1 {
		t.Fatalf("expected MetricCodeIssued=1 got %d", snap.Counters[MetricCodeIssued])
	}
}

func TestMetricNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, id := range MetricIDs() {
		name := id.String()
		if name == "" || name == "unknown" {
			t.Fatalf("metric %d has no name", id)
		}
		if seen[name] {
			t.Fatalf("duplicate metric name %q", name)
		}
		seen[name] = true
	}
}

func TestEngineRecordsCheckLatency(t *testing.T) {
	env := newTestEnv(t, func(b *Builder) {
		b.WithLatencyHistograms(true).WithCodeGenerator(fixedCodes("111111"))
	})
	s := env.session(t)
	ctx := context.Background()

	if _, err := s.Issue(ctx, "5551234567", "+1"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	_, _ = s.Check(ctx, "000000")
	_, _ = s.Check(ctx, "111111")

	var total uint64
	for _, v := range env.engine.MetricsSnapshot().Histograms[MetricCheckLatency] {
		total += v
	}
	if total != 2 {
		t.Fatalf("expected 2 latency observations, got %d", total)
	}
}
