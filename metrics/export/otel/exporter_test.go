package otel

import (
	"context"
	"sync"
	"testing"

	goEnroll "github.com/MrEthical07/goEnroll"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goEnroll.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goEnroll.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goEnroll.MetricsSnapshot{
		Counters:   make(map[goEnroll.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goEnroll.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("goenroll-test")

	src := &fakeSource{
		snapshot: goEnroll.MetricsSnapshot{
			Counters: map[goEnroll.MetricID]uint64{
				goEnroll.MetricCodeIssued: 3,
			},
			Histograms: map[goEnroll.MetricID][]uint64{
				goEnroll.MetricCheckLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	for _, want := range []string{
		"goenroll_code_issued_total",
		"goenroll_audit_dropped_total",
		"goenroll_check_latency_seconds_bucket_le_0_00005",
		"goenroll_check_latency_seconds_bucket_le_inf",
	} {
		if !names[want] {
			t.Fatalf("expected instrument %s, got %v", want, names)
		}
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("goenroll-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("goenroll-test")

	src := &fakeSource{
		snapshot: goEnroll.MetricsSnapshot{
			Counters: map[goEnroll.MetricID]uint64{
				goEnroll.MetricCodeIssued: 1,
			},
			Histograms: map[goEnroll.MetricID][]uint64{
				goEnroll.MetricCheckLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goEnroll.MetricCodeIssued] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
