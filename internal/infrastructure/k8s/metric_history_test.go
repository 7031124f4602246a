package k8s

import (
	"testing"
	"time"
)

func TestMetricHistory_RecordAndTrim(t *testing.T) {
	h := NewMetricHistory(3)
	for i := 0; i < 5; i++ {
		h.Record("default/web", Sample{Timestamp: time.Now(), CPUMilli: int64(i * 100)})
	}

	samples := h.Samples("default/web")
	if len(samples) != 3 {
		t.Fatalf("expected buffer trimmed to capacity 3, got %d", len(samples))
	}
	if samples[0].CPUMilli != 200 || samples[2].CPUMilli != 400 {
		t.Fatalf("expected oldest samples dropped, got %+v", samples)
	}
}

func TestMetricHistory_CPUTrendSlope(t *testing.T) {
	h := NewMetricHistory(20)
	h.Record("default/web", Sample{CPUMilli: 100})
	h.Record("default/web", Sample{CPUMilli: 150})

	slope, ok := h.CPUTrendSlope("default/web")
	if !ok {
		t.Fatal("expected ok=true with two samples")
	}
	if slope != 0.5 {
		t.Fatalf("expected slope 0.5, got %v", slope)
	}
}

func TestMetricHistory_TrendSlopeInsufficientSamples(t *testing.T) {
	h := NewMetricHistory(20)
	h.Record("default/web", Sample{CPUMilli: 100})

	if _, ok := h.CPUTrendSlope("default/web"); ok {
		t.Fatal("expected ok=false with only one sample")
	}
	if _, ok := h.MemTrendSlope("missing/pod"); ok {
		t.Fatal("expected ok=false for unknown pod key")
	}
}

func TestMetricHistory_MemTrendSlopeZeroBaseline(t *testing.T) {
	h := NewMetricHistory(20)
	h.Record("default/web", Sample{MemBytes: 0})
	h.Record("default/web", Sample{MemBytes: 1024})

	if _, ok := h.MemTrendSlope("default/web"); ok {
		t.Fatal("expected ok=false when baseline sample is zero")
	}
}
