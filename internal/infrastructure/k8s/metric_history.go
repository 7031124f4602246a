package k8s

import (
	"sync"
	"time"
)

// historySize is the ring buffer depth (N=20 samples per pod) the
// prediction tools trend against (§4.3).
const historySize = 20

// Sample is one kubectl_top_pods reading for a single pod.
type Sample struct {
	Timestamp time.Time
	CPUMilli  int64
	MemBytes  int64
}

// MetricHistory is an in-memory, per-pod ring buffer of recent
// kubectl_top_pods samples. It has no persistence — a process restart
// loses history, which only degrades the prediction tools' confidence,
// it never breaks correctness.
type MetricHistory struct {
	mu       sync.Mutex
	capacity int
	byPod    map[string][]Sample
}

// NewMetricHistory creates a history ring buffer with the given
// per-pod capacity.
func NewMetricHistory(capacity int) *MetricHistory {
	return &MetricHistory{capacity: capacity, byPod: make(map[string][]Sample)}
}

// Record appends a sample for podKey ("namespace/name"), trimming to
// capacity from the oldest end.
func (h *MetricHistory) Record(podKey string, s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	samples := append(h.byPod[podKey], s)
	if len(samples) > h.capacity {
		samples = samples[len(samples)-h.capacity:]
	}
	h.byPod[podKey] = samples
}

// Samples returns a copy of podKey's recorded samples, oldest first.
func (h *MetricHistory) Samples(podKey string) []Sample {
	h.mu.Lock()
	defer h.mu.Unlock()

	samples := h.byPod[podKey]
	out := make([]Sample, len(samples))
	copy(out, samples)
	return out
}

// CPUTrendSlope returns the fractional change in CPU usage from the
// first to the last recorded sample (e.g. 0.3 == +30%). Returns 0 with
// ok=false when fewer than two samples are available.
func (h *MetricHistory) CPUTrendSlope(podKey string) (slope float64, ok bool) {
	samples := h.Samples(podKey)
	if len(samples) < 2 {
		return 0, false
	}
	first, last := samples[0], samples[len(samples)-1]
	if first.CPUMilli == 0 {
		return 0, false
	}
	return float64(last.CPUMilli-first.CPUMilli) / float64(first.CPUMilli), true
}

// MemTrendSlope is CPUTrendSlope's memory equivalent.
func (h *MetricHistory) MemTrendSlope(podKey string) (slope float64, ok bool) {
	samples := h.Samples(podKey)
	if len(samples) < 2 {
		return 0, false
	}
	first, last := samples[0], samples[len(samples)-1]
	if first.MemBytes == 0 {
		return 0, false
	}
	return float64(last.MemBytes-first.MemBytes) / float64(first.MemBytes), true
}
