package service

import "sync"

// MetricHistory is a process-local, in-memory ring buffer of recent turn
// metrics (§4.4, §9). It is intentionally NOT persisted: a restart starts
// with an empty buffer, trading cold-start accuracy for zero storage
// overhead and no cross-process coordination.
type MetricHistory struct {
	mu      sync.Mutex
	size    int
	entries []metricEntry
	next    int
	filled  bool

	toolCalls   int64
	toolErrors  int64
	tokensTotal int64
}

type metricEntry struct {
	tokens     int
	toolName   string
	toolOK     bool
	hasTool    bool
}

// NewMetricHistory creates a ring buffer holding up to size entries
// (20 when size <= 0).
func NewMetricHistory(size int) *MetricHistory {
	if size <= 0 {
		size = 20
	}
	return &MetricHistory{
		size:    size,
		entries: make([]metricEntry, size),
	}
}

// RecordTokens appends a token-usage sample from one LLM call.
func (h *MetricHistory) RecordTokens(tokens int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tokensTotal += int64(tokens)
	h.push(metricEntry{tokens: tokens})
}

// RecordToolCall appends a tool execution outcome.
func (h *MetricHistory) RecordToolCall(toolName string, success bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toolCalls++
	if !success {
		h.toolErrors++
	}
	h.push(metricEntry{toolName: toolName, toolOK: success, hasTool: true})
}

func (h *MetricHistory) push(e metricEntry) {
	h.entries[h.next] = e
	h.next = (h.next + 1) % h.size
	if h.next == 0 {
		h.filled = true
	}
}

// Snapshot summarizes the current buffer contents plus running totals.
type MetricSnapshot struct {
	TotalToolCalls  int64
	TotalToolErrors int64
	TotalTokens     int64
	WindowSize      int
	WindowToolCalls int
	WindowErrors    int
	WindowTokens    int
}

// Snapshot returns a point-in-time view of the ring buffer and totals.
func (h *MetricHistory) Snapshot() MetricSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := h.next
	if h.filled {
		count = h.size
	}

	snap := MetricSnapshot{
		TotalToolCalls:  h.toolCalls,
		TotalToolErrors: h.toolErrors,
		TotalTokens:     h.tokensTotal,
		WindowSize:      count,
	}
	for i := 0; i < count; i++ {
		e := h.entries[i]
		if e.hasTool {
			snap.WindowToolCalls++
			if !e.toolOK {
				snap.WindowErrors++
			}
		}
		snap.WindowTokens += e.tokens
	}
	return snap
}
