package telemetry

import "sync"

// History is a fixed-capacity ring buffer of samples. Once full, each Push
// evicts the oldest sample.
type History struct {
	mu    sync.Mutex
	buf   []Sample
	start int
	n     int
}

// NewHistory creates a History holding at most capacity samples.
func NewHistory(capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	return &History{buf: make([]Sample, capacity)}
}

// Push appends s as the newest sample.
func (h *History) Push(s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.push(s)
}

func (h *History) push(s Sample) {
	if len(h.buf) == 0 {
		return
	}
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// Backfill replaces the contents with samples given most recent first, the
// order BuildSeries produces.
func (h *History) Backfill(recentFirst []Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.start, h.n = 0, 0
	for i := len(recentFirst) - 1; i >= 0; i-- {
		h.push(recentFirst[i])
	}
}

// Newest returns the most recently pushed sample.
func (h *History) Newest() (Sample, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.n == 0 {
		return Sample{}, false
	}
	return h.buf[(h.start+h.n-1)%len(h.buf)], true
}

// Samples returns a copy of the buffer, oldest first.
func (h *History) Samples() []Sample {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Sample, h.n)
	for i := range out {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Recent returns a copy of the buffer, most recent first.
func (h *History) Recent() []Sample {
	out := h.Samples()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of samples held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

// Cap returns the buffer capacity.
func (h *History) Cap() int {
	return len(h.buf)
}

// Reset empties the buffer.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.start, h.n = 0, 0
}
