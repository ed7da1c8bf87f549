// SPDX-License-Identifier: MIT
package tempo

// beatHistory is a bounded ring of recent beat timestamps, insertion
// ordered, oldest evicted on overflow. Timestamps are strictly increasing;
// a violation is an upstream bug surfaced as errNonMonotonicBeat.
type beatHistory struct {
	stamps []uint64
	head   int // Next write position.
	count  int
	last   uint64
}

func newBeatHistory(capacity int) *beatHistory {
	return &beatHistory{stamps: make([]uint64, capacity)}
}

// Record pushes a beat timestamp, evicting the oldest when full.
func (h *beatHistory) Record(timestampMs uint64) error {
	if h.count > 0 && timestampMs <= h.last {
		return errNonMonotonicBeat
	}
	h.stamps[h.head] = timestampMs
	h.head++
	if h.head == len(h.stamps) {
		h.head = 0
	}
	if h.count < len(h.stamps) {
		h.count++
	}
	h.last = timestampMs
	return nil
}

// Intervals fills dst with the consecutive deltas between retained
// timestamps, oldest to newest, and returns the filled prefix. dst must have
// capacity for count-1 values; with fewer than two timestamps the result is
// empty.
func (h *beatHistory) Intervals(dst []float64) []float64 {
	if h.count < 2 {
		return dst[:0]
	}
	dst = dst[:h.count-1]
	oldest := h.head - h.count
	if oldest < 0 {
		oldest += len(h.stamps)
	}
	prev := h.stamps[oldest]
	for i := 1; i < h.count; i++ {
		idx := oldest + i
		if idx >= len(h.stamps) {
			idx -= len(h.stamps)
		}
		cur := h.stamps[idx]
		dst[i-1] = float64(cur - prev)
		prev = cur
	}
	return dst
}

// Len returns the number of retained timestamps.
func (h *beatHistory) Len() int {
	return h.count
}

// Clear empties the ring without releasing storage.
func (h *beatHistory) Clear() {
	h.head = 0
	h.count = 0
	h.last = 0
}
