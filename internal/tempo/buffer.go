// SPDX-License-Identifier: MIT
package tempo

import "math"

// sampleBuffer is a fixed-capacity ring of raw amplitude samples from which
// overlapping analysis windows are extracted. Capacity equals the FFT size;
// consecutive windows share overlapRatio*N samples.
//
// All storage is allocated in newSampleBuffer. Push and ExtractWindow are
// allocation-free.
type sampleBuffer struct {
	data  []float64
	size  int // Window length N.
	hop   int // New samples required between extractions.
	head  int // Next write position.
	count int // Valid samples, saturates at size.
	fresh int // Samples pushed since the last extraction.
}

func newSampleBuffer(size int, overlapRatio float64) *sampleBuffer {
	hop := int(math.Round(float64(size) * (1 - overlapRatio)))
	if hop < 1 {
		hop = 1
	}
	return &sampleBuffer{
		data: make([]float64, size),
		size: size,
		hop:  hop,
	}
}

// Push appends one sample, overwriting the oldest once the ring is full.
func (b *sampleBuffer) Push(v float64) {
	b.data[b.head] = v
	b.head++
	if b.head == b.size {
		b.head = 0
	}
	if b.count < b.size {
		b.count++
	}
	b.fresh++
}

// WindowReady reports whether enough new samples have arrived to form the
// next overlapped window.
func (b *sampleBuffer) WindowReady() bool {
	return b.count == b.size && b.fresh >= b.hop
}

// ExtractWindow copies the current window, oldest sample first, into dst and
// arms the buffer for the next hop. Calling it when WindowReady is false is
// a caller bug and returns errWindowNotReady.
func (b *sampleBuffer) ExtractWindow(dst []float64) error {
	if !b.WindowReady() || len(dst) != b.size {
		return errWindowNotReady
	}
	// count == size, so head points at the oldest sample.
	n := copy(dst, b.data[b.head:])
	copy(dst[n:], b.data[:b.head])
	b.fresh = 0
	return nil
}

// Reset empties the ring without releasing storage.
func (b *sampleBuffer) Reset() {
	b.head = 0
	b.count = 0
	b.fresh = 0
}
