// SPDX-License-Identifier: MIT
package source

import "math"

const meterWindow = 100

// Meter tracks the RMS level of recent samples in a fixed 100-slot ring.
// Capture providers update it per sample so operators can check microphone
// gain independently of the detector's own band-limited signal level.
// Not safe for concurrent use; each provider owns its meter.
type Meter struct {
	ring  [meterWindow]float64 // Squared samples.
	idx   int
	count int
	sumSq float64
}

// Update folds one sample into the running window.
func (m *Meter) Update(sample float64) {
	sq := sample * sample
	m.sumSq += sq - m.ring[m.idx]
	m.ring[m.idx] = sq
	m.idx++
	if m.idx == meterWindow {
		m.idx = 0
	}
	if m.count < meterWindow {
		m.count++
	}
}

// Level returns the RMS over the current window, clamped to [0, 1].
// A full-scale sine reads ~0.707.
func (m *Meter) Level() float64 {
	if m.count == 0 {
		return 0
	}
	// The incremental sum drifts with float rounding; it stays far below
	// the 0.01 tolerances used around signal levels.
	rms := math.Sqrt(math.Max(m.sumSq, 0) / float64(m.count))
	if rms > 1 {
		return 1
	}
	return rms
}

// Reset clears the window.
func (m *Meter) Reset() {
	m.ring = [meterWindow]float64{}
	m.idx = 0
	m.count = 0
	m.sumSq = 0
}
