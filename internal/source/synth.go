// SPDX-License-Identifier: MIT
package source

import (
	"io"
	"math"
)

// Synth generates a deterministic test signal without touching audio
// hardware: either a continuous sine tone, or a click track with bursts of
// the carrier at a fixed tempo over a low noise floor. Used for demo runs
// and integration tests.
type Synth struct {
	sampleRate float64
	carrierHz  float64
	bpm        float64 // 0 for a continuous tone.
	limit      uint64  // Samples to emit, 0 for unbounded.

	n      uint64
	closed bool
}

// Burst shaping for the click-track mode.
const (
	synthBurstSec = 0.08
	synthFloorAmp = 0.01
)

// NewSynth returns a generator for a click track at bpm, or a continuous
// tone when bpm is 0. seconds bounds the stream length; 0 means unbounded.
func NewSynth(sampleRate, carrierHz, bpm, seconds float64) *Synth {
	var limit uint64
	if seconds > 0 {
		limit = uint64(seconds * sampleRate)
	}
	return &Synth{
		sampleRate: sampleRate,
		carrierHz:  carrierHz,
		bpm:        bpm,
		limit:      limit,
	}
}

// ReadSample implements Source.
func (s *Synth) ReadSample() (float64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if s.limit > 0 && s.n >= s.limit {
		return 0, io.EOF
	}

	t := float64(s.n) / s.sampleRate
	s.n++

	amp := 1.0
	if s.bpm > 0 {
		period := 60.0 / s.bpm
		if math.Mod(t, period) >= synthBurstSec {
			amp = synthFloorAmp
		}
	}
	return amp * math.Sin(2*math.Pi*s.carrierHz*t), nil
}

// Close implements Source.
func (s *Synth) Close() error {
	s.closed = true
	return nil
}
