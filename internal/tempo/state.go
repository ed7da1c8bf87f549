// SPDX-License-Identifier: MIT
package tempo

import (
	"fmt"
	"sync"
)

// Status describes the quality of the current tempo estimate.
type Status uint8

const (
	// StatusDetecting means the estimate is live and bpm is inside the
	// configured [MinBPM, MaxBPM] range (or the engine is still warming up
	// with bpm = 0).
	StatusDetecting Status = iota
	// StatusLowSignal means input energy is too low to trust the estimate.
	StatusLowSignal
	// StatusLowConfidence means beat intervals are too irregular, or the
	// raw estimate fell outside the configured BPM range.
	StatusLowConfidence
	// StatusError means an internal invariant was violated; the engine has
	// already reset itself.
	StatusError
)

// String returns the wire-friendly name of the status.
func (s Status) String() string {
	switch s {
	case StatusDetecting:
		return "detecting"
	case StatusLowSignal:
		return "low_signal"
	case StatusLowConfidence:
		return "low_confidence"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so a Status serializes as
// its string form in JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, the inverse of
// MarshalText, so wire payloads carrying a status round-trip.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "detecting":
		*s = StatusDetecting
	case "low_signal":
		*s = StatusLowSignal
	case "low_confidence":
		*s = StatusLowConfidence
	case "error":
		*s = StatusError
	default:
		return fmt.Errorf("unknown status name: %q", text)
	}
	return nil
}

// DetectionState is the snapshot published by the engine after every
// analysis frame. It is always passed and returned by value; consumers can
// never observe a partially-updated state.
type DetectionState struct {
	BPM         float64 // Estimated tempo in beats per minute (0 while warming up).
	Confidence  float64 // Regularity-based confidence in [0, 1].
	SignalLevel float64 // Normalized input level in [0, 1].
	Status      Status
	TimestampMs uint64 // Timestamp of the frame that produced this state.
}

// statePublisher holds the latest snapshot for concurrent readers.
//
// The producer (the engine's ingest path) replaces the snapshot under a
// short write lock; any number of consumers copy it out under a read lock.
// The critical section is a single struct copy, so the producer is never
// blocked for longer than that.
type statePublisher struct {
	mu    sync.RWMutex
	state DetectionState
}

// Publish atomically replaces the visible snapshot.
func (p *statePublisher) Publish(state DetectionState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

// Read returns a value copy of the latest snapshot. Cheap enough to be
// polled frequently by external consumers.
func (p *statePublisher) Read() DetectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}
