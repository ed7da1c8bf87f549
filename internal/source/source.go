// SPDX-License-Identifier: MIT
/*
Package source provides the audio-source capability the engine depends on:
a "read next sample" interface with interchangeable providers (hardware
capture via PortAudio or malgo, WAV file replay, synthetic signals). The
engine never sees a concrete provider.
*/
package source

import (
	"errors"
	"io"
)

// Source yields successive mono samples normalized to [-1, 1].
type Source interface {
	// ReadSample returns the next sample. It may block until one is
	// available (hardware capture) and returns io.EOF once the stream is
	// exhausted (file replay, bounded generators).
	ReadSample() (float64, error)
	Close() error
}

// ErrClosed is returned by ReadSample after Close.
var ErrClosed = errors.New("source: closed")

// Sink consumes one sample with its monotonic millisecond timestamp.
type Sink func(sample float64, timestampMs uint64)

// Pump drains src and forwards every sample to sink with a timestamp
// derived from the sample index at the nominal rate. It returns nil when
// the source is exhausted or done is closed. Replay and synthetic sources
// are drained as fast as the sink accepts samples; hardware sources pace
// the loop through their blocking ReadSample.
func Pump(done <-chan struct{}, src Source, sampleRate float64, sink Sink) error {
	var n uint64
	for {
		select {
		case <-done:
			return nil
		default:
		}

		v, err := src.ReadSample()
		if err == io.EOF || err == ErrClosed {
			return nil
		}
		if err != nil {
			return err
		}
		sink(v, uint64(float64(n)*1000/sampleRate))
		n++
	}
}
