// SPDX-License-Identifier: MIT
/*
Package record captures the raw input stream to a WAV file so sessions
can be replayed through the detector later.
*/
package record

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "tempo/internal/log"
)

// recordChunkFrames is the number of samples buffered before a write to
// the encoder.
const recordChunkFrames = 4096

const recordBitDepth = 16

// Recorder writes mono samples in [-1, 1] to a 16-bit PCM WAV file.
// WriteSample is called from the analysis goroutine; the type is not safe
// for concurrent use.
type Recorder struct {
	file    *os.File
	encoder *wav.Encoder
	buf     *audio.IntBuffer
	pos     int
	frames  uint64
	closed  bool
}

// NewRecorder creates filename and prepares it for writing.
func NewRecorder(filename string, sampleRate float64) (*Recorder, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}

	rate := int(sampleRate)
	applog.Infof("Recorder: Writing %s (%d Hz, %d bit, mono)", filename, rate, recordBitDepth)

	return &Recorder{
		file:    file,
		encoder: wav.NewEncoder(file, rate, recordBitDepth, 1, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
			Data:           make([]int, recordChunkFrames),
			SourceBitDepth: recordBitDepth,
		},
	}, nil
}

// WriteSample appends one sample, flushing to the encoder when the chunk
// buffer fills. Samples outside [-1, 1] are clipped.
func (r *Recorder) WriteSample(v float64) error {
	if r.closed {
		return fmt.Errorf("recorder is closed")
	}
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	r.buf.Data[r.pos] = int(v * 32767)
	r.pos++
	r.frames++

	if r.pos == recordChunkFrames {
		return r.flush()
	}
	return nil
}

func (r *Recorder) flush() error {
	if r.pos == 0 {
		return nil
	}
	r.buf.Data = r.buf.Data[:r.pos]
	err := r.encoder.Write(r.buf)
	r.buf.Data = r.buf.Data[:cap(r.buf.Data)]
	r.pos = 0
	if err != nil {
		return fmt.Errorf("failed to write WAV chunk: %w", err)
	}
	return nil
}

// Frames returns the number of samples written so far.
func (r *Recorder) Frames() uint64 {
	return r.frames
}

// Close flushes pending samples and finalizes the WAV header.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.flush(); err != nil {
		r.encoder.Close()
		r.file.Close()
		return err
	}
	if err := r.encoder.Close(); err != nil {
		r.file.Close()
		return err
	}
	applog.Infof("Recorder: Finished (%d samples)", r.frames)
	return r.file.Close()
}
