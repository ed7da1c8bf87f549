// SPDX-License-Identifier: MIT
package source

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "tempo/internal/log"
)

// wavChunkFrames is the number of frames decoded per underlying read.
const wavChunkFrames = 2048

// WAVFile replays a WAV recording as a sample stream, for offline analysis
// and reproducible end-to-end runs. Multi-channel files are reduced to mono
// by taking the first channel.
type WAVFile struct {
	file    *os.File
	decoder *wav.Decoder
	buf     *audio.IntBuffer
	scale   float64 // 1 / 2^(bitDepth-1)

	channels int
	valid    int // Samples decoded into buf.
	pos      int // Next frame to hand out.
	closed   bool
}

// OpenWAV opens path and prepares it for replay.
func OpenWAV(path string) (*WAVFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}

	format := decoder.Format()
	applog.Infof("Source: Replaying %s (%d Hz, %d ch, %d bit)",
		path, format.SampleRate, format.NumChannels, decoder.BitDepth)

	return &WAVFile{
		file:    file,
		decoder: decoder,
		buf: &audio.IntBuffer{
			Format: format,
			Data:   make([]int, wavChunkFrames*format.NumChannels),
		},
		scale:    1 / float64(int(1)<<(decoder.BitDepth-1)),
		channels: format.NumChannels,
	}, nil
}

// SampleRate returns the file's sampling rate in Hz.
func (w *WAVFile) SampleRate() float64 {
	return float64(w.decoder.Format().SampleRate)
}

// ReadSample implements Source, returning io.EOF at end of file.
func (w *WAVFile) ReadSample() (float64, error) {
	if w.closed {
		return 0, ErrClosed
	}
	if w.pos*w.channels >= w.valid {
		n, err := w.decoder.PCMBuffer(w.buf)
		if err != nil {
			return 0, fmt.Errorf("failed to decode WAV chunk: %w", err)
		}
		if n == 0 {
			return 0, io.EOF
		}
		w.valid = n
		w.pos = 0
	}

	// First channel only.
	v := float64(w.buf.Data[w.pos*w.channels]) * w.scale
	w.pos++
	return v, nil
}

// Close implements Source.
func (w *WAVFile) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
