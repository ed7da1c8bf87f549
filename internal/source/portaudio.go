// SPDX-License-Identifier: MIT
package source

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	applog "tempo/internal/log"
)

// Initialize starts the PortAudio subsystem. Call once before opening a
// PortAudio source or listing devices, and pair with Terminate.
func Initialize() error {
	return portaudio.Initialize()
}

// Terminate shuts the PortAudio subsystem down.
func Terminate() error {
	return portaudio.Terminate()
}

// Device describes a capture-capable audio device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
}

// ListDevices returns all devices with at least one input channel.
// PortAudio must be initialized.
func ListDevices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate audio devices: %w", err)
	}
	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		if info.MaxInputChannels < 1 {
			continue
		}
		devices = append(devices, Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		})
	}
	return devices, nil
}

// PortAudio captures mono audio from a PortAudio input device using a
// blocking stream. ReadSample hands out buffered frames and refills from
// the device when the chunk is exhausted, so the pump is paced by the
// device clock.
type PortAudio struct {
	stream *portaudio.Stream
	frames []float32
	pos    int
	valid  int
	meter  Meter
	closed bool
}

// NewPortAudio opens and starts a capture stream on the given device
// (-1 for the system default). PortAudio must be initialized.
func NewPortAudio(deviceID int, sampleRate float64, framesPerBuffer int, lowLatency bool) (*PortAudio, error) {
	var info *portaudio.DeviceInfo
	var err error
	if deviceID < 0 {
		info, err = portaudio.DefaultInputDevice()
	} else {
		var infos []*portaudio.DeviceInfo
		infos, err = portaudio.Devices()
		if err == nil {
			if deviceID >= len(infos) {
				return nil, fmt.Errorf("audio device %d does not exist", deviceID)
			}
			info = infos[deviceID]
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input device: %w", err)
	}
	if info.MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %q has no input channels", info.Name)
	}

	latency := info.DefaultHighInputLatency
	if lowLatency {
		latency = info.DefaultLowInputLatency
	}

	p := &PortAudio{frames: make([]float32, framesPerBuffer)}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: 1,
			Latency:  latency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, p.frames)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start capture stream: %w", err)
	}
	p.stream = stream

	applog.Infof("Source: Capturing from %q (%.0f Hz, %d frames/buffer, latency %s)",
		info.Name, sampleRate, framesPerBuffer, latency)
	return p, nil
}

// ReadSample implements Source, blocking on the device when a fresh chunk
// is needed.
func (p *PortAudio) ReadSample() (float64, error) {
	if p.closed {
		return 0, ErrClosed
	}
	if p.pos >= p.valid {
		if err := p.stream.Read(); err != nil {
			return 0, fmt.Errorf("capture read failed: %w", err)
		}
		p.valid = len(p.frames)
		p.pos = 0
	}

	v := float64(p.frames[p.pos])
	p.pos++
	p.meter.Update(v)
	return v, nil
}

// Level returns the device-side RMS input level.
func (p *PortAudio) Level() float64 {
	return p.meter.Level()
}

// Close stops and closes the capture stream.
func (p *PortAudio) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.stream.Stop(); err != nil {
		p.stream.Close()
		return err
	}
	return p.stream.Close()
}
