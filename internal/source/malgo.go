// SPDX-License-Identifier: MIT
package source

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	applog "tempo/internal/log"
)

// malgoQueueSamples bounds the callback-to-reader queue. At 48 kHz this
// holds ~170 ms of audio before the callback starts dropping.
const malgoQueueSamples = 8192

// Malgo captures mono float32 audio through the miniaudio bindings. It is
// the fallback backend for platforms where PortAudio is unavailable. The
// device callback feeds a buffered channel; when the reader falls behind,
// samples are dropped rather than blocking the audio thread.
type Malgo struct {
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	samples chan float64
	quit    chan struct{}

	dropped atomic.Uint64
	mu      sync.Mutex
	closed  bool
}

// NewMalgo opens and starts a capture device. An empty deviceName selects
// the system default; otherwise the first capture device whose name
// contains deviceName is used.
func NewMalgo(deviceName string, sampleRate float64, framesPerBuffer int) (*Malgo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio context: %w", err)
	}

	m := &Malgo{
		ctx:     ctx,
		samples: make(chan float64, malgoQueueSamples),
		quit:    make(chan struct{}),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(framesPerBuffer)
	deviceConfig.Alsa.NoMMap = 1

	if deviceName != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			m.teardownContext()
			return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
		}
		found := false
		for i := range infos {
			if infos[i].Name() == deviceName {
				deviceConfig.Capture.DeviceID = infos[i].ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			m.teardownContext()
			return nil, fmt.Errorf("capture device %q not found", deviceName)
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: m.onData,
	})
	if err != nil {
		m.teardownContext()
		return nil, fmt.Errorf("failed to open capture device: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		m.teardownContext()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	applog.Infof("Source: Capturing via miniaudio (%d Hz, %d frames/period)",
		device.SampleRate(), framesPerBuffer)
	return m, nil
}

// onData runs on the audio thread. It must never block.
func (m *Malgo) onData(_, input []byte, frameCount uint32) {
	const bytesPerSample = 4
	n := int(frameCount)
	if n*bytesPerSample > len(input) {
		n = len(input) / bytesPerSample
	}
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(input[i*bytesPerSample:])
		v := float64(math.Float32frombits(bits))
		select {
		case m.samples <- v:
		default:
			m.dropped.Add(1)
		}
	}
}

// ReadSample implements Source, blocking until the device delivers a
// sample or the source is closed.
func (m *Malgo) ReadSample() (float64, error) {
	select {
	case v := <-m.samples:
		return v, nil
	case <-m.quit:
		return 0, ErrClosed
	}
}

// Close stops the device and releases the miniaudio context.
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.quit)

	m.device.Uninit()
	if n := m.dropped.Load(); n > 0 {
		applog.Warnf("Source: Dropped %d samples (reader fell behind)", n)
	}
	return m.teardownContext()
}

func (m *Malgo) teardownContext() error {
	if err := m.ctx.Uninit(); err != nil {
		return err
	}
	m.ctx.Free()
	return nil
}
