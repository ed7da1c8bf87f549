// SPDX-License-Identifier: MIT
package tempo

import (
	"fmt"
	"strings"

	"tempo/pkg/bitint"
)

// WindowFunc selects the FFT window applied before spectral analysis.
// Hamming is cheap with decent side-lobe suppression; Blackman-Harris
// suppresses leakage further at slightly higher cost.
type WindowFunc int

const (
	Hamming WindowFunc = iota
	BlackmanHarris
)

func (w WindowFunc) String() string {
	switch w {
	case Hamming:
		return "hamming"
	case BlackmanHarris:
		return "blackmanharris"
	default:
		return "unknown"
	}
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "hamming":
		return Hamming, nil
	case "blackmanharris", "blackman-harris":
		return BlackmanHarris, nil
	default:
		return Hamming, fmt.Errorf("unknown FFT window function name: %q", name)
	}
}

// Hard limits for engine configuration. FFT sizes above MaxFFTSize would
// exceed the fixed per-instance memory ceiling.
const (
	MinSampleRate = 8000   // Hz
	MaxSampleRate = 192000 // Hz
	MaxFFTSize    = 8192
)

// Config holds every tunable of the detection engine. All buffers are sized
// from it once at construction; nothing is revalidated or resized at runtime.
type Config struct {
	SampleRate float64 // Input sampling rate in Hz.
	FFTSize    int     // Analysis window length N, power of two.

	MinBPM float64 // Lower bound for a publishable tempo.
	MaxBPM float64 // Upper bound; also sets the beat refractory period.

	// DetectionThreshold is the onset threshold factor: a beat requires
	// bandEnergy > avgEnergy * DetectionThreshold.
	DetectionThreshold float64

	WindowType   WindowFunc
	OverlapRatio float64 // Window overlap in [0, 1); hop = (1-r)*N samples.

	BassMin float64 // Low edge of the percussive energy band, Hz.
	BassMax float64 // High edge, Hz; must not exceed Nyquist.

	SmoothingAlpha   float64 // EWMA factor for the running energy average.
	EnergySaturation float64 // avgEnergy value mapping to signal level 1.0.

	HistorySize  int // Beat timestamps retained (K).
	MinIntervals int // Intervals required before estimating.

	ConfidenceFloor float64 // Below this the status is low_confidence.
	SignalFloor     float64 // Below this signal level the status is low_signal.
}

// DefaultConfig returns the tuning used on the reference hardware: 8 kHz
// sampling, 512-point FFT, kick-drum band 40-200 Hz, 60-200 BPM.
func DefaultConfig() Config {
	return Config{
		SampleRate:         8000,
		FFTSize:            512,
		MinBPM:             60,
		MaxBPM:             200,
		DetectionThreshold: 1.5,
		WindowType:         Hamming,
		OverlapRatio:       0.5,
		BassMin:            40,
		BassMax:            200,
		SmoothingAlpha:     0.125,
		EnergySaturation:   0.25,
		HistorySize:        32,
		MinIntervals:       4,
		ConfidenceFloor:    0.3,
		SignalFloor:        0.01,
	}
}

// validate checks every constraint once. The hot path relies on this having
// passed and performs no per-call validation.
func (c *Config) validate() error {
	if c.SampleRate < MinSampleRate || c.SampleRate > MaxSampleRate {
		return &ConfigError{"sample_rate", fmt.Sprintf("must be in [%d, %d] Hz, got %g", MinSampleRate, MaxSampleRate, c.SampleRate)}
	}
	if !bitint.IsPowerOfTwo(c.FFTSize) {
		return &ConfigError{"fft_size", fmt.Sprintf("must be a power of two, got %d", c.FFTSize)}
	}
	if c.FFTSize > MaxFFTSize {
		return &ConfigError{"fft_size", fmt.Sprintf("must not exceed %d, got %d", MaxFFTSize, c.FFTSize)}
	}
	if c.MinBPM <= 0 {
		return &ConfigError{"min_bpm", fmt.Sprintf("must be positive, got %g", c.MinBPM)}
	}
	if c.MinBPM >= c.MaxBPM {
		return &ConfigError{"max_bpm", fmt.Sprintf("must exceed min_bpm (%g), got %g", c.MinBPM, c.MaxBPM)}
	}
	if c.DetectionThreshold <= 1 {
		return &ConfigError{"detection_threshold", fmt.Sprintf("must exceed 1, got %g", c.DetectionThreshold)}
	}
	if c.OverlapRatio < 0 || c.OverlapRatio >= 1 {
		return &ConfigError{"overlap_ratio", fmt.Sprintf("must be in [0, 1), got %g", c.OverlapRatio)}
	}
	if c.BassMin <= 0 || c.BassMin >= c.BassMax {
		return &ConfigError{"bass_min", fmt.Sprintf("must satisfy 0 < bass_min < bass_max, got %g", c.BassMin)}
	}
	if nyquist := c.SampleRate / 2; c.BassMax > nyquist {
		return &ConfigError{"bass_max", fmt.Sprintf("must not exceed Nyquist (%g Hz), got %g", nyquist, c.BassMax)}
	}
	if c.SmoothingAlpha <= 0 || c.SmoothingAlpha >= 1 {
		return &ConfigError{"smoothing_alpha", fmt.Sprintf("must be in (0, 1), got %g", c.SmoothingAlpha)}
	}
	if c.EnergySaturation <= 0 {
		return &ConfigError{"energy_saturation", fmt.Sprintf("must be positive, got %g", c.EnergySaturation)}
	}
	if c.HistorySize < 2 {
		return &ConfigError{"history_size", fmt.Sprintf("must be at least 2, got %d", c.HistorySize)}
	}
	if c.MinIntervals < 1 || c.MinIntervals > c.HistorySize-1 {
		return &ConfigError{"min_intervals", fmt.Sprintf("must be in [1, history_size-1], got %d", c.MinIntervals)}
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return &ConfigError{"confidence_floor", fmt.Sprintf("must be in [0, 1], got %g", c.ConfidenceFloor)}
	}
	if c.SignalFloor < 0 || c.SignalFloor > 1 {
		return &ConfigError{"signal_floor", fmt.Sprintf("must be in [0, 1], got %g", c.SignalFloor)}
	}
	return nil
}
