// SPDX-License-Identifier: MIT
package tempo

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// spectralAnalyzer turns an analysis window into a single band-limited
// energy value for the configured bass range.
//
// Every buffer it touches is pre-allocated in newSpectralAnalyzer; BandEnergy
// is allocation-free and performs no validation (configuration is checked
// once at setup).
type spectralAnalyzer struct {
	fft        *fourier.FFT
	size       int
	sampleRate float64

	win       []float64    // Window coefficients, length size.
	scratch   []float64    // Windowed input, length size.
	coeffs    []complex128 // FFT output, length size/2+1.
	magnitude []float64    // Per-bin magnitudes, length size/2+1.

	loBin, hiBin int // Inclusive bin range covering [BassMin, BassMax].
}

func newSpectralAnalyzer(cfg Config) *spectralAnalyzer {
	coeffs := make([]float64, cfg.FFTSize)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch cfg.WindowType {
	case BlackmanHarris:
		window.BlackmanHarris(coeffs)
	default:
		window.Hamming(coeffs)
	}

	a := &spectralAnalyzer{
		fft:        fourier.NewFFT(cfg.FFTSize),
		size:       cfg.FFTSize,
		sampleRate: cfg.SampleRate,
		win:        coeffs,
		scratch:    make([]float64, cfg.FFTSize),
		coeffs:     make([]complex128, cfg.FFTSize/2+1),
		magnitude:  make([]float64, cfg.FFTSize/2+1),
	}

	// Bin index for frequency f is round(f / resolution). The band never
	// reaches past Nyquist; validate() already enforced BassMax.
	res := a.Resolution()
	a.loBin = int(math.Round(cfg.BassMin / res))
	a.hiBin = int(math.Round(cfg.BassMax / res))
	if a.loBin < 1 {
		a.loBin = 1 // Skip the DC bin.
	}
	if a.hiBin > cfg.FFTSize/2 {
		a.hiBin = cfg.FFTSize / 2
	}
	return a
}

// BandEnergy applies the window function, computes the forward magnitude
// spectrum and returns the mean magnitude across the configured bass band.
// Magnitudes are scaled by 2/N so a full-scale sine contributes roughly its
// amplitude to its bin, independent of FFT size.
//
// Scale convention: the value is the band sum divided by the bin count, so
// it is also independent of the band width. Beat thresholding is ratio
// based and unaffected by the constant factor; only the EnergySaturation
// tuning assumes this normalization.
func (a *spectralAnalyzer) BandEnergy(samples []float64) float64 {
	for i, s := range samples {
		a.scratch[i] = s * a.win[i]
	}
	a.fft.Coefficients(a.coeffs, a.scratch)

	scale := 2.0 / float64(a.size)
	for i, c := range a.coeffs {
		a.magnitude[i] = cmplx.Abs(c) * scale
	}

	var sum float64
	for i := a.loBin; i <= a.hiBin; i++ {
		sum += a.magnitude[i]
	}
	return sum / float64(a.hiBin-a.loBin+1)
}

// Resolution returns the frequency width of one FFT bin in Hz.
func (a *spectralAnalyzer) Resolution() float64 {
	return a.sampleRate / float64(a.size)
}

// BinFrequency returns the center frequency for a bin index, 0 for indexes
// outside the spectrum.
func (a *spectralAnalyzer) BinFrequency(bin int) float64 {
	if bin < 0 || bin >= len(a.coeffs) {
		return 0
	}
	return float64(bin) * a.Resolution()
}
