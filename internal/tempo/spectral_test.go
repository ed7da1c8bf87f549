// SPDX-License-Identifier: MIT
package tempo

import (
	"testing"

	"tempo/pkg/testsig"
)

func TestSpectralResolution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 25000
	cfg.FFTSize = 1024
	cfg.BassMax = 200

	a := newSpectralAnalyzer(cfg)
	res := a.Resolution()
	if res <= 20 || res >= 30 {
		t.Errorf("resolution for 25 kHz / 1024 points = %.2f Hz/bin, want in (20, 30)", res)
	}

	// Bin frequency is bin * resolution.
	if got := a.BinFrequency(4); got != 4*res {
		t.Errorf("BinFrequency(4) = %v, want %v", got, 4*res)
	}
	if got := a.BinFrequency(-1); got != 0 {
		t.Errorf("BinFrequency(-1) = %v, want 0", got)
	}
	if got := a.BinFrequency(1024); got != 0 {
		t.Errorf("BinFrequency past Nyquist = %v, want 0", got)
	}
}

func TestBandEnergySelectivity(t *testing.T) {
	cfg := DefaultConfig() // 8 kHz, 512 points, band 40-200 Hz

	for _, wt := range []WindowFunc{Hamming, BlackmanHarris} {
		t.Run(wt.String(), func(t *testing.T) {
			a := newSpectralAnalyzer(cfg)

			inBand := testsig.Sine(cfg.FFTSize, cfg.SampleRate, 100, 1.0)
			outBand := testsig.Sine(cfg.FFTSize, cfg.SampleRate, 1000, 1.0)

			eIn := a.BandEnergy(inBand)
			eOut := a.BandEnergy(outBand)
			if eIn <= 0 {
				t.Fatalf("in-band energy = %v, want > 0", eIn)
			}
			if eIn < 10*eOut {
				t.Errorf("in-band energy %v not dominant over out-of-band %v", eIn, eOut)
			}
		})
	}
}

func TestBandEnergyScaling(t *testing.T) {
	// Doubling the amplitude must double the band energy; the 2/N magnitude
	// scaling keeps values comparable across FFT sizes.
	cfg := DefaultConfig()
	a := newSpectralAnalyzer(cfg)

	half := a.BandEnergy(testsig.Sine(cfg.FFTSize, cfg.SampleRate, 100, 0.5))
	full := a.BandEnergy(testsig.Sine(cfg.FFTSize, cfg.SampleRate, 100, 1.0))

	ratio := full / half
	if ratio < 1.9 || ratio > 2.1 {
		t.Errorf("energy ratio for doubled amplitude = %.3f, want ~2", ratio)
	}
}

func TestSineRMS(t *testing.T) {
	// Unit-amplitude sine over full periods: RMS = 1/sqrt(2).
	sig := testsig.Sine(8000, 8000, 100, 1.0) // 100 full periods
	rms := testsig.RMS(sig)
	if rms < 0.697 || rms > 0.717 {
		t.Errorf("sine RMS = %.4f, want 0.707 +- 0.01", rms)
	}
}

func TestBandEnergyHotPath(t *testing.T) {
	cfg := DefaultConfig()
	a := newSpectralAnalyzer(cfg)
	sig := testsig.Sine(cfg.FFTSize, cfg.SampleRate, 100, 1.0)

	// Warm-up call.
	a.BandEnergy(sig)
	allocs := testing.AllocsPerRun(100, func() {
		a.BandEnergy(sig)
	})
	if allocs > 0 {
		t.Errorf("expected zero allocations in BandEnergy hot path, got %.1f", allocs)
	}
}

func BenchmarkBandEnergy(b *testing.B) {
	cfg := DefaultConfig()
	a := newSpectralAnalyzer(cfg)
	sig := testsig.Sine(cfg.FFTSize, cfg.SampleRate, 100, 1.0)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		a.BandEnergy(sig)
	}
}
