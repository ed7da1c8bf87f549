// Package testsig provides deterministic signal generators shared by tests:
// pure tones, percussive click tracks at a known tempo, and basic signal
// measurements.
package testsig

import "math"

// Sine returns n samples of a sine wave at the given frequency and
// amplitude.
func Sine(n int, sampleRate, freq, amp float64) []float64 {
	buf := make([]float64, n)
	for i := range buf {
		t := float64(i) / sampleRate
		buf[i] = amp * math.Sin(2*math.Pi*freq*t)
	}
	return buf
}

// ClickTrack synthesizes a percussive pattern at a fixed tempo: an 80 ms
// full-amplitude burst of the carrier on every beat over a continuous
// low-level carrier floor. The floor keeps the running energy average of a
// detector non-zero between beats, like room noise would.
func ClickTrack(seconds, sampleRate, bpm, carrierHz float64) []float64 {
	const (
		burstDur = 0.08 // seconds
		floorAmp = 0.01
	)
	n := int(seconds * sampleRate)
	period := 60.0 / bpm
	buf := make([]float64, n)
	for i := range buf {
		t := float64(i) / sampleRate
		amp := floorAmp
		if math.Mod(t, period) < burstDur {
			amp = 1.0
		}
		buf[i] = amp * math.Sin(2*math.Pi*carrierHz*t)
	}
	return buf
}

// RMS returns the root mean square of the samples, 0 for an empty slice.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range samples {
		sumSq += s * s
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}
