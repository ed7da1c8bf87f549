// SPDX-License-Identifier: MIT
package tempo

import (
	"slices"

	"gonum.org/v1/gonum/stat"
)

// bpmEstimator converts inter-beat intervals into a tempo estimate with a
// regularity-based confidence score.
//
// The median interval is used rather than the mean: an isolated missed or
// doubled beat produces one wild interval which would bias a mean estimate
// arbitrarily but leaves the median untouched.
type bpmEstimator struct {
	minBPM, maxBPM  float64
	minIntervals    int
	confidenceFloor float64
	signalFloor     float64

	sorted    []float64 // Scratch for the median sort, capacity K-1.
	lastValid float64   // Previous in-range estimate, retained on range misses.
}

func newBPMEstimator(cfg Config) *bpmEstimator {
	return &bpmEstimator{
		minBPM:          cfg.MinBPM,
		maxBPM:          cfg.MaxBPM,
		minIntervals:    cfg.MinIntervals,
		confidenceFloor: cfg.ConfidenceFloor,
		signalFloor:     cfg.SignalFloor,
		sorted:          make([]float64, 0, cfg.HistorySize-1),
	}
}

// Estimate derives (bpm, confidence, status) from the interval sequence and
// the upstream signal level. Allocation-free; intervals is not modified.
func (e *bpmEstimator) Estimate(intervals []float64, signalLevel float64) (bpm, confidence float64, status Status) {
	if signalLevel < e.signalFloor {
		return e.lastValid, 0, StatusLowSignal
	}
	if len(intervals) < e.minIntervals {
		return 0, 0, StatusDetecting
	}

	e.sorted = append(e.sorted[:0], intervals...)
	slices.Sort(e.sorted)
	// Deterministic even-count median: the element at count/2, not the pair
	// average.
	median := e.sorted[len(e.sorted)/2]
	if median <= 0 {
		// Guarded upstream by strictly-increasing timestamps.
		return e.lastValid, 0, StatusError
	}
	bpm = 60000 / median

	// Coefficient of variation of the intervals; a single interval carries
	// no spread information and counts as perfectly regular.
	cv := 0.0
	if len(intervals) > 1 {
		mean := stat.Mean(intervals, nil)
		cv = stat.StdDev(intervals, nil) / mean
	}
	confidence = clamp01(1 - 2*cv)

	if bpm < e.minBPM || bpm > e.maxBPM {
		// Out-of-range estimates are not published as-is; keep the last
		// valid tempo and flag it.
		return e.lastValid, confidence, StatusLowConfidence
	}
	e.lastValid = bpm

	if confidence < e.confidenceFloor {
		return bpm, confidence, StatusLowConfidence
	}
	return bpm, confidence, StatusDetecting
}

// Reset forgets the previously published tempo.
func (e *bpmEstimator) Reset() {
	e.lastValid = 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
