// SPDX-License-Identifier: MIT
/*
Package tempo implements the real-time beat detection and BPM estimation
engine: a pipeline that turns a stream of raw amplitude samples into a
periodically-updated {bpm, confidence, signal level, status} snapshot.

Pipeline, producer side:

	IngestSample -> sampleBuffer -> (window ready?) -> spectralAnalyzer
	             -> onsetDetector -> beatHistory -> bpmEstimator -> publish

Thread safety:
  - One producer drives IngestSample at the sampling cadence.
  - Any number of consumers poll GetState at their own cadence; they only
    touch the published snapshot, never the pipeline state.
  - All buffers are allocated in New and never resized; the ingest path is
    allocation-free and never blocks.
*/
package tempo

// Engine owns the full detection pipeline. Construct it with New; a zero
// Engine is not usable.
type Engine struct {
	cfg Config

	buf       *sampleBuffer
	analyzer  *spectralAnalyzer
	onset     *onsetDetector
	history   *beatHistory
	estimator *bpmEstimator
	publisher statePublisher

	window    []float64 // Extraction scratch, length FFTSize.
	intervals []float64 // Interval scratch, capacity HistorySize-1.
}

// New validates cfg and builds an engine with all buffers pre-allocated.
// The only possible error is a *ConfigError naming the violated constraint.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:       cfg,
		buf:       newSampleBuffer(cfg.FFTSize, cfg.OverlapRatio),
		analyzer:  newSpectralAnalyzer(cfg),
		onset:     newOnsetDetector(cfg),
		history:   newBeatHistory(cfg.HistorySize),
		estimator: newBPMEstimator(cfg),
		window:    make([]float64, cfg.FFTSize),
		intervals: make([]float64, cfg.HistorySize-1),
	}
	e.publisher.Publish(DetectionState{Status: StatusDetecting})
	return e, nil
}

// Config returns the engine's immutable configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// IngestSample feeds one raw amplitude sample (normalized to [-1, 1]) with
// its monotonic millisecond timestamp. Called once per sampling tick by the
// audio source; it never blocks and never allocates. A full analysis frame
// runs only when the next overlapped window is complete.
func (e *Engine) IngestSample(raw float64, timestampMs uint64) {
	e.buf.Push(raw)
	if !e.buf.WindowReady() {
		return
	}
	if err := e.buf.ExtractWindow(e.window); err != nil {
		e.fail(timestampMs)
		return
	}

	bandEnergy := e.analyzer.BandEnergy(e.window)
	if e.onset.Observe(bandEnergy, timestampMs) {
		if err := e.history.Record(timestampMs); err != nil {
			e.fail(timestampMs)
			return
		}
	}

	signalLevel := e.onset.SignalLevel()
	bpm, confidence, status := e.estimator.Estimate(e.history.Intervals(e.intervals), signalLevel)
	if status == StatusError {
		// Internal inconsistency in the derived state; start over clean.
		e.fail(timestampMs)
		return
	}
	e.publisher.Publish(DetectionState{
		BPM:         bpm,
		Confidence:  confidence,
		SignalLevel: signalLevel,
		Status:      status,
		TimestampMs: timestampMs,
	})
}

// GetState returns a value copy of the latest published snapshot. Safe to
// call concurrently with IngestSample.
func (e *Engine) GetState() DetectionState {
	return e.publisher.Read()
}

// Reset clears all derived history and republishes the initial state while
// keeping every buffer allocated. Producer-side only; it is not meant to be
// called concurrently with IngestSample.
func (e *Engine) Reset() {
	prev := e.publisher.Read()
	e.clearDerived()
	// Keep the previous timestamp so readers never observe time moving
	// backwards across a reset.
	e.publisher.Publish(DetectionState{Status: StatusDetecting, TimestampMs: prev.TimestampMs})
}

// fail handles an internal invariant breach: surface StatusError for one
// snapshot and start over from clean derived state.
func (e *Engine) fail(timestampMs uint64) {
	e.clearDerived()
	e.publisher.Publish(DetectionState{Status: StatusError, TimestampMs: timestampMs})
}

func (e *Engine) clearDerived() {
	e.buf.Reset()
	e.onset.Reset()
	e.history.Clear()
	e.estimator.Reset()
}
