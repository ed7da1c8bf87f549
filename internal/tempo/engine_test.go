// SPDX-License-Identifier: MIT
package tempo

import (
	"errors"
	"sync"
	"testing"

	"tempo/pkg/testsig"
)

// feed pushes a signal through the engine with timestamps derived from the
// sample index at the configured rate.
func feed(e *Engine, signal []float64) {
	rate := uint64(e.Config().SampleRate)
	for i, s := range signal {
		e.IngestSample(s, uint64(i)*1000/rate)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"non-power-of-two fft size", func(c *Config) { c.FFTSize = 1000 }, "fft_size"},
		{"fft size over ceiling", func(c *Config) { c.FFTSize = 16384 }, "fft_size"},
		{"sample rate too low", func(c *Config) { c.SampleRate = 4000 }, "sample_rate"},
		{"min bpm above max", func(c *Config) { c.MinBPM = 210 }, "max_bpm"},
		{"overlap ratio one", func(c *Config) { c.OverlapRatio = 1.0 }, "overlap_ratio"},
		{"band above nyquist", func(c *Config) { c.BassMax = 5000 }, "bass_max"},
		{"inverted band", func(c *Config) { c.BassMin = 300 }, "bass_min"},
		{"threshold not above one", func(c *Config) { c.DetectionThreshold = 1.0 }, "detection_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			engine, err := New(cfg)
			if engine != nil {
				t.Fatal("expected nil engine for invalid config")
			}
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("ConfigError.Field = %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}

func TestEngineInitialState(t *testing.T) {
	engine, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	state := engine.GetState()
	if state.BPM != 0 || state.Confidence != 0 || state.Status != StatusDetecting {
		t.Errorf("initial state = %+v, want zero bpm/confidence and detecting", state)
	}
}

func TestEngineDetectsClickTrack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SignalFloor = 0.005
	cfg.EnergySaturation = 0.05

	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	feed(engine, testsig.ClickTrack(10, cfg.SampleRate, 120, 80))

	state := engine.GetState()
	if state.Status != StatusDetecting {
		t.Fatalf("status = %v (state %+v), want detecting", state.Status, state)
	}
	// Beat timestamps are quantized to the hop interval, so allow a wide
	// band around the true tempo.
	if state.BPM < 105 || state.BPM > 135 {
		t.Errorf("bpm = %.2f for a 120 BPM click track, want within [105, 135]", state.BPM)
	}
	if state.Confidence < 0.5 {
		t.Errorf("confidence = %.3f for a steady click track, want > 0.5", state.Confidence)
	}
	if state.SignalLevel <= cfg.SignalFloor {
		t.Errorf("signal level = %.4f, want above the floor", state.SignalLevel)
	}
	if engine.history.Len() < cfg.MinIntervals+1 {
		t.Errorf("recorded %d beats over 10 s, want at least %d", engine.history.Len(), cfg.MinIntervals+1)
	}
}

func TestEngineStateInRangeOrFlagged(t *testing.T) {
	// Whatever the input looks like, a detecting status implies an in-range
	// tempo once the warm-up phase (bpm 0) is over.
	cfg := DefaultConfig()
	cfg.SignalFloor = 0.005
	cfg.EnergySaturation = 0.05

	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	signal := testsig.ClickTrack(8, cfg.SampleRate, 150, 100)
	rate := uint64(cfg.SampleRate)
	for i, s := range signal {
		engine.IngestSample(s, uint64(i)*1000/rate)
		state := engine.GetState()
		if state.Status == StatusDetecting && state.BPM != 0 {
			if state.BPM < cfg.MinBPM || state.BPM > cfg.MaxBPM {
				t.Fatalf("detecting with out-of-range bpm %.2f at ts %d", state.BPM, state.TimestampMs)
			}
		}
	}
}

func TestEngineQuietInputIsLowSignal(t *testing.T) {
	cfg := DefaultConfig()
	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Near-silence: a residual hum far below the signal floor.
	feed(engine, testsig.Sine(int(cfg.SampleRate*3), cfg.SampleRate, 100, 0.0005))

	state := engine.GetState()
	if state.Status != StatusLowSignal {
		t.Errorf("status = %v for near-silent input, want low_signal", state.Status)
	}
	if state.Confidence != 0 {
		t.Errorf("confidence = %v for near-silent input, want 0", state.Confidence)
	}
}

func TestEngineReset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SignalFloor = 0.005
	cfg.EnergySaturation = 0.05

	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	feed(engine, testsig.ClickTrack(6, cfg.SampleRate, 120, 80))
	before := engine.GetState()
	if before.BPM == 0 {
		t.Fatal("expected a live estimate before reset")
	}

	engine.Reset()
	state := engine.GetState()
	if state.BPM != 0 || state.Confidence != 0 || state.Status != StatusDetecting {
		t.Errorf("state after reset = %+v, want zeroed detecting state", state)
	}
	if engine.history.Len() != 0 {
		t.Errorf("history holds %d beats after reset, want 0", engine.history.Len())
	}
	if state.TimestampMs != before.TimestampMs {
		t.Errorf("reset moved timestamp from %d to %d; readers must never see time regress",
			before.TimestampMs, state.TimestampMs)
	}
}

func TestEngineInvariantBreachPublishesErrorAndResets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SignalFloor = 0.005
	cfg.EnergySaturation = 0.05

	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	signal := testsig.ClickTrack(4, cfg.SampleRate, 120, 80)
	feed(engine, signal)
	if engine.history.Len() == 0 {
		t.Fatal("expected recorded beats before the replay")
	}

	// Replaying the stream restarts timestamps from zero; the first beat it
	// detects lands behind the retained history, which must surface one
	// error snapshot and force a reset.
	rate := uint64(cfg.SampleRate)
	sawError := false
	for i, s := range signal {
		engine.IngestSample(s, uint64(i)*1000/rate)
		if !sawError && engine.GetState().Status == StatusError {
			sawError = true
			if engine.history.Len() != 0 {
				t.Errorf("history holds %d beats at the error snapshot, want 0", engine.history.Len())
			}
		}
	}
	if !sawError {
		t.Fatal("expected an error snapshot after the timestamp regression")
	}
	if state := engine.GetState(); state.Status == StatusError {
		t.Errorf("error status persisted to the end of the replay: %+v", state)
	}
}

func TestEngineConcurrentReaders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SignalFloor = 0.005
	cfg.EnergySaturation = 0.05

	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var lastTs uint64
			for {
				select {
				case <-stop:
					return
				default:
				}
				state := engine.GetState()
				if state.TimestampMs < lastTs {
					t.Errorf("timestamp regressed: %d after %d", state.TimestampMs, lastTs)
					return
				}
				lastTs = state.TimestampMs
			}
		}()
	}

	feed(engine, testsig.ClickTrack(5, cfg.SampleRate, 120, 80))
	close(stop)
	wg.Wait()
}

func TestIngestSampleHotPath(t *testing.T) {
	cfg := DefaultConfig()
	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	signal := testsig.ClickTrack(4, cfg.SampleRate, 120, 80)
	// Warm up: fill the ring and run several full frames.
	feed(engine, signal)

	hop := engine.buf.hop
	ts := uint64(4000)
	allocs := testing.AllocsPerRun(50, func() {
		// One full analysis frame per run.
		for i := 0; i < hop; i++ {
			ts++
			engine.IngestSample(signal[i], ts)
		}
	})
	if allocs > 0 {
		t.Errorf("expected zero allocations in the ingest hot path, got %.1f", allocs)
	}
}

func BenchmarkIngestSample(b *testing.B) {
	cfg := DefaultConfig()
	engine, err := New(cfg)
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	signal := testsig.ClickTrack(1, cfg.SampleRate, 120, 80)

	b.ReportAllocs()
	ts := uint64(0)
	for i := 0; i < b.N; i++ {
		ts++
		engine.IngestSample(signal[int(ts)%len(signal)], ts)
	}
}
