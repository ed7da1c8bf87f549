// SPDX-License-Identifier: MIT
package tempo

// onsetDetector is a single continuously-updated scalar state machine over
// the band energy stream. It keeps an exponentially-weighted moving average
// of energy and emits a beat when the current frame pokes sufficiently far
// above it, subject to a refractory period so one physical beat spread over
// several overlapping frames is counted once.
type onsetDetector struct {
	alpha        float64 // EWMA weight of the newest frame.
	threshold    float64 // Beat requires energy > avgEnergy*threshold.
	refractoryMs uint64  // 60000 / MaxBPM.
	saturation   float64 // avgEnergy mapping to signal level 1.0.

	avgEnergy  float64
	primed     bool // avgEnergy has been seeded with a real frame.
	lastBeatMs uint64
	beatSeen   bool
}

func newOnsetDetector(cfg Config) *onsetDetector {
	return &onsetDetector{
		alpha:        cfg.SmoothingAlpha,
		threshold:    cfg.DetectionThreshold,
		refractoryMs: uint64(60000 / cfg.MaxBPM),
		saturation:   cfg.EnergySaturation,
	}
}

// Observe consumes one frame's band energy and reports whether it marks a
// beat. The first frame only seeds the average: comparing against an EWMA
// still climbing from zero would turn any steady input into a burst of
// false onsets at startup. From the second frame on the comparison uses
// the average from before the current frame so a strong onset cannot mask
// itself.
func (d *onsetDetector) Observe(bandEnergy float64, timestampMs uint64) bool {
	if !d.primed {
		d.primed = true
		d.avgEnergy = bandEnergy
		return false
	}

	beat := false
	if d.avgEnergy > 0 && bandEnergy > d.avgEnergy*d.threshold {
		if !d.beatSeen || timestampMs-d.lastBeatMs >= d.refractoryMs {
			beat = true
			d.beatSeen = true
			d.lastBeatMs = timestampMs
		}
	}
	d.avgEnergy = d.avgEnergy*(1-d.alpha) + bandEnergy*d.alpha
	return beat
}

// SignalLevel maps the running energy average onto [0, 1] against the
// configured saturation ceiling.
func (d *onsetDetector) SignalLevel() float64 {
	level := d.avgEnergy / d.saturation
	if level > 1 {
		return 1
	}
	if level < 0 {
		return 0
	}
	return level
}

// Reset zeroes the running average and forgets the last beat. The next
// frame seeds the average again.
func (d *onsetDetector) Reset() {
	d.avgEnergy = 0
	d.primed = false
	d.lastBeatMs = 0
	d.beatSeen = false
}
