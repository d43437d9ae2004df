// Package meter implements VU level detection and needle motion: block RMS
// to calibrated VU with single-pole ballistics on the audio side, and a
// display-rate damper that maps the result to needle angles.
package meter

import (
	"fmt"
	"math"
	"time"
)

const (
	// FloorVU is the resting position of the meter.
	FloorVU = -60.0
	// CeilVU is the pinned position of the meter.
	CeilVU = 6.0

	// DefaultCalibrationDBFS is the digital level that reads 0 VU.
	DefaultCalibrationDBFS = -18.0
	// DefaultTau is the classic 300 ms VU integration time.
	DefaultTau = 300 * time.Millisecond
	// DefaultBlockSize is the block length assumed when the engine delivers no input.
	DefaultBlockSize = 128
	// DefaultThrottleBlocks gives ~16 ms message spacing at 48 kHz / 128 frames.
	DefaultThrottleBlocks = 6

	epsilon = 1e-12
)

// ClampVU limits v to the meter range. NaN maps to the floor.
func ClampVU(v float64) float64 {
	if math.IsNaN(v) || v < FloorVU {
		return FloorVU
	}
	if v > CeilVU {
		return CeilVU
	}
	return v
}

// BlockRMS returns the root-mean-square amplitude of samples plus a small
// epsilon, so silence yields a finite level.
func BlockRMS(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum/float64(max(1, len(samples)))) + epsilon
}

// DBFS converts a linear amplitude to decibels relative to full scale.
func DBFS(amplitude float64) float64 {
	return 20 * math.Log10(amplitude)
}

// Alpha returns the single-pole smoothing coefficient for a block of the
// given length, so the envelope converges at the same physical rate
// whatever the block size.
func Alpha(blockFrames int, sampleRate float64, tau time.Duration) float64 {
	if tau <= 0 || sampleRate <= 0 {
		return 1
	}
	t := float64(blockFrames) / sampleRate
	return 1 - math.Exp(-t/tau.Seconds())
}

// Ballistics is a pair of integration time constants plus the peak hold
// time shown with them.
type Ballistics struct {
	Attack  time.Duration
	Release time.Duration
	Hold    time.Duration
}

var presets = map[string]Ballistics{
	"vu": {Attack: DefaultTau, Release: DefaultTau, Hold: time.Second},
	// A release of 0.05 of the gap per 60 Hz frame is a ~325 ms constant.
	"ppm":  {Attack: 10 * time.Millisecond, Release: 325 * time.Millisecond, Hold: 500 * time.Millisecond},
	"slow": {Attack: time.Second, Release: time.Second, Hold: 2 * time.Second},
}

// Preset returns the named ballistics: vu, ppm or slow.
func Preset(name string) (Ballistics, error) {
	b, ok := presets[name]
	if !ok {
		return Ballistics{}, fmt.Errorf("unknown ballistics preset %q (want vu, ppm or slow)", name)
	}
	return b, nil
}
