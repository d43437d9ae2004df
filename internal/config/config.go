// Package config holds the meter settings gathered from the command line
// and converts them into the core's calibration and damping parameters.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/olivier-w/climp-vu/internal/meter"
	"github.com/olivier-w/climp-vu/internal/source"
)

// Config is the complete meter configuration. Settings are not persisted.
type Config struct {
	// CalibrationDBFS is the dBFS level that reads 0 VU.
	CalibrationDBFS float64
	// Ballistics names a preset: vu, ppm or slow.
	Ballistics string
	// Tau overrides the preset with a symmetric time constant when non-zero.
	Tau            time.Duration
	BlockSize      int
	ThrottleBlocks int

	Damping float64
	// Needle is exponential or spring.
	Needle string
	// Angle is the half swing of the needle in degrees.
	Angle float64
	FPS   int
	// PeakHold overrides the preset's peak hold time when non-zero.
	PeakHold   time.Duration
	NoPeakHold bool
}

// Default returns the classic VU configuration.
func Default() Config {
	return Config{
		CalibrationDBFS: meter.DefaultCalibrationDBFS,
		Ballistics:      "vu",
		BlockSize:       meter.DefaultBlockSize,
		ThrottleBlocks:  meter.DefaultThrottleBlocks,
		Damping:         meter.DefaultDamperConfig().Factor,
		Needle:          meter.NeedleExponential.String(),
		Angle:           90,
		FPS:             60,
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.CalibrationDBFS < -40 || c.CalibrationDBFS > 0 {
		errs = append(errs, fmt.Errorf("calibration must be between -40 and 0 dBFS, got %v", c.CalibrationDBFS))
	}
	if _, err := meter.Preset(c.Ballistics); err != nil {
		errs = append(errs, err)
	}
	if c.Tau < 0 {
		errs = append(errs, fmt.Errorf("tau must not be negative, got %v", c.Tau))
	}
	if c.BlockSize < 16 || c.BlockSize > 8192 {
		errs = append(errs, fmt.Errorf("block size must be between 16 and 8192 frames, got %d", c.BlockSize))
	}
	if c.ThrottleBlocks < 1 {
		errs = append(errs, fmt.Errorf("throttle must be at least 1 block, got %d", c.ThrottleBlocks))
	}
	if c.Damping <= 0 || c.Damping > 1 {
		errs = append(errs, fmt.Errorf("damping must be in (0, 1], got %v", c.Damping))
	}
	if _, err := meter.ParseNeedleMode(c.Needle); err != nil {
		errs = append(errs, err)
	}
	if c.Angle <= 0 || c.Angle > 90 {
		errs = append(errs, fmt.Errorf("angle must be in (0, 90] degrees, got %v", c.Angle))
	}
	if c.FPS < 1 || c.FPS > 240 {
		errs = append(errs, fmt.Errorf("fps must be between 1 and 240, got %d", c.FPS))
	}
	if c.PeakHold < 0 {
		errs = append(errs, fmt.Errorf("peak hold must not be negative, got %v", c.PeakHold))
	}
	return errors.Join(errs...)
}

// Calibration returns the integrator configuration for a session.
func (c Config) Calibration() meter.CalibrationConfig {
	b, err := meter.Preset(c.Ballistics)
	if err != nil {
		b = meter.Ballistics{Attack: meter.DefaultTau, Release: meter.DefaultTau}
	}
	if c.Tau > 0 {
		b = meter.Ballistics{Attack: c.Tau, Release: c.Tau}
	}
	return meter.CalibrationConfig{
		SampleRate:      source.SampleRate,
		CalibrationDBFS: c.CalibrationDBFS,
		Tau:             b.Attack,
		Release:         b.Release,
		BlockSize:       c.BlockSize,
		ThrottleBlocks:  c.ThrottleBlocks,
	}
}

// Hold returns the peak marker hold time, or 0 when the marker is off.
func (c Config) Hold() time.Duration {
	if c.NoPeakHold {
		return 0
	}
	if c.PeakHold > 0 {
		return c.PeakHold
	}
	if b, err := meter.Preset(c.Ballistics); err == nil {
		return b.Hold
	}
	return meter.DefaultPeakHold
}

// Damper returns the needle configuration for one display.
func (c Config) Damper() meter.DamperConfig {
	d := meter.DefaultDamperConfig()
	d.Factor = c.Damping
	if mode, err := meter.ParseNeedleMode(c.Needle); err == nil {
		d.Mode = mode
	}
	if c.FPS > 0 {
		d.FPS = c.FPS
	}
	if c.Angle > 0 {
		d.Angles = meter.SymmetricAngleMap(c.Angle)
	}
	return d
}

// Frame returns the display refresh interval.
func (c Config) Frame() time.Duration {
	if c.FPS <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.FPS)
}
