package meter

import (
	"fmt"
	"math"

	"github.com/charmbracelet/harmonica"
)

// NeedleMode selects how the damper moves the needle between ticks.
type NeedleMode int

const (
	// NeedleExponential is a one-pole follower: pos += (target-pos)*Factor.
	NeedleExponential NeedleMode = iota
	// NeedleSpring drives the needle with a damped spring, like a moving coil.
	NeedleSpring
)

// ParseNeedleMode maps "exponential" or "spring" to a NeedleMode.
func ParseNeedleMode(s string) (NeedleMode, error) {
	switch s {
	case "", "exponential":
		return NeedleExponential, nil
	case "spring":
		return NeedleSpring, nil
	}
	return NeedleExponential, fmt.Errorf("unknown needle mode %q", s)
}

func (m NeedleMode) String() string {
	if m == NeedleSpring {
		return "spring"
	}
	return "exponential"
}

// AngleMap maps a VU sub-range linearly onto a needle swing in degrees.
type AngleMap struct {
	MinVU    float64
	MaxVU    float64
	MinAngle float64
	MaxAngle float64
}

// DefaultAngleMap maps -20..+3 VU onto -90..+90 degrees.
func DefaultAngleMap() AngleMap {
	return SymmetricAngleMap(90)
}

// SymmetricAngleMap maps -20..+3 VU onto -half..+half degrees.
func SymmetricAngleMap(half float64) AngleMap {
	return AngleMap{MinVU: -20, MaxVU: 3, MinAngle: -half, MaxAngle: half}
}

// AngleFor clamps vu to the mapped range and returns the needle angle.
func (m AngleMap) AngleFor(vu float64) float64 {
	if m.MaxVU <= m.MinVU {
		return m.MinAngle
	}
	if math.IsNaN(vu) || vu < m.MinVU {
		vu = m.MinVU
	}
	if vu > m.MaxVU {
		vu = m.MaxVU
	}
	t := (vu - m.MinVU) / (m.MaxVU - m.MinVU)
	return m.MinAngle + t*(m.MaxAngle-m.MinAngle)
}

// DamperConfig configures a Damper.
type DamperConfig struct {
	// Factor is the per-tick exponential damping factor in (0, 1].
	Factor float64
	Mode   NeedleMode

	// Spring parameters, used when Mode is NeedleSpring.
	FPS             int
	SpringFrequency float64
	SpringDamping   float64

	Angles AngleMap
}

// DefaultDamperConfig returns the classic needle damping at 60 fps.
func DefaultDamperConfig() DamperConfig {
	return DamperConfig{
		Factor:          0.28,
		Mode:            NeedleExponential,
		FPS:             60,
		SpringFrequency: 9,
		SpringDamping:   0.8,
		Angles:          DefaultAngleMap(),
	}
}

// Damper smooths level messages into needle motion. It belongs to a single
// display goroutine and is not safe for concurrent use.
type Damper struct {
	cfg    DamperConfig
	spring harmonica.Spring

	target [2]float64
	pos    [2]float64
	vel    [2]float64

	lastSeq   uint64
	lastEpoch uint64
	following bool
}

// NewDamper creates a damper at rest.
func NewDamper(cfg DamperConfig) *Damper {
	def := DefaultDamperConfig()
	if cfg.Factor <= 0 || cfg.Factor > 1 {
		cfg.Factor = def.Factor
	}
	if cfg.FPS <= 0 {
		cfg.FPS = def.FPS
	}
	if cfg.SpringFrequency <= 0 {
		cfg.SpringFrequency = def.SpringFrequency
	}
	if cfg.SpringDamping <= 0 {
		cfg.SpringDamping = def.SpringDamping
	}
	if cfg.Angles == (AngleMap{}) {
		cfg.Angles = def.Angles
	}
	d := &Damper{
		cfg:    cfg,
		spring: harmonica.NewSpring(harmonica.FPS(cfg.FPS), cfg.SpringFrequency, cfg.SpringDamping),
	}
	d.Reset()
	return d
}

// OnLevelMessage sets new targets. The needle moves on the next Tick.
func (d *Damper) OnLevelMessage(msg LevelMessage) {
	d.target[0] = ClampVU(msg.Left)
	d.target[1] = ClampVU(msg.Right)
}

// Follow pulls the latest snapshot from c. A changed reset epoch resets
// the needle before the new targets are applied, and reports true.
func (d *Damper) Follow(c *LevelCell) (reset bool) {
	snap := c.Load()
	if d.following && snap.Epoch != d.lastEpoch {
		d.Reset()
		reset = true
	}
	if !d.following || snap.Seq != d.lastSeq {
		d.OnLevelMessage(snap.LevelMessage)
	}
	d.following = true
	d.lastSeq = snap.Seq
	d.lastEpoch = snap.Epoch
	return reset
}

// Tick advances the needle by one display frame.
func (d *Damper) Tick() {
	for i := range d.pos {
		switch d.cfg.Mode {
		case NeedleSpring:
			d.pos[i], d.vel[i] = d.spring.Update(d.pos[i], d.vel[i], d.target[i])
		default:
			d.pos[i] += (d.target[i] - d.pos[i]) * d.cfg.Factor
		}
		clamped := ClampVU(d.pos[i])
		if clamped != d.pos[i] {
			d.vel[i] = 0
		}
		d.pos[i] = clamped
	}
}

// Reset puts targets and needles at rest immediately.
func (d *Damper) Reset() {
	d.target = [2]float64{FloorVU, FloorVU}
	d.pos = [2]float64{FloorVU, FloorVU}
	d.vel = [2]float64{}
}

// Positions returns the damped needle positions in VU.
func (d *Damper) Positions() LevelMessage {
	return LevelMessage{Left: d.pos[0], Right: d.pos[1]}
}

// Targets returns the last received levels.
func (d *Damper) Targets() LevelMessage {
	return LevelMessage{Left: d.target[0], Right: d.target[1]}
}

// AngleFor maps vu through the configured angle map.
func (d *Damper) AngleFor(vu float64) float64 {
	return d.cfg.Angles.AngleFor(vu)
}

// Angles returns the current needle angles in degrees.
func (d *Damper) Angles() (left, right float64) {
	return d.AngleFor(d.pos[0]), d.AngleFor(d.pos[1])
}

// AngleMap returns the configured angle map.
func (d *Damper) AngleMap() AngleMap { return d.cfg.Angles }
