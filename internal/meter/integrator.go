package meter

import "time"

// CalibrationConfig holds the per-session integration parameters. Zero
// fields take the package defaults.
type CalibrationConfig struct {
	SampleRate      float64
	CalibrationDBFS float64
	Tau             time.Duration

	// Release is the decay time constant. Zero means Tau, giving the
	// symmetric classic VU response.
	Release        time.Duration
	BlockSize      int
	ThrottleBlocks int
}

// DefaultCalibration returns the calibration for a 48 kHz session.
func DefaultCalibration() CalibrationConfig {
	return CalibrationConfig{
		SampleRate:      48000,
		CalibrationDBFS: DefaultCalibrationDBFS,
		Tau:             DefaultTau,
		BlockSize:       DefaultBlockSize,
		ThrottleBlocks:  DefaultThrottleBlocks,
	}
}

func (c CalibrationConfig) withDefaults() CalibrationConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.Tau <= 0 {
		c.Tau = DefaultTau
	}
	if c.Release <= 0 {
		c.Release = c.Tau
	}
	if c.BlockSize <= 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.ThrottleBlocks <= 0 {
		c.ThrottleBlocks = DefaultThrottleBlocks
	}
	return c
}

// Sink receives throttled level snapshots from the audio thread.
// Post must not block.
type Sink interface {
	Post(LevelMessage)
}

// Integrator turns audio blocks into a ballistically smoothed VU reading
// per channel. It is owned by the audio callback goroutine; ProcessBlock
// neither allocates nor blocks.
type Integrator struct {
	cfg  CalibrationConfig
	sink Sink

	env        [2]float64
	blockCount int

	// alpha cache keyed by block length
	alphaFrames  int
	attackAlpha  float64
	releaseAlpha float64
	symmetric    bool
}

// NewIntegrator creates an integrator with both envelopes at rest.
// sink may be nil.
func NewIntegrator(cfg CalibrationConfig, sink Sink) *Integrator {
	cfg = cfg.withDefaults()
	return &Integrator{
		cfg:         cfg,
		sink:        sink,
		env:         [2]float64{FloorVU, FloorVU},
		alphaFrames: -1,
		symmetric:   cfg.Release == cfg.Tau,
	}
}

// Config returns the effective calibration.
func (in *Integrator) Config() CalibrationConfig { return in.cfg }

// Envelope returns the current envelope values.
func (in *Integrator) Envelope() LevelMessage {
	return LevelMessage{Left: in.env[0], Right: in.env[1]}
}

// Seed sets the envelopes before the first block, so a new source picks up
// from the level already on display.
func (in *Integrator) Seed(msg LevelMessage) {
	in.env = [2]float64{ClampVU(msg.Left), ClampVU(msg.Right)}
}

// ProcessBlock integrates one block. channels holds one slice per channel;
// mono input drives both sides, channels beyond the second are ignored.
// An empty channel list lets the envelopes relax toward the floor.
func (in *Integrator) ProcessBlock(channels [][]float32) {
	if len(channels) == 0 {
		_, a := in.alphas(in.cfg.BlockSize)
		in.env[0] += (FloorVU - in.env[0]) * a
		in.env[1] += (FloorVU - in.env[1]) * a
	} else {
		left := channels[0]
		right := left
		if len(channels) > 1 {
			right = channels[1]
		}

		n := len(left)
		if n == 0 {
			n = in.cfg.BlockSize
		}
		attack, release := in.alphas(n)

		in.integrate(0, in.vuFor(left), attack, release)
		in.integrate(1, in.vuFor(right), attack, release)
	}

	in.env[0] = ClampVU(in.env[0])
	in.env[1] = ClampVU(in.env[1])

	in.blockCount++
	if in.blockCount >= in.cfg.ThrottleBlocks {
		in.blockCount = 0
		if in.sink != nil {
			in.sink.Post(in.Envelope())
		}
	}
}

func (in *Integrator) vuFor(samples []float32) float64 {
	return DBFS(BlockRMS(samples)) - in.cfg.CalibrationDBFS
}

func (in *Integrator) integrate(ch int, vu, attack, release float64) {
	a := attack
	if vu < in.env[ch] {
		a = release
	}
	in.env[ch] += (vu - in.env[ch]) * a
}

func (in *Integrator) alphas(frames int) (attack, release float64) {
	if frames != in.alphaFrames {
		in.alphaFrames = frames
		in.attackAlpha = Alpha(frames, in.cfg.SampleRate, in.cfg.Tau)
		if in.symmetric {
			in.releaseAlpha = in.attackAlpha
		} else {
			in.releaseAlpha = Alpha(frames, in.cfg.SampleRate, in.cfg.Release)
		}
	}
	return in.attackAlpha, in.releaseAlpha
}
