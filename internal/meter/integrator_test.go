package meter

import (
	"math"
	"testing"
	"time"
)

type recordingSink struct {
	msgs []LevelMessage
}

func (s *recordingSink) Post(msg LevelMessage) { s.msgs = append(s.msgs, msg) }

func constBlock(n int, v float32) []float32 {
	b := make([]float32, n)
	for i := range b {
		b[i] = v
	}
	return b
}

func feed(in *Integrator, blocks int, channels ...[]float32) {
	for range blocks {
		in.ProcessBlock(channels)
	}
}

func TestIntegratorStartsAtFloor(t *testing.T) {
	in := NewIntegrator(DefaultCalibration(), nil)
	env := in.Envelope()
	if env.Left != FloorVU || env.Right != FloorVU {
		t.Fatalf("expected envelopes at %v, got %+v", FloorVU, env)
	}
}

func TestIntegratorSilenceThenTone(t *testing.T) {
	in := NewIntegrator(CalibrationConfig{SampleRate: 48000, CalibrationDBFS: -18, Tau: 300 * time.Millisecond}, nil)

	silence := constBlock(128, 0)
	feed(in, 300, silence, silence)
	env := in.Envelope()
	if math.Abs(env.Left+60) > 1e-9 || math.Abs(env.Right+60) > 1e-9 {
		t.Fatalf("expected silence to rest at -60, got %+v", env)
	}

	// 0.1 is -20 dBFS, i.e. -2 VU against -18 dBFS calibration. 3000 blocks
	// is 8 s, far past the 300 ms time constant.
	tone := constBlock(128, 0.1)
	feed(in, 3000, tone, tone)
	env = in.Envelope()
	if math.Abs(env.Left+2) > 0.01 || math.Abs(env.Right+2) > 0.01 {
		t.Fatalf("expected envelope near -2 VU, got %+v", env)
	}
}

func TestIntegratorFullScaleClampsToCeiling(t *testing.T) {
	in := NewIntegrator(DefaultCalibration(), nil)
	full := constBlock(128, 1)
	prev := in.Envelope().Left
	for range 2000 {
		in.ProcessBlock([][]float32{full, full})
		env := in.Envelope()
		if env.Left < prev {
			t.Fatalf("expected rising envelope under full scale, went %v -> %v", prev, env.Left)
		}
		if env.Left > CeilVU || env.Right > CeilVU {
			t.Fatalf("expected envelope <= %v, got %+v", CeilVU, env)
		}
		prev = env.Left
	}
	if env := in.Envelope(); env.Left != CeilVU || env.Right != CeilVU {
		t.Fatalf("expected envelope pinned at %v, got %+v", CeilVU, env)
	}
}

func TestIntegratorSilenceDecaysMonotonically(t *testing.T) {
	in := NewIntegrator(DefaultCalibration(), nil)
	full := constBlock(128, 1)
	feed(in, 2000, full)

	silence := constBlock(128, 0)
	prev := in.Envelope().Left
	for range 3000 {
		in.ProcessBlock([][]float32{silence})
		env := in.Envelope()
		if math.IsNaN(env.Left) || math.IsInf(env.Left, 0) {
			t.Fatalf("expected finite envelope, got %v", env.Left)
		}
		if env.Left > prev {
			t.Fatalf("expected non-increasing envelope, went %v -> %v", prev, env.Left)
		}
		if env.Left < FloorVU {
			t.Fatalf("expected envelope >= %v, got %v", FloorVU, env.Left)
		}
		prev = env.Left
	}
	if prev != FloorVU {
		t.Fatalf("expected envelope to reach floor, got %v", prev)
	}
}

func TestIntegratorBlockSizeIndependence(t *testing.T) {
	cfg := DefaultCalibration()
	small := NewIntegrator(cfg, nil)
	large := NewIntegrator(cfg, nil)

	// 38400 samples of the same constant signal, in 64- and 256-frame blocks.
	feed(small, 600, constBlock(64, 0.25))
	feed(large, 150, constBlock(256, 0.25))

	a, b := small.Envelope().Left, large.Envelope().Left
	if math.Abs(a-b) > 1e-6 {
		t.Fatalf("expected block-size independent envelope, got %v (64) vs %v (256)", a, b)
	}

	feed(small, 6000, constBlock(64, 0.25))
	feed(large, 1500, constBlock(256, 0.25))
	want := DBFS(0.25) + 18
	if math.Abs(small.Envelope().Left-want) > 1e-3 || math.Abs(large.Envelope().Left-want) > 1e-3 {
		t.Fatalf("expected both to settle at %v, got %v and %v", want, small.Envelope().Left, large.Envelope().Left)
	}
}

func TestIntegratorThrottle(t *testing.T) {
	sink := &recordingSink{}
	in := NewIntegrator(DefaultCalibration(), sink)
	tone := constBlock(128, 0.1)

	var sixth LevelMessage
	for i := 1; i <= 18; i++ {
		in.ProcessBlock([][]float32{tone})
		if i == 6 {
			sixth = in.Envelope()
		}
		if want := i / 6; len(sink.msgs) != want {
			t.Fatalf("after %d blocks expected %d messages, got %d", i, want, len(sink.msgs))
		}
	}
	if sink.msgs[0] != sixth {
		t.Fatalf("expected first message to carry state of 6th block %+v, got %+v", sixth, sink.msgs[0])
	}
}

func TestIntegratorMonoDuplicatesAndStereoIsIndependent(t *testing.T) {
	in := NewIntegrator(DefaultCalibration(), nil)
	feed(in, 500, constBlock(128, 0.1))
	if env := in.Envelope(); env.Left != env.Right {
		t.Fatalf("expected mono input on both channels, got %+v", env)
	}

	st := NewIntegrator(DefaultCalibration(), nil)
	feed(st, 500, constBlock(128, 0), constBlock(128, 0.1))
	env := st.Envelope()
	if env.Left != FloorVU {
		t.Fatalf("expected silent left channel at floor, got %v", env.Left)
	}
	if env.Right <= -10 {
		t.Fatalf("expected right channel to rise, got %v", env.Right)
	}
}

func TestIntegratorNoInputRelaxesTowardFloor(t *testing.T) {
	in := NewIntegrator(DefaultCalibration(), nil)
	feed(in, 500, constBlock(128, 0.5))
	before := in.Envelope()

	in.ProcessBlock(nil)
	after := in.Envelope()
	if after.Left >= before.Left || after.Right >= before.Right {
		t.Fatalf("expected decay with no input, got %+v -> %+v", before, after)
	}
	if after.Left < FloorVU {
		t.Fatalf("expected decay to stop at floor, got %v", after.Left)
	}
}

func TestIntegratorEmptyChannelStaysFinite(t *testing.T) {
	in := NewIntegrator(DefaultCalibration(), nil)
	for range 10 {
		in.ProcessBlock([][]float32{{}, {}})
	}
	env := in.Envelope()
	if env.Left != FloorVU || env.Right != FloorVU {
		t.Fatalf("expected empty blocks to leave envelope at floor, got %+v", env)
	}
}

func TestIntegratorReleaseBallistics(t *testing.T) {
	ppm, err := Preset("ppm")
	if err != nil {
		t.Fatalf("Preset() error = %v", err)
	}
	cfg := DefaultCalibration()
	cfg.Tau, cfg.Release = ppm.Attack, ppm.Release
	fast := NewIntegrator(cfg, nil)
	slow := NewIntegrator(DefaultCalibration(), nil)

	// 10 blocks is ~27 ms.
	tone := constBlock(128, 0.1)
	feed(fast, 10, tone)
	feed(slow, 10, tone)
	if fast.Envelope().Left <= slow.Envelope().Left {
		t.Fatalf("expected ppm attack to outrun vu, got %v vs %v", fast.Envelope().Left, slow.Envelope().Left)
	}

	// Silence pulls toward -222 VU; a 10 ms release would hit the floor.
	feed(fast, 10, constBlock(128, 0))
	if env := fast.Envelope().Left; env < FloorVU+20 {
		t.Fatalf("expected ppm release slower than its attack, fell to %v in 27 ms", env)
	}
}

func TestPresetHoldTimes(t *testing.T) {
	for name, want := range map[string]time.Duration{
		"vu":   time.Second,
		"ppm":  500 * time.Millisecond,
		"slow": 2 * time.Second,
	} {
		b, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%q) error = %v", name, err)
		}
		if b.Hold != want {
			t.Fatalf("Preset(%q).Hold = %v, want %v", name, b.Hold, want)
		}
	}
}

func TestPresetRejectsUnknown(t *testing.T) {
	if _, err := Preset("bbc"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestAlphaIsBlockDurationNormalized(t *testing.T) {
	a64 := Alpha(64, 48000, DefaultTau)
	a128 := Alpha(128, 48000, DefaultTau)
	// two 64-frame steps equal one 128-frame step
	if got := 1 - (1-a64)*(1-a64); math.Abs(got-a128) > 1e-12 {
		t.Fatalf("expected composed alpha %v, got %v", a128, got)
	}
}

func TestClampVUHandlesNaN(t *testing.T) {
	if got := ClampVU(math.NaN()); got != FloorVU {
		t.Fatalf("expected NaN to clamp to floor, got %v", got)
	}
	if got := ClampVU(math.Inf(1)); got != CeilVU {
		t.Fatalf("expected +Inf to clamp to ceiling, got %v", got)
	}
}

func TestSeedStartsFromGivenLevel(t *testing.T) {
	in := NewIntegrator(DefaultCalibration(), nil)
	in.Seed(LevelMessage{Left: -3, Right: 100})

	env := in.Envelope()
	if env.Left != -3 {
		t.Fatalf("expected left -3, got %v", env.Left)
	}
	if env.Right != CeilVU {
		t.Fatalf("expected right clamped to %v, got %v", CeilVU, env.Right)
	}
}
