package meter

import "time"

// DefaultPeakHold is how long a peak is held before the marker follows the
// needle again.
const DefaultPeakHold = time.Second

// PeakHolder tracks peak-hold state for a pair of needles. Each channel has
// independent hold timing. It is owned by the display goroutine.
type PeakHolder struct {
	hold  time.Duration
	peak  [2]float64
	since [2]time.Time
}

// NewPeakHolder creates a holder at rest. hold <= 0 uses DefaultPeakHold.
func NewPeakHolder(hold time.Duration) *PeakHolder {
	if hold <= 0 {
		hold = DefaultPeakHold
	}
	p := &PeakHolder{hold: hold}
	p.Reset()
	return p
}

// Update feeds the current levels and returns the held peaks.
func (p *PeakHolder) Update(left, right float64, now time.Time) (heldL, heldR float64) {
	for i, v := range [2]float64{left, right} {
		v = ClampVU(v)
		if v >= p.peak[i] || now.Sub(p.since[i]) > p.hold {
			p.peak[i] = v
			p.since[i] = now
		}
	}
	return p.peak[0], p.peak[1]
}

// Peaks returns the held peaks without updating them.
func (p *PeakHolder) Peaks() (left, right float64) {
	return p.peak[0], p.peak[1]
}

// Reset drops held peaks to the floor.
func (p *PeakHolder) Reset() {
	p.peak = [2]float64{FloorVU, FloorVU}
	p.since = [2]time.Time{}
}
