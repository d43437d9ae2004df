package meter

import (
	"math"
	"runtime"
	"sync/atomic"
)

// LevelMessage is a stereo VU snapshot.
type LevelMessage struct {
	Left  float64
	Right float64
}

// RestLevel is the message posted when the meter is reset.
var RestLevel = LevelMessage{Left: FloorVU, Right: FloorVU}

// Snapshot is the content of a LevelCell at one point in time.
type Snapshot struct {
	LevelMessage
	// Seq increments on every post.
	Seq uint64
	// Epoch increments on every Reset.
	Epoch uint64
}

// LevelCell is a single-slot, last-write-wins mailbox between the audio
// goroutine and display consumers. It is a seqlock over atomics: Post never
// waits for readers, and Load only retries while a write is in flight.
type LevelCell struct {
	seq   atomic.Uint64 // odd while a write is in progress
	left  atomic.Uint64
	right atomic.Uint64
	epoch atomic.Uint64
	posts atomic.Uint64
}

// NewLevelCell returns a cell holding RestLevel.
func NewLevelCell() *LevelCell {
	c := &LevelCell{}
	c.write(RestLevel, false)
	c.posts.Store(0)
	return c
}

// Post publishes msg, replacing whatever was there.
func (c *LevelCell) Post(msg LevelMessage) {
	c.write(msg, false)
}

// Reset publishes RestLevel and advances the epoch so followers snap their
// needles to rest instead of gliding.
func (c *LevelCell) Reset() {
	c.write(RestLevel, true)
}

func (c *LevelCell) write(msg LevelMessage, reset bool) {
	// Writers are expected to be a single audio goroutine, but a control
	// path Reset can race a late block, so claim the odd sequence with CAS.
	for {
		s := c.seq.Load()
		if s&1 == 0 && c.seq.CompareAndSwap(s, s+1) {
			break
		}
		runtime.Gosched()
	}
	c.left.Store(math.Float64bits(msg.Left))
	c.right.Store(math.Float64bits(msg.Right))
	c.posts.Add(1)
	if reset {
		c.epoch.Add(1)
	}
	c.seq.Add(1)
}

// Load returns the latest snapshot.
func (c *LevelCell) Load() Snapshot {
	for {
		s1 := c.seq.Load()
		if s1&1 == 1 {
			runtime.Gosched()
			continue
		}
		l := c.left.Load()
		r := c.right.Load()
		posts := c.posts.Load()
		epoch := c.epoch.Load()
		if c.seq.Load() == s1 {
			return Snapshot{
				LevelMessage: LevelMessage{Left: math.Float64frombits(l), Right: math.Float64frombits(r)},
				Seq:          posts,
				Epoch:        epoch,
			}
		}
	}
}
