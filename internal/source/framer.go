package source

// Framer de-interleaves signed 16-bit little-endian PCM into planar float32
// blocks of a fixed frame count and hands each full block to a BlockFunc.
// Writes may split samples and frames arbitrarily. Block buffers are
// allocated once; Write does not allocate.
type Framer struct {
	fn       BlockFunc
	frames   int
	channels int

	bufs [][]float32
	view [][]float32
	fill int
	ch   int
	lo   byte
	half bool
}

// NewFramer creates a framer for interleaved PCM with the given channel
// count, emitting blocks of blockFrames frames.
func NewFramer(blockFrames, channels int, fn BlockFunc) *Framer {
	if blockFrames <= 0 {
		blockFrames = 128
	}
	if channels <= 0 {
		channels = Channels
	}
	f := &Framer{
		fn:       fn,
		frames:   blockFrames,
		channels: channels,
		bufs:     make([][]float32, channels),
		view:     make([][]float32, channels),
	}
	for i := range f.bufs {
		f.bufs[i] = make([]float32, blockFrames)
	}
	return f
}

// Write implements io.Writer. It never fails.
func (f *Framer) Write(p []byte) (int, error) {
	for _, b := range p {
		if !f.half {
			f.lo = b
			f.half = true
			continue
		}
		f.half = false

		s := int16(uint16(f.lo) | uint16(b)<<8)
		f.bufs[f.ch][f.fill] = float32(s) / 32768
		f.ch++
		if f.ch < f.channels {
			continue
		}
		f.ch = 0
		f.fill++
		if f.fill == f.frames {
			f.emit()
		}
	}
	return len(p), nil
}

// Flush emits any buffered whole frames as a short block and drops a
// trailing partial frame.
func (f *Framer) Flush() {
	f.ch = 0
	f.half = false
	if f.fill > 0 {
		f.emit()
	}
}

func (f *Framer) emit() {
	for i := range f.bufs {
		f.view[i] = f.bufs[i][:f.fill]
	}
	f.fill = 0
	if f.fn != nil {
		f.fn(f.view)
	}
}
