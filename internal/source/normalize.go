package source

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

const frameSize = Channels * 2

// normalizedDecoder presents any mono or stereo decoder as a 48 kHz stereo
// s16le stream, upmixing mono and resampling with linear interpolation.
type normalizedDecoder struct {
	src         pcmDecoder
	r           *bufio.Reader
	passthrough bool
	srcRate     int64
	srcChannels int
	length      int64

	prev, next [Channels]int16
	haveNext   bool
	started    bool
	finished   bool
	phase      int64 // position between prev and next, in 1/SampleRate units

	frame []byte
	out   pending
	tmp   []byte
}

func newNormalizedDecoder(src pcmDecoder) (*normalizedDecoder, error) {
	rate := src.SampleRate()
	if rate <= 0 {
		return nil, fmt.Errorf("unsupported sample rate: %d", rate)
	}
	channels := src.ChannelCount()
	if channels < 1 || channels > Channels {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}

	srcFrames := src.Length() / int64(channels*2)
	outFrames := srcFrames * SampleRate / int64(rate)
	if srcFrames > 0 && outFrames == 0 {
		outFrames = 1
	}

	return &normalizedDecoder{
		src:         src,
		r:           bufio.NewReaderSize(src, 8192),
		passthrough: rate == SampleRate && channels == Channels,
		srcRate:     int64(rate),
		srcChannels: channels,
		length:      outFrames * frameSize,
		frame:       make([]byte, channels*2),
	}, nil
}

// Length is the expected output size in bytes.
func (d *normalizedDecoder) Length() int64 { return d.length }

func (d *normalizedDecoder) Read(p []byte) (int, error) {
	if d.passthrough {
		return d.r.Read(p)
	}
	if len(d.out.buf) > 0 {
		return d.out.drain(p), nil
	}
	if d.finished {
		return 0, io.EOF
	}

	frames := max(1, (len(p)+frameSize-1)/frameSize)
	if cap(d.tmp) < frames*frameSize {
		d.tmp = make([]byte, frames*frameSize)
	}
	raw := d.tmp[:0]
	for range frames {
		l, r, err := d.nextFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			if len(raw) == 0 {
				return 0, err
			}
			break
		}
		raw = binary.LittleEndian.AppendUint16(raw, uint16(l))
		raw = binary.LittleEndian.AppendUint16(raw, uint16(r))
	}
	if len(raw) == 0 {
		return 0, io.EOF
	}
	return d.out.deliver(p, raw), nil
}

// nextFrame returns the output frame at the current phase and advances.
func (d *normalizedDecoder) nextFrame() (int16, int16, error) {
	if !d.started {
		d.started = true
		first, ok, err := d.readFrame()
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			d.finished = true
			return 0, 0, io.EOF
		}
		d.prev = first
		if err := d.fetchNext(); err != nil {
			return 0, 0, err
		}
	}
	if d.finished {
		return 0, 0, io.EOF
	}

	l := interpolateSample(d.prev[0], d.next[0], d.phase)
	r := interpolateSample(d.prev[1], d.next[1], d.phase)

	d.phase += d.srcRate
	for d.phase >= SampleRate {
		d.phase -= SampleRate
		if !d.haveNext {
			d.finished = true
			break
		}
		d.prev = d.next
		if err := d.fetchNext(); err != nil {
			return l, r, err
		}
	}
	return l, r, nil
}

// fetchNext loads the following source frame, holding the last frame at
// the end of the stream.
func (d *normalizedDecoder) fetchNext() error {
	f, ok, err := d.readFrame()
	if err != nil {
		return err
	}
	d.haveNext = ok
	if ok {
		d.next = f
	} else {
		d.next = d.prev
	}
	return nil
}

func (d *normalizedDecoder) readFrame() ([Channels]int16, bool, error) {
	var f [Channels]int16
	if _, err := io.ReadFull(d.r, d.frame); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return f, false, nil
		}
		return f, false, err
	}
	f[0] = int16(binary.LittleEndian.Uint16(d.frame))
	if d.srcChannels == 1 {
		f[1] = f[0]
	} else {
		f[1] = int16(binary.LittleEndian.Uint16(d.frame[2:]))
	}
	return f, true, nil
}

func interpolateSample(a, b int16, fracNum int64) int16 {
	if fracNum == 0 || a == b {
		return a
	}
	diff := int64(b) - int64(a)
	return int16(int64(a) + (diff*fracNum+SampleRate/2)/SampleRate)
}
