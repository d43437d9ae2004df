package source

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// pcmDecoder yields interleaved s16le PCM at its native rate and channel
// count. Metering only ever reads forward, so there is no Seek.
type pcmDecoder interface {
	io.Reader
	// Length is the total PCM size in bytes, or an estimate.
	Length() int64
	SampleRate() int
	ChannelCount() int
}

// newDecoder picks a decoder by file extension.
func newDecoder(f *os.File) (pcmDecoder, error) {
	ext := strings.ToLower(filepath.Ext(f.Name()))
	switch ext {
	case ".mp3":
		return newMP3Decoder(f)
	case ".wav":
		return newWAVDecoder(f)
	case ".flac":
		return newFLACDecoder(f)
	case ".ogg":
		return newOGGDecoder(f)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

func clamp16(v int) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// pending holds converted bytes that did not fit the caller's buffer.
type pending struct {
	buf []byte
}

func (p *pending) drain(dst []byte) int {
	n := copy(dst, p.buf)
	p.buf = p.buf[n:]
	return n
}

func (p *pending) deliver(dst, raw []byte) int {
	n := copy(dst, raw)
	if n < len(raw) {
		p.buf = append(p.buf[:0], raw[n:]...)
	}
	return n
}

// go-mp3 always produces 16-bit stereo.
type mp3Decoder struct {
	dec *mp3.Decoder
}

func newMP3Decoder(f *os.File) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}
	return &mp3Decoder{dec: dec}, nil
}

func (d *mp3Decoder) Read(p []byte) (int, error) { return d.dec.Read(p) }
func (d *mp3Decoder) Length() int64              { return d.dec.Length() }
func (d *mp3Decoder) SampleRate() int            { return d.dec.SampleRate() }
func (d *mp3Decoder) ChannelCount() int          { return 2 }

type wavDecoder struct {
	r        io.Reader
	out      pending
	src      []byte
	raw      []byte
	length   int64
	rate     int
	channels int
	depth    int
	float    bool
}

const wavFormatFloat = 3

func newWAVDecoder(f *os.File) (*wavDecoder, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	depth := int(dec.BitDepth)
	channels := int(dec.NumChans)
	switch depth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedFormat, depth)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid WAV channel count %d", channels)
	}

	srcFrame := int64(channels * depth / 8)
	pcmLen := dec.PCMLen()
	return &wavDecoder{
		r:        io.LimitReader(f, pcmLen),
		length:   pcmLen / srcFrame * int64(channels) * 2,
		rate:     int(dec.SampleRate),
		channels: channels,
		depth:    depth,
		float:    dec.WavAudioFormat == wavFormatFloat && depth == 32,
	}, nil
}

func (d *wavDecoder) Read(p []byte) (int, error) {
	if len(d.out.buf) > 0 {
		return d.out.drain(p), nil
	}

	width := d.depth / 8
	samples := max(1, len(p)/2)
	if cap(d.src) < samples*width {
		d.src = make([]byte, samples*width)
	}
	src := d.src[:samples*width]
	n, err := io.ReadFull(d.r, src)
	samples = n / width
	if samples == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, err
	}

	if cap(d.raw) < samples*2 {
		d.raw = make([]byte, samples*2)
	}
	raw := d.raw[:samples*2]
	for i := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(d.sample(src[i*width:])))
	}

	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return d.out.deliver(p, raw), err
}

func (d *wavDecoder) sample(b []byte) int16 {
	switch d.depth {
	case 8:
		return int16(int(b[0])-128) << 8
	case 16:
		return int16(binary.LittleEndian.Uint16(b))
	case 24:
		s := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if s&0x800000 != 0 {
			s |= ^0xFFFFFF
		}
		return int16(s >> 8)
	default:
		if d.float {
			v := math.Float32frombits(binary.LittleEndian.Uint32(b))
			return clamp16(int(v * 32767))
		}
		return int16(int32(binary.LittleEndian.Uint32(b)) >> 16)
	}
}

func (d *wavDecoder) Length() int64     { return d.length }
func (d *wavDecoder) SampleRate() int   { return d.rate }
func (d *wavDecoder) ChannelCount() int { return d.channels }

type flacDecoder struct {
	stream   *flac.Stream
	out      pending
	raw      []byte
	length   int64
	rate     int
	channels int
	bps      int
}

func newFLACDecoder(f *os.File) (*flacDecoder, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	info := stream.Info
	return &flacDecoder{
		stream:   stream,
		length:   int64(info.NSamples) * int64(info.NChannels) * 2,
		rate:     int(info.SampleRate),
		channels: int(info.NChannels),
		bps:      int(info.BitsPerSample),
	}, nil
}

func (d *flacDecoder) Read(p []byte) (int, error) {
	if len(d.out.buf) > 0 {
		return d.out.drain(p), nil
	}

	frame, err := d.stream.ParseNext()
	if err != nil {
		return 0, err
	}

	n := int(frame.Subframes[0].NSamples)
	size := n * d.channels * 2
	if cap(d.raw) < size {
		d.raw = make([]byte, size)
	}
	raw := d.raw[:size]
	for i := range n {
		for ch := range d.channels {
			s := int(frame.Subframes[ch].Samples[i])
			if d.bps > 16 {
				s >>= d.bps - 16
			} else if d.bps < 16 {
				s <<= 16 - d.bps
			}
			binary.LittleEndian.PutUint16(raw[(i*d.channels+ch)*2:], uint16(clamp16(s)))
		}
	}
	return d.out.deliver(p, raw), nil
}

func (d *flacDecoder) Length() int64     { return d.length }
func (d *flacDecoder) SampleRate() int   { return d.rate }
func (d *flacDecoder) ChannelCount() int { return d.channels }

type oggDecoder struct {
	reader   *oggvorbis.Reader
	out      pending
	samples  []float32
	raw      []byte
	length   int64
	channels int
}

func newOGGDecoder(f *os.File) (*oggDecoder, error) {
	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	return &oggDecoder{
		reader:   reader,
		length:   reader.Length() * int64(reader.Channels()) * 2,
		channels: reader.Channels(),
	}, nil
}

func (d *oggDecoder) Read(p []byte) (int, error) {
	if len(d.out.buf) > 0 {
		return d.out.drain(p), nil
	}

	want := max(d.channels, len(p)/2)
	if cap(d.samples) < want {
		d.samples = make([]float32, want)
	}
	n, err := d.reader.Read(d.samples[:want])
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	if cap(d.raw) < n*2 {
		d.raw = make([]byte, n*2)
	}
	raw := d.raw[:n*2]
	for i, s := range d.samples[:n] {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(clamp16(int(s*32767))))
	}
	return d.out.deliver(p, raw), err
}

func (d *oggDecoder) Length() int64     { return d.length }
func (d *oggDecoder) SampleRate() int   { return d.reader.SampleRate() }
func (d *oggDecoder) ChannelCount() int { return d.channels }
