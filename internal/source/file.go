package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

const bytesPerSec = SampleRate * frameSize

// playerBufferBytes keeps oto's read-ahead short so the meter stays close
// to what is audible: 2048 frames is ~43 ms at 48 kHz.
const playerBufferBytes = 2048 * frameSize

var (
	otoCtx     *oto.Context
	otoOnce    sync.Once
	otoInitErr error
)

func initOto() (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: Channels,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-ready
		}
	})
	return otoCtx, otoInitErr
}

// countingReader tracks bytes read and whether the stream has ended. It is
// read by oto's goroutine and polled from the monitor.
type countingReader struct {
	reader io.Reader
	pos    atomic.Int64
	eof    atomic.Bool
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.reader.Read(p)
	cr.pos.Add(int64(n))
	if err != nil {
		cr.eof.Store(true)
	}
	return n, err
}

// openPCM opens path and returns a 48 kHz stereo s16le stream of it.
func openPCM(path string) (*os.File, *normalizedDecoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	dec, err := newDecoder(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	norm, err := newNormalizedDecoder(dec)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, norm, nil
}

// FileSource plays a decoded audio file through the speakers and meters
// exactly the samples handed to the output device. oto's pull goroutine is
// the audio callback: blocks are framed as it reads.
type FileSource struct {
	file     *os.File
	counter  *countingReader
	framer   *Framer
	player   *oto.Player
	meta     Metadata
	duration time.Duration

	done      chan struct{}
	stop      chan struct{}
	closeOnce sync.Once
}

// OpenFile starts playback of path, delivering blockFrames-sized blocks to fn.
func OpenFile(path string, blockFrames int, fn BlockFunc) (*FileSource, error) {
	f, pcm, err := openPCM(path)
	if err != nil {
		return nil, err
	}

	ctx, err := initOto()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening audio output: %w", err)
	}

	s := &FileSource{
		file:     f,
		counter:  &countingReader{reader: pcm},
		framer:   NewFramer(blockFrames, Channels, fn),
		meta:     ReadMetadata(path),
		duration: time.Duration(float64(pcm.Length()) / bytesPerSec * float64(time.Second)),
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
	s.player = ctx.NewPlayer(io.TeeReader(s.counter, s.framer))
	s.player.SetBufferSize(playerBufferBytes)
	s.player.Play()

	go s.monitor()
	return s, nil
}

func (s *FileSource) monitor() {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			if s.counter.eof.Load() && !s.player.IsPlaying() {
				s.framer.Flush()
				close(s.done)
				return
			}
		}
	}
}

func (s *FileSource) Kind() Kind { return File }

func (s *FileSource) Name() string { return s.meta.Display() }

// Metadata returns the track tags.
func (s *FileSource) Metadata() Metadata { return s.meta }

func (s *FileSource) Done() <-chan struct{} { return s.done }

// Position returns how much audio has been handed to the output device.
func (s *FileSource) Position() time.Duration {
	secs := float64(s.counter.pos.Load()) / bytesPerSec
	return time.Duration(secs * float64(time.Second))
}

// Duration returns the expected length of the track.
func (s *FileSource) Duration() time.Duration { return s.duration }

// Close stops playback and releases the file.
func (s *FileSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		s.player.Pause()
		err = errors.Join(s.player.Close(), s.file.Close())
	})
	return err
}
