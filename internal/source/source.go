// Package source provides the audio collaborators that feed the meter:
// decoded files played through the speakers and raw microphone capture.
// Both deliver fixed-size planar float32 blocks on their own goroutine.
package source

import (
	"errors"
	"time"
)

// SampleRate is the rate every source delivers blocks at.
const SampleRate = 48000

// Channels is the channel count every source delivers.
const Channels = 2

// ErrNoAudioDevice is returned when no audio input device can be chosen.
var ErrNoAudioDevice = errors.New("no audio input device found")

// ErrUnsupportedFormat is returned for files the decoders cannot read.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Kind identifies what a source captures.
type Kind int

const (
	// Microphone is live capture from an input device.
	Microphone Kind = iota
	// File is a decoded audio file played through the speakers.
	File
)

func (k Kind) String() string {
	switch k {
	case Microphone:
		return "microphone"
	case File:
		return "file"
	}
	return "unknown"
}

// BlockFunc receives one block: a slice per channel, all the same length.
// It runs on the source's audio goroutine and must not block or retain
// the slices, which are reused for the next block.
type BlockFunc func(channels [][]float32)

// Source is a running audio source.
type Source interface {
	Kind() Kind
	// Name is a display name: the track title or the capture device.
	Name() string
	// Done is closed when the source stops delivering blocks on its own.
	Done() <-chan struct{}
	// Close stops the source. It is safe to call more than once.
	Close() error
}

// Progress is implemented by sources with a known length.
type Progress interface {
	Position() time.Duration
	Duration() time.Duration
}
