// Package session runs the meter's lifecycle: it opens an audio source,
// feeds its blocks to a fresh integrator and tears everything down again.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/olivier-w/climp-vu/internal/meter"
	"github.com/olivier-w/climp-vu/internal/source"
)

// ErrSourceUnavailable wraps every failure to open an audio source.
var ErrSourceUnavailable = errors.New("source unavailable")

// State is the session lifecycle state.
type State int

const (
	Idle State = iota
	Connecting
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Running:
		return "running"
	}
	return "unknown"
}

// Request names the source to meter.
type Request struct {
	Kind source.Kind
	// Path is the audio file for File requests.
	Path string
	// Device is the capture device for Microphone requests; empty selects
	// the default.
	Device string
}

func (r Request) String() string {
	if r.Kind == source.File {
		return r.Path
	}
	if r.Device == "" {
		return "default microphone"
	}
	return r.Device
}

// Opener opens the source described by req, delivering blocks of
// blockFrames frames to fn on the source's audio goroutine.
type Opener func(ctx context.Context, req Request, blockFrames int, fn source.BlockFunc) (source.Source, error)

// OpenSource is the Opener for real files and microphones.
func OpenSource(ctx context.Context, req Request, blockFrames int, fn source.BlockFunc) (source.Source, error) {
	switch req.Kind {
	case source.File:
		return source.OpenFile(req.Path, blockFrames, fn)
	case source.Microphone:
		return source.OpenMicrophone(ctx, req.Device, blockFrames, fn)
	}
	return nil, fmt.Errorf("unknown source kind %v", req.Kind)
}

// Status is a point-in-time view of the session for display.
type Status struct {
	State State
	ID    string
	Kind  source.Kind
	Name  string
	// Err is the last failure: a source that could not be opened or one
	// that ended with an error.
	Err      error
	Position time.Duration
	Duration time.Duration
}

// Session owns the audio source and the integrator it drives. Display
// consumers read levels from Cell. All methods are safe for concurrent use.
type Session struct {
	cfg  meter.CalibrationConfig
	cell *meter.LevelCell
	open Opener
	log  *slog.Logger

	// generation tags the current source. Blocks from an older generation
	// are dropped.
	generation atomic.Uint64

	ctl sync.Mutex // serializes Start and Stop

	mu      sync.Mutex
	state   State
	id      string
	req     Request
	src     source.Source
	cancel  context.CancelFunc
	watch   chan struct{}
	lastErr error
}

// New creates an idle session. A nil open uses OpenSource; a nil logger
// discards logs.
func New(cfg meter.CalibrationConfig, open Opener, logger *slog.Logger) *Session {
	if open == nil {
		open = OpenSource
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		cfg:  cfg,
		cell: meter.NewLevelCell(),
		open: open,
		log:  logger,
	}
}

// Cell returns the level cell the integrator posts to.
func (s *Session) Cell() *meter.LevelCell { return s.cell }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the current state and source details.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State: s.state,
		ID:    s.id,
		Err:   s.lastErr,
	}
	if s.src != nil {
		st.Kind = s.src.Kind()
		st.Name = s.src.Name()
		if p, ok := s.src.(source.Progress); ok {
			st.Position = p.Position()
			st.Duration = p.Duration()
		}
	} else if s.state == Connecting {
		st.Kind = s.req.Kind
		st.Name = s.req.String()
	}
	return st
}

// Start opens the requested source and starts metering it. When a source
// is already running this is a switch: the old source is torn down without
// resetting the needle and the new integrator continues from the level on
// display. If the source cannot be opened the session is left Idle at rest
// and the error wraps ErrSourceUnavailable.
func (s *Session) Start(ctx context.Context, req Request) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	switching := s.src != nil
	release := s.detachLocked()
	s.state = Connecting
	s.req = req
	s.lastErr = nil
	s.id = uuid.NewString()
	id := s.id
	s.mu.Unlock()
	release()

	logger := s.log.With("session", id, "source", req.String())
	if switching {
		logger.Info("switching source")
	} else {
		logger.Info("starting session")
	}

	integ := meter.NewIntegrator(s.cfg, s.cell)
	if switching {
		integ.Seed(s.cell.Load().LevelMessage)
	}
	gen := s.generation.Add(1)
	fn := func(channels [][]float32) {
		if s.generation.Load() != gen {
			return
		}
		integ.ProcessBlock(channels)
	}

	srcCtx, cancel := context.WithCancel(ctx)
	src, err := s.open(srcCtx, req, integ.Config().BlockSize, fn)
	if err != nil {
		cancel()
		s.generation.Add(1)
		err = fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, req, err)

		s.mu.Lock()
		s.state = Idle
		s.lastErr = err
		s.mu.Unlock()
		s.cell.Reset()

		logger.Error("opening source failed", "error", err)
		return err
	}

	watch := make(chan struct{})
	s.mu.Lock()
	s.src = src
	s.cancel = cancel
	s.watch = watch
	s.state = Running
	s.mu.Unlock()

	go s.watchSource(src, gen, watch, logger)
	logger.Info("session running", "kind", src.Kind().String(), "name", src.Name())
	return nil
}

// Stop tears down the source and returns the needle to rest. It is a no-op
// when the session is already Idle.
func (s *Session) Stop() {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	s.stop(nil)
}

func (s *Session) stop(cause error) {
	s.mu.Lock()
	if s.state == Idle && s.src == nil {
		s.mu.Unlock()
		return
	}
	id := s.id
	release := s.detachLocked()
	s.state = Idle
	if cause != nil {
		s.lastErr = cause
	}
	s.mu.Unlock()
	release()

	s.cell.Reset()
	s.log.Info("session stopped", "session", id)
}

// detachLocked retires the current generation and detaches the source.
// Blocks already in flight are dropped by the generation check. Closing a
// microphone waits for the capture process, so the returned func closes
// the source and must be called after s.mu is released.
func (s *Session) detachLocked() func() {
	s.generation.Add(1)
	if s.watch != nil {
		close(s.watch)
		s.watch = nil
	}
	src, cancel, id := s.src, s.cancel, s.id
	s.src, s.cancel = nil, nil
	return func() {
		if src != nil {
			if err := src.Close(); err != nil {
				s.log.Warn("closing source", "session", id, "error", err)
			}
		}
		if cancel != nil {
			cancel()
		}
	}
}

// errorer is implemented by sources that can fail after opening.
type errorer interface {
	Err() error
}

func (s *Session) watchSource(src source.Source, gen uint64, watch <-chan struct{}, logger *slog.Logger) {
	select {
	case <-watch:
		return
	case <-src.Done():
	}

	var cause error
	if e, ok := src.(errorer); ok {
		cause = e.Err()
	}
	if cause != nil {
		logger.Warn("source failed", "error", cause)
	} else {
		logger.Info("source finished")
	}

	s.ctl.Lock()
	defer s.ctl.Unlock()
	if s.generation.Load() != gen {
		return
	}
	s.stop(cause)
}
