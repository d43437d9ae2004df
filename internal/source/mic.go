package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

var (
	captureCommand  = BuildCaptureCommand
	captureLookPath = exec.LookPath
)

// micReadBytes is ~10 ms of 48 kHz stereo s16le per pipe read.
const micReadBytes = 480 * frameSize

// MicSource captures raw audio from an input device. Its reader goroutine
// is the audio callback.
type MicSource struct {
	device string
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stderr bytes.Buffer

	done      chan struct{}
	mu        sync.Mutex
	err       error
	closed    bool
	closeOnce sync.Once
}

// OpenMicrophone starts capturing from device (empty for the default),
// delivering blockFrames-sized blocks to fn.
func OpenMicrophone(ctx context.Context, device string, blockFrames int, fn BlockFunc) (*MicSource, error) {
	name, args, err := captureCommand(device)
	if err != nil {
		return nil, err
	}
	path, err := captureLookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", ErrNoAudioDevice, name)
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = 2 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}

	s := &MicSource{
		device: deviceLabel(device, args),
		cmd:    cmd,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	cmd.Stderr = &lockedWriter{mu: &s.mu, w: &s.stderr}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	go s.run(stdout, NewFramer(blockFrames, Channels, fn))
	return s, nil
}

func (s *MicSource) run(stdout io.Reader, framer *Framer) {
	defer close(s.done)

	buf := make([]byte, micReadBytes)
	_, copyErr := io.CopyBuffer(framer, stdout, buf)
	waitErr := s.cmd.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if copyErr != nil {
		s.err = copyErr
		return
	}
	if waitErr != nil {
		if msg := lastLine(s.stderr.String()); msg != "" {
			s.err = fmt.Errorf("%w: %s", waitErr, msg)
		} else {
			s.err = waitErr
		}
	}
}

func (s *MicSource) Kind() Kind { return Microphone }

func (s *MicSource) Name() string { return s.device }

func (s *MicSource) Done() <-chan struct{} { return s.done }

// Err reports why capture ended on its own. It is nil while running and
// after Close.
func (s *MicSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.err
}

// Close stops the capture process and waits for the reader to finish.
func (s *MicSource) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		<-s.done
	})
	return nil
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// deviceLabel names the device that will actually be opened.
func deviceLabel(device string, args []string) string {
	if device != "" {
		return device
	}
	for i, a := range args[:max(0, len(args)-1)] {
		if a == "-D" || a == "-i" {
			return args[i+1]
		}
	}
	return "default"
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			if len(line) > 200 {
				return line[:200] + "..."
			}
			return line
		}
	}
	return ""
}
