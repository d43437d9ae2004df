package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/olivier-w/climp-vu/internal/config"
	"github.com/olivier-w/climp-vu/internal/meter"
	"github.com/olivier-w/climp-vu/internal/session"
	"github.com/olivier-w/climp-vu/internal/source"
)

type stubSource struct {
	kind source.Kind
	name string
	fn   source.BlockFunc
	done chan struct{}
}

func (s *stubSource) Kind() source.Kind     { return s.kind }
func (s *stubSource) Name() string          { return s.name }
func (s *stubSource) Done() <-chan struct{} { return s.done }
func (s *stubSource) Close() error          { return nil }

func (s *stubSource) feed(n int, amp float32) {
	block := make([]float32, 128)
	for i := range block {
		block[i] = amp
	}
	for range n {
		s.fn([][]float32{block, block})
	}
}

func newStubSession(t *testing.T, openErr error) (*session.Session, *[]*stubSource) {
	t.Helper()
	var opened []*stubSource
	open := func(_ context.Context, req session.Request, _ int, fn source.BlockFunc) (source.Source, error) {
		if openErr != nil {
			return nil, openErr
		}
		src := &stubSource{kind: req.Kind, name: req.String(), fn: fn, done: make(chan struct{})}
		opened = append(opened, src)
		return src, nil
	}
	return session.New(config.Default().Calibration(), open, nil), &opened
}

func newTestModel(t *testing.T, openErr error) (Model, *session.Session, *[]*stubSource) {
	t.Helper()
	sess, opened := newStubSession(t, openErr)
	req := session.Request{Kind: source.File, Path: "tone.wav"}
	return New(context.Background(), sess, config.Default(), "", &req), sess, opened
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestNewWithoutRequestOpensPicker(t *testing.T) {
	restore := chdirTemp(t, map[string]string{})
	defer restore()

	sess := session.New(meter.DefaultCalibration(), nil, nil)
	m := New(context.Background(), sess, config.Default(), "", nil)
	if m.browser == nil {
		t.Fatal("expected picker to open without an initial request")
	}
}

func TestStartedMsgShowsError(t *testing.T) {
	m, _, _ := newTestModel(t, nil)

	m, _ = update(t, m, startedMsg{err: errors.New("source unavailable: boom")})
	if !strings.Contains(m.View(), "source unavailable: boom") {
		t.Fatal("expected error in view")
	}

	m, _ = update(t, m, startedMsg{})
	if strings.Contains(m.View(), "boom") {
		t.Fatal("expected error to clear after a successful start")
	}
}

func TestTickMovesNeedleTowardLevel(t *testing.T) {
	m, sess, opened := newTestModel(t, nil)
	if err := sess.Start(context.Background(), session.Request{Kind: source.File, Path: "tone.wav"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	(*opened)[0].feed(1200, 0.125)

	now := time.Now()
	for i := range 60 {
		m, _ = update(t, m, tickMsg(now.Add(time.Duration(i)*m.frame)))
	}

	pos := m.damper.Positions()
	if pos.Left < -1 || pos.Left > 1 {
		t.Fatalf("expected needle near 0 VU for a -18 dBFS tone, got %v", pos.Left)
	}
	if m.status.State != session.Running {
		t.Fatalf("expected running status, got %v", m.status.State)
	}
	peakL, _ := m.peaks.Peaks()
	if peakL < pos.Left {
		t.Fatalf("expected peak at or above needle, got %v < %v", peakL, pos.Left)
	}
}

func TestStopKeySnapsNeedleToRest(t *testing.T) {
	m, sess, opened := newTestModel(t, nil)
	if err := sess.Start(context.Background(), session.Request{Kind: source.Microphone}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	(*opened)[0].feed(600, 0.5)
	now := time.Now()
	for i := range 30 {
		m, _ = update(t, m, tickMsg(now.Add(time.Duration(i)*m.frame)))
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	if sess.State() != session.Idle {
		t.Fatalf("expected idle after stop, got %v", sess.State())
	}
	m, _ = update(t, m, tickMsg(now.Add(time.Second)))

	if m.damper.Positions() != meter.RestLevel {
		t.Fatalf("expected needle at rest, got %+v", m.damper.Positions())
	}
	if l, r := m.peaks.Peaks(); l != meter.FloorVU || r != meter.FloorVU {
		t.Fatalf("expected peaks reset, got %v/%v", l, r)
	}
}

func TestMicKeyStartsMicrophone(t *testing.T) {
	m, _, opened := newTestModel(t, nil)
	m.device = "hw:2"

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'m'}})
	if cmd == nil {
		t.Fatal("expected start command")
	}
	msg, ok := cmd().(startedMsg)
	if !ok || msg.err != nil {
		t.Fatalf("expected successful start, got %+v", msg)
	}
	if len(*opened) != 1 || (*opened)[0].kind != source.Microphone || (*opened)[0].name != "hw:2" {
		t.Fatalf("expected microphone hw:2 to open, got %+v", *opened)
	}
}

func TestOpenKeyShowsPickerAndSelectionStarts(t *testing.T) {
	restore := chdirTemp(t, map[string]string{"song.ogg": "data"})
	defer restore()

	m, _, opened := newTestModel(t, nil)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
	if m.browser == nil {
		t.Fatal("expected picker to open")
	}

	m, cmd := update(t, m, BrowserSelectedMsg{Request: session.Request{Kind: source.File, Path: "song.ogg"}})
	if m.browser != nil {
		t.Fatal("expected picker to close after selection")
	}
	if cmd == nil {
		t.Fatal("expected start command")
	}
	cmd()
	if len(*opened) != 1 || (*opened)[0].name != "song.ogg" {
		t.Fatalf("expected song.ogg to open, got %+v", *opened)
	}
}

func TestQuitStopsSession(t *testing.T) {
	m, sess, _ := newTestModel(t, nil)
	if err := sess.Start(context.Background(), session.Request{Kind: source.Microphone}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !m.quitting || m.View() != "" {
		t.Fatal("expected model to be quitting with an empty view")
	}
	if sess.State() != session.Idle {
		t.Fatalf("expected session stopped, got %v", sess.State())
	}
}

func TestViewShowsDialsAndReadout(t *testing.T) {
	m, _, _ := newTestModel(t, nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	view := m.View()
	for _, want := range []string{"climp-vu", "no source", "L ", "R ", "-60.0 VU", "-20", "+3", "q quit"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q:\n%s", want, view)
		}
	}
}

func TestFailedStartShowsSourceUnavailable(t *testing.T) {
	m, sess, _ := newTestModel(t, source.ErrNoAudioDevice)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'m'}})
	msg := cmd()
	m, _ = update(t, m, msg)

	if sess.State() != session.Idle {
		t.Fatalf("expected idle after failed start, got %v", sess.State())
	}
	if !strings.Contains(m.View(), "no audio input device found") {
		t.Fatalf("expected device error in view:\n%s", m.View())
	}
}
