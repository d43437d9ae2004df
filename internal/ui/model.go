package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/olivier-w/climp-vu/internal/config"
	"github.com/olivier-w/climp-vu/internal/meter"
	"github.com/olivier-w/climp-vu/internal/session"
	"github.com/olivier-w/climp-vu/internal/source"
	"github.com/olivier-w/climp-vu/internal/util"
)

// Model is the Bubbletea model for the meter screen. Its tick is the
// display context: every frame the damper follows the session's level
// cell and advances one step.
type Model struct {
	ctx    context.Context
	sess   *session.Session
	frame  time.Duration
	damper *meter.Damper
	peaks  *meter.PeakHolder
	device string

	initial *session.Request
	browser *BrowserModel
	spinner spinner.Model

	status   session.Status
	errMsg   string
	width    int
	height   int
	quitting bool
}

// New creates the meter screen for sess. initial is started right away;
// when it is nil the source picker opens instead. device is the capture
// device used by the "m" key.
func New(ctx context.Context, sess *session.Session, cfg config.Config, device string, initial *session.Request) Model {
	m := Model{
		ctx:     ctx,
		sess:    sess,
		frame:   cfg.Frame(),
		damper:  meter.NewDamper(cfg.Damper()),
		device:  device,
		initial: initial,
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(statusStyle)),
		status:  sess.Status(),
	}
	if hold := cfg.Hold(); hold > 0 {
		m.peaks = meter.NewPeakHolder(hold)
	}
	if initial == nil {
		b := NewEmbeddedBrowser()
		m.browser = &b
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.frame), m.spinner.Tick, tea.SetWindowTitle("climp-vu")}
	if m.initial != nil {
		cmds = append(cmds, m.start(*m.initial))
	}
	return tea.Batch(cmds...)
}

func (m Model) start(req session.Request) tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		return startedMsg{err: sess.Start(ctx, req)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.advance(time.Time(msg))
		return m, tickCmd(m.frame)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.browser != nil {
			b, cmd := m.browser.Update(msg)
			m.browser = &b
			return m, cmd
		}
		return m, nil

	case startedMsg:
		m.errMsg = ""
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		}
		m.status = m.sess.Status()
		return m, nil

	case BrowserSelectedMsg:
		m.browser = nil
		m.errMsg = ""
		return m, m.start(msg.Request)

	case BrowserCancelledMsg:
		m.browser = nil
		return m, nil
	}

	if m.browser != nil {
		b, cmd := m.browser.Update(msg)
		m.browser = &b
		return m, cmd
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if isQuit(msg) {
		m.quitting = true
		m.sess.Stop()
		return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
	}
	switch msg.String() {
	case "m":
		m.errMsg = ""
		return m, m.start(session.Request{Kind: source.Microphone, Device: m.device})
	case "o":
		b := NewEmbeddedBrowser()
		if m.width > 0 {
			b, _ = b.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
		}
		m.browser = &b
		return m, nil
	case "s":
		m.sess.Stop()
		m.status = m.sess.Status()
		return m, nil
	}
	return m, nil
}

// advance runs one display frame.
func (m *Model) advance(now time.Time) {
	if m.damper.Follow(m.sess.Cell()) && m.peaks != nil {
		m.peaks.Reset()
	}
	m.damper.Tick()
	if m.peaks != nil {
		pos := m.damper.Positions()
		m.peaks.Update(pos.Left, pos.Right, now)
	}
	m.status = m.sess.Status()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.browser != nil {
		return m.browser.View()
	}

	w := m.width
	if w < 30 {
		w = 60
	}
	dialWidth := max(23, w-18)
	amap := m.damper.AngleMap()
	pos := m.damper.Positions()
	var peakL, peakR float64
	if m.peaks != nil {
		peakL, peakR = m.peaks.Peaks()
	}

	lines := "\n"
	lines += "  " + headerStyle.Render("climp-vu") + "\n"
	lines += "\n"
	lines += "  " + titleStyle.Render(m.sourceLine()) + "\n"
	lines += "  " + statusStyle.Render(m.stateLine()) + "\n"
	lines += "\n"
	lines += "    " + renderScale(amap, dialWidth) + "\n"
	lines += "  L " + renderDial(amap, dialWidth, pos.Left, peakL, m.peaks != nil) + " " + timeStyle.Render(util.FormatVU(pos.Left)) + "\n"
	lines += "  R " + renderDial(amap, dialWidth, pos.Right, peakR, m.peaks != nil) + " " + timeStyle.Render(util.FormatVU(pos.Right)) + "\n"
	lines += "\n"
	if m.errMsg != "" {
		lines += "  " + errorStyle.Render(m.errMsg) + "\n"
	} else if m.status.Err != nil {
		lines += "  " + errorStyle.Render(m.status.Err.Error()) + "\n"
	}
	lines += "  " + helpStyle.Render(helpText(m.status.State != session.Idle)) + "\n"

	return lines
}

func (m Model) sourceLine() string {
	if m.status.State == session.Idle {
		return "no source"
	}
	return fmt.Sprintf("%s: %s", m.status.Kind, m.status.Name)
}

func (m Model) stateLine() string {
	s := m.status.State.String()
	if m.status.State == session.Connecting {
		s = m.spinner.View() + " " + s
	}
	if m.status.Duration > 0 {
		s += fmt.Sprintf("  %s / %s", util.FormatDuration(m.status.Position), util.FormatDuration(m.status.Duration))
	}
	return s
}
