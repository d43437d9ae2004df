package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/olivier-w/climp-vu/internal/session"
	"github.com/olivier-w/climp-vu/internal/source"
)

// BrowserSelectedMsg is sent when the user picks a source.
type BrowserSelectedMsg struct {
	Request session.Request
}

// BrowserCancelledMsg is sent when the user leaves the picker.
type BrowserCancelledMsg struct{}

type devicesListedMsg struct {
	devices []source.Device
}

type fileItem struct {
	name string
	ext  string
}

func (i fileItem) Title() string       { return i.name }
func (i fileItem) Description() string { return i.ext }
func (i fileItem) FilterValue() string { return i.name }

type micItem struct{}

func (i micItem) Title() string       { return "Microphone..." }
func (i micItem) Description() string { return "meter a capture device" }
func (i micItem) FilterValue() string { return "microphone" }

// BrowserModel picks a source: an audio file in the current directory or a
// capture device.
type BrowserModel struct {
	list    list.Model
	input   textinput.Model
	micMode bool
	devices []source.Device
	err     error
}

// NewEmbeddedBrowser creates a picker scanning the current directory.
func NewEmbeddedBrowser() BrowserModel {
	ti := textinput.New()
	ti.Placeholder = "default"
	ti.CharLimit = 256
	ti.Width = 60

	entries, err := os.ReadDir(".")
	if err != nil {
		return BrowserModel{input: ti, err: fmt.Errorf("cannot read directory: %w", err)}
	}

	items := []list.Item{micItem{}}
	var files []fileItem
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !source.IsSupportedExt(ext) {
			continue
		}
		files = append(files, fileItem{name: strings.TrimSuffix(e.Name(), ext), ext: ext})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	for _, f := range files {
		items = append(items, f)
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"}).
		BorderLeftForeground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}).
		BorderLeftForeground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})

	l := list.New(items, delegate, 80, 20)
	l.Title = "climp-vu"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = headerStyle

	return BrowserModel{list: l, input: ti}
}

// Error returns the initialization error, if any.
func (m BrowserModel) Error() error {
	return m.err
}

func (m BrowserModel) Update(msg tea.Msg) (BrowserModel, tea.Cmd) {
	if m.err != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, cancelled
		}
		return m, nil
	}
	if m.micMode {
		return m.updateDeviceInput(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case "enter":
			switch item := m.list.SelectedItem().(type) {
			case micItem:
				m.micMode = true
				m.input.Focus()
				return m, tea.Batch(textinput.Blink, listDevices)
			case fileItem:
				req := session.Request{Kind: source.File, Path: item.name + item.ext}
				return m, selected(req)
			}
		case "q", "esc", "ctrl+c":
			return m, cancelled
		}

	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height - 2)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m BrowserModel) updateDeviceInput(msg tea.Msg) (BrowserModel, tea.Cmd) {
	switch msg := msg.(type) {
	case devicesListedMsg:
		m.devices = msg.devices
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			req := session.Request{Kind: source.Microphone, Device: strings.TrimSpace(m.input.Value())}
			return m, selected(req)
		case "esc":
			m.micMode = false
			m.input.Reset()
			m.input.Blur()
			return m, nil
		case "ctrl+c":
			return m, cancelled
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m BrowserModel) View() string {
	if m.err != nil {
		return "\n  " + errorStyle.Render(m.err.Error()) + "\n"
	}
	if !m.micMode {
		return m.list.View()
	}

	s := "\n"
	s += "  " + headerStyle.Render("climp-vu") + "\n"
	s += "\n"
	s += "  " + statusStyle.Render("Capture device (empty for default):") + "\n"
	s += "  " + m.input.View() + "\n"
	if len(m.devices) > 0 {
		s += "\n"
		for _, d := range m.devices {
			s += "  " + helpStyle.Render(fmt.Sprintf("%s  %s", d.ID, d.Name)) + "\n"
		}
	}
	s += "\n"
	s += "  " + helpStyle.Render("enter confirm  esc back  ctrl+c cancel") + "\n"
	return s
}

func selected(req session.Request) tea.Cmd {
	return func() tea.Msg { return BrowserSelectedMsg{Request: req} }
}

func cancelled() tea.Msg {
	return BrowserCancelledMsg{}
}

func listDevices() tea.Msg {
	return devicesListedMsg{devices: source.ListDevices()}
}
