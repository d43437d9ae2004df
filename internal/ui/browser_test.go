package ui

import (
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/olivier-w/climp-vu/internal/source"
)

func TestEmbeddedBrowserFileSelectionReturnsMessage(t *testing.T) {
	restore := chdirTemp(t, map[string]string{
		"song.mp3": "data",
	})
	defer restore()

	m := NewEmbeddedBrowser()

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected selection command")
	}

	msg := cmd()
	selected, ok := msg.(BrowserSelectedMsg)
	if !ok {
		t.Fatalf("expected BrowserSelectedMsg, got %T", msg)
	}
	if selected.Request.Kind != source.File || selected.Request.Path != "song.mp3" {
		t.Fatalf("expected file song.mp3, got %+v", selected.Request)
	}
}

func TestEmbeddedBrowserMicrophoneSelectionReturnsMessage(t *testing.T) {
	restore := chdirTemp(t, map[string]string{})
	defer restore()

	m := NewEmbeddedBrowser()
	m.micMode = true
	m.input.SetValue("  hw:1,0 ")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected microphone selection command")
	}

	msg := cmd()
	selected, ok := msg.(BrowserSelectedMsg)
	if !ok {
		t.Fatalf("expected BrowserSelectedMsg, got %T", msg)
	}
	if selected.Request.Kind != source.Microphone || selected.Request.Device != "hw:1,0" {
		t.Fatalf("expected microphone hw:1,0, got %+v", selected.Request)
	}
}

func TestEmbeddedBrowserEscLeavesDeviceInput(t *testing.T) {
	restore := chdirTemp(t, map[string]string{})
	defer restore()

	m := NewEmbeddedBrowser()
	m.micMode = true
	m.input.SetValue("hw:1")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd != nil {
		t.Fatal("expected no command when leaving device input")
	}
	if m.micMode {
		t.Fatal("expected device input to close")
	}
	if m.input.Value() != "" {
		t.Fatalf("expected input to be cleared, got %q", m.input.Value())
	}
}

func TestEmbeddedBrowserCancelReturnsMessage(t *testing.T) {
	restore := chdirTemp(t, map[string]string{})
	defer restore()

	m := NewEmbeddedBrowser()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected cancel command")
	}

	if _, ok := cmd().(BrowserCancelledMsg); !ok {
		t.Fatalf("expected BrowserCancelledMsg, got %T", cmd())
	}
}

func TestBrowserListsOnlyDecodableFiles(t *testing.T) {
	restore := chdirTemp(t, map[string]string{
		"b.wav":     "data",
		"a.flac":    "data",
		"notes.txt": "data",
		"clip.m4a":  "data",
	})
	defer restore()

	m := NewEmbeddedBrowser()

	items := m.list.Items()
	if len(items) != 3 {
		t.Fatalf("expected microphone item plus 2 files, got %d items", len(items))
	}
	if _, ok := items[0].(micItem); !ok {
		t.Fatalf("expected microphone item first, got %T", items[0])
	}
	first, ok := items[1].(fileItem)
	if !ok || first.name+first.ext != "a.flac" {
		t.Fatalf("expected a.flac second, got %+v", items[1])
	}
}

func chdirTemp(t *testing.T, files map[string]string) func() {
	t.Helper()

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	dir := t.TempDir()
	for name, contents := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir temp dir: %v", err)
	}

	return func() {
		if err := os.Chdir(oldWD); err != nil {
			t.Fatalf("restore cwd: %v", err)
		}
	}
}
