package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type tickMsg time.Time

// startedMsg reports the outcome of a session start.
type startedMsg struct {
	err error
}

func tickCmd(frame time.Duration) tea.Cmd {
	return tea.Tick(frame, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
