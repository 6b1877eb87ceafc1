package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/agentfleet/fleet/internal/events"
	"github.com/agentfleet/fleet/internal/model"
)

// Bridge forwards Event Bus events to a running bubbletea program as
// typed tea.Msg values.
type Bridge struct {
	program *tea.Program
}

// NewBridge wraps program.
func NewBridge(program *tea.Program) *Bridge {
	return &Bridge{program: program}
}

// Handler returns an events.Handler suitable for events.Bus.Handle.
func (b *Bridge) Handler() events.Handler {
	return func(e events.Event) {
		if msg := toMsg(e); msg != nil {
			b.program.Send(msg)
		}
	}
}

func toMsg(e events.Event) tea.Msg {
	switch e.Type {
	case events.RunCreated, events.RunUpdated, events.RunCompleted, events.RunFailed:
		if run, ok := e.Payload.(*model.Run); ok {
			return RunMsg{Run: run}
		}
	case events.TaskUpdated:
		if task, ok := e.Payload.(*model.Task); ok {
			return TaskMsg{Task: task}
		}
	case events.JudgementCreated:
		if j, ok := e.Payload.(*model.Judgement); ok {
			return JudgementMsg{Judgement: j}
		}
	}
	return nil
}
