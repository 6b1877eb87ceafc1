package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.Quitting = true
			return m, tea.Quit
		}

	case TickMsg:
		return m, tickCmd()

	case QuitMsg:
		m.Quitting = true
		return m, tea.Quit

	case RunMsg:
		m.Run = msg.Run
		m.appendLog(fmt.Sprintf("run %s", msg.Run.Status))
		if msg.Run.Status.IsTerminal() {
			m.Done = true
			return m, tea.Quit
		}

	case TaskMsg:
		if m.Run != nil {
			for i, t := range m.Run.Tasks {
				if t.ID == msg.Task.ID {
					m.Run.Tasks[i] = msg.Task
					break
				}
			}
		}
		m.appendLog(fmt.Sprintf("task %q: %s", msg.Task.Title, msg.Task.Status))

	case JudgementMsg:
		m.appendLog(fmt.Sprintf("judgement: %s", msg.Judgement.Assessment))
	}

	return m, nil
}
