package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/agentfleet/fleet/internal/model"
)

const progressWidth = 30

// View implements tea.Model.
func (m *Model) View() string {
	if m.Run == nil {
		return "waiting for run state...\n"
	}

	var b strings.Builder
	b.WriteString(m.Styles.Title.Render("fleet") + " — " + string(m.Run.Status))
	b.WriteString("  " + m.Styles.Timer.Render(time.Since(m.StartTime).Round(time.Second).String()))
	b.WriteString("\n")
	b.WriteString(m.Styles.Goal.Render(m.Run.Goal) + "\n\n")

	b.WriteString(m.renderProgress())
	b.WriteString("\n\n")

	for _, t := range m.Run.Tasks {
		b.WriteString(m.renderTask(t) + "\n")
	}

	if len(m.LogLines) > 0 {
		b.WriteString("\n")
		start := 0
		if len(m.LogLines) > 8 {
			start = len(m.LogLines) - 8
		}
		for _, line := range m.LogLines[start:] {
			b.WriteString(m.Styles.LogLine.Render(line) + "\n")
		}
	}

	b.WriteString("\n" + m.Styles.Footer.Render(m.Styles.FooterKey.Render("q")+" quit"))
	return b.String()
}

func (m *Model) renderProgress() string {
	total := len(m.Run.Tasks)
	if total == 0 {
		return "no tasks yet"
	}
	done := 0
	for _, t := range m.Run.Tasks {
		if t.Status.IsTerminal() {
			done++
		}
	}
	filled := done * progressWidth / total
	bar := m.Styles.ProgressFilled.Render(strings.Repeat("█", filled)) +
		m.Styles.ProgressEmpty.Render(strings.Repeat("░", progressWidth-filled))
	return fmt.Sprintf("%s %d/%d tasks", bar, done, total)
}

func (m *Model) renderTask(t *model.Task) string {
	icon := Icon(string(t.Status))
	style := m.statusStyle(t.Status)
	line := fmt.Sprintf("%s %s %s", style.Render(icon), m.Styles.TaskName.Render(t.Title), style.Render(string(t.Status)))
	if t.Error != "" {
		line += " — " + t.Error
	}
	return line
}

func (m *Model) statusStyle(status model.TaskStatus) lipgloss.Style {
	switch status {
	case model.TaskPending:
		return m.Styles.StatusPending
	case model.TaskInProgress:
		return m.Styles.StatusInProgress
	case model.TaskCompleted:
		return m.Styles.StatusCompleted
	case model.TaskFailed:
		return m.Styles.StatusFailed
	case model.TaskCancelled:
		return m.Styles.StatusCancelled
	default:
		return m.Styles.StatusPending
	}
}
