// Package tui implements fleetctl watch's live dashboard: a bubbletea
// program whose model is fed by a Bridge translating Event Bus events into
// tea.Msg values. Grounded on the teacher's internal/cli/tui package:
// the same Model/Update/View/Styles/Bridge split, generalized from
// orchestrator units to Runs/Tasks.
package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by View.
type Styles struct {
	Title    lipgloss.Style
	Timer    lipgloss.Style
	Goal     lipgloss.Style
	TaskName lipgloss.Style

	StatusPending    lipgloss.Style
	StatusInProgress lipgloss.Style
	StatusCompleted  lipgloss.Style
	StatusFailed     lipgloss.Style
	StatusCancelled  lipgloss.Style

	ProgressFilled lipgloss.Style
	ProgressEmpty  lipgloss.Style

	Footer    lipgloss.Style
	FooterKey lipgloss.Style

	LogLine lipgloss.Style
}

// DefaultStyles returns the dashboard's default color scheme.
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Timer:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Goal:     lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Italic(true),
		TaskName: lipgloss.NewStyle().Bold(true),

		StatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		StatusFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		StatusCancelled:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),

		ProgressFilled: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		ProgressEmpty:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),

		Footer:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")).MarginTop(1),
		FooterKey: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),

		LogLine: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// Icon returns the single-glyph marker for a task status.
func Icon(status string) string {
	switch status {
	case "pending":
		return IconPending
	case "in_progress":
		return IconInProgress
	case "completed":
		return IconCompleted
	case "failed":
		return IconFailed
	case "cancelled":
		return IconCancelled
	default:
		return "?"
	}
}

// Icons used throughout the dashboard.
const (
	IconPending    = "○"
	IconInProgress = "●"
	IconCompleted  = "✓"
	IconFailed     = "✗"
	IconCancelled  = "⊘"
)
