package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agentfleet/fleet/internal/model"
)

// Model is the bubbletea model backing fleetctl watch.
type Model struct {
	Run    *model.Run
	Styles Styles

	StartTime time.Time
	LogLines  []string
	LogLimit  int

	Width, Height int
	Quitting      bool
	Done          bool
}

// NewModel creates a Model for watching run.
func NewModel(run *model.Run) *Model {
	return &Model{
		Run:       run,
		Styles:    DefaultStyles(),
		StartTime: time.Now(),
		LogLimit:  200,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tickCmd()
}

// TickMsg drives the elapsed-time display.
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// RunMsg carries a fresh Run snapshot (run:created/updated/completed/failed).
type RunMsg struct{ Run *model.Run }

// TaskMsg carries a single updated Task (task:updated).
type TaskMsg struct{ Task *model.Task }

// JudgementMsg carries a newly recorded Judgement (judgement:created).
type JudgementMsg struct{ Judgement *model.Judgement }

// QuitMsg signals the user requested quit (q or Ctrl+C).
type QuitMsg struct{}

func (m *Model) appendLog(line string) {
	m.LogLines = append(m.LogLines, line)
	if len(m.LogLines) > m.LogLimit {
		m.LogLines = m.LogLines[len(m.LogLines)-m.LogLimit:]
	}
}
