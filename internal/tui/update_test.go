package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/fleet/internal/model"
)

func TestQuitKeySetsQuitting(t *testing.T) {
	m := NewModel(&model.Run{Goal: "g"})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, m.Quitting)
	require.NotNil(t, cmd)
}

func TestRunMsgTerminalStatusEndsTheProgram(t *testing.T) {
	m := NewModel(&model.Run{Goal: "g", Status: model.RunExecuting})
	completed := &model.Run{Goal: "g", Status: model.RunCompleted, CompletedAt: timePtr(time.Now())}

	_, cmd := m.Update(RunMsg{Run: completed})
	assert.Equal(t, model.RunCompleted, m.Run.Status)
	assert.True(t, m.Done)
	require.NotNil(t, cmd)
}

func TestTaskMsgUpdatesMatchingTaskInPlace(t *testing.T) {
	task := &model.Task{ID: "t1", Title: "T1", Status: model.TaskPending}
	m := NewModel(&model.Run{Goal: "g", Tasks: []*model.Task{task}})

	updated := &model.Task{ID: "t1", Title: "T1", Status: model.TaskCompleted, Result: "ok"}
	m.Update(TaskMsg{Task: updated})

	assert.Equal(t, model.TaskCompleted, m.Run.Tasks[0].Status)
	assert.Equal(t, "ok", m.Run.Tasks[0].Result)
}

func timePtr(t time.Time) *time.Time { return &t }
