// Package events provides the in-memory publish/subscribe event bus that
// surfaces run/task/worker progress to subscribers (spec §4.1).
package events

import "time"

// EventType is the fixed discriminator set from spec §3.
type EventType string

const (
	RunCreated       EventType = "run:created"
	RunUpdated       EventType = "run:updated"
	RunCompleted     EventType = "run:completed"
	RunFailed        EventType = "run:failed"
	TaskUpdated      EventType = "task:updated"
	WorkerCreated    EventType = "worker:created"
	WorkerUpdated    EventType = "worker:updated"
	WorkerLog        EventType = "worker:log"
	JudgementCreated EventType = "judgement:created"
	Log              EventType = "log"
)

// Event is one broadcast record.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// New creates an event of the given type with the given payload. The bus
// stamps ID and At at Emit time.
func New(t EventType, payload any) Event {
	return Event{Type: t, Payload: payload}
}

// Handler receives events delivered by a subscription.
type Handler func(Event)
