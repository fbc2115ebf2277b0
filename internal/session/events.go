package session

import (
	"time"

	"github.com/harupipipipi/mcmultidrive/pkg/logging"
	"github.com/harupipipipi/mcmultidrive/pkg/model"
)

// EventKind classifies controller events.
type EventKind string

const (
	EventStateChanged    EventKind = "state_changed"
	EventLog             EventKind = "log"
	EventAddressResolved EventKind = "address_resolved"
	EventLockStale       EventKind = "lock_stale"
	EventSessionDone     EventKind = "session_done"
)

// Event is delivered to handlers on the controller's goroutine, in order.
type Event struct {
	Kind      EventKind      `json:"kind"`
	Time      time.Time      `json:"time"`
	SessionID string         `json:"session_id"`
	World     string         `json:"world"`
	From      model.State    `json:"from,omitempty"`
	To        model.State    `json:"to,omitempty"`
	Level     logging.Level  `json:"level,omitempty"`
	Message   string         `json:"message,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Address   string         `json:"address,omitempty"`
	// Source is "watcher" or "manual" for address events.
	Source   string         `json:"source,omitempty"`
	Holder   string         `json:"holder,omitempty"`
	LockedAt string         `json:"locked_at,omitempty"`
	Success  bool           `json:"success"`
	Outcome  *model.Outcome `json:"outcome,omitempty"`
}

// Handler receives events. Handlers must not block for long; the session
// waits for them.
type Handler func(Event)
