package model

import (
	"fmt"
	"strings"
	"time"
)

// State is a step of the hosting session state machine.
type State string

const (
	StateIdle               State = "idle"
	StateCheckingStatus     State = "checking_status"
	StateAcquiringLock      State = "acquiring_lock"
	StateSyncing            State = "syncing"
	StateAwaitingReadiness  State = "awaiting_readiness"
	StateDiscoveringAddress State = "discovering_address"
	StateActiveUpkeep       State = "active_upkeep"
	StateFinishingUp        State = "finishing_up"
	StateReleased           State = "released"
	StateAborted            State = "aborted"
)

// Terminal reports whether no further transitions can follow s.
func (s State) Terminal() bool {
	return s == StateReleased || s == StateAborted
}

// HoldsLock reports whether a session in state s owns the remote lock
// and must release it on the way out.
func (s State) HoldsLock() bool {
	switch s {
	case StateSyncing, StateAwaitingReadiness, StateDiscoveringAddress,
		StateActiveUpkeep, StateFinishingUp:
		return true
	}
	return false
}

// Session is one run of the controller for one world by one identity.
type Session struct {
	ID             string    `json:"id"`
	World          string    `json:"world"`
	Identity       string    `json:"identity"`
	StartedAt      time.Time `json:"started_at"`
	State          State     `json:"state"`
	LastAutosaveAt time.Time `json:"last_autosave_at,omitempty"`
	Autosaves      int       `json:"autosaves"`
	Address        string    `json:"address,omitempty"`
}

// OutcomeKind classifies how a session ended.
type OutcomeKind string

const (
	OutcomeCompleted     OutcomeKind = "completed"
	OutcomeAlreadyHosted OutcomeKind = "already_hosted"
	OutcomeStaleLock     OutcomeKind = "stale_lock"
	OutcomeConflict      OutcomeKind = "conflict"
	OutcomeAborted       OutcomeKind = "aborted"
)

// Outcome is the operator-facing result of a session.
type Outcome struct {
	SessionID string      `json:"session_id"`
	World     string      `json:"world"`
	Kind      OutcomeKind `json:"kind"`
	State     State       `json:"state"`
	// Degraded is set when address discovery or upkeep was skipped.
	Degraded bool `json:"degraded"`
	// ManualUploadRequired is set when the remote copy may be older than the
	// local world and someone has to push it by hand.
	ManualUploadRequired bool `json:"manual_upload_required"`
	// ReleaseFailed is set when the final release call did not succeed and the
	// world may still show as online.
	ReleaseFailed bool      `json:"release_failed,omitempty"`
	Holder        string    `json:"holder,omitempty"`
	LockedAt      time.Time `json:"locked_at,omitempty"`
	Address       string    `json:"address,omitempty"`
	Autosaves     int       `json:"autosaves"`
	Notes         []string  `json:"notes,omitempty"`
	Error         string    `json:"error,omitempty"`
	Err           error     `json:"-"`
}

// Success reports whether the session ran to a clean release.
func (o *Outcome) Success() bool {
	return o.Kind == OutcomeCompleted
}

// Summary renders a one-line description suitable for the operator.
func (o *Outcome) Summary() string {
	switch o.Kind {
	case OutcomeCompleted:
		if o.Degraded || o.ManualUploadRequired || o.ReleaseFailed {
			return "completed, degraded, manual verification recommended"
		}
		return "completed"
	case OutcomeAlreadyHosted:
		return fmt.Sprintf("already hosted by %s", o.Holder)
	case OutcomeStaleLock:
		return fmt.Sprintf("lock held by %s is stale, force release required before hosting", o.Holder)
	case OutcomeConflict:
		return fmt.Sprintf("lock was taken by %s", o.Holder)
	default:
		var b strings.Builder
		b.WriteString("aborted")
		if o.Error != "" {
			b.WriteString(": ")
			b.WriteString(o.Error)
		}
		if o.ReleaseFailed {
			b.WriteString(" (release failed, clear the lock manually)")
		}
		return b.String()
	}
}

// AddNote appends an operator hint.
func (o *Outcome) AddNote(format string, args ...any) {
	o.Notes = append(o.Notes, fmt.Sprintf(format, args...))
}
