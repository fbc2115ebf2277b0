package model

import "time"

// HashValue is a SHA-256 hash stored as hex string.
type HashValue string

// JournalRecord is one line of the local session journal (JSONL).
type JournalRecord struct {
	Timestamp  time.Time      `json:"timestamp"`
	SessionID  string         `json:"session_id"`
	World      string         `json:"world"`
	Identity   string         `json:"identity,omitempty"`
	Kind       OutcomeKind    `json:"kind"`
	Summary    string         `json:"summary"`
	Details    map[string]any `json:"details,omitempty"`
	PrevHash   HashValue      `json:"prev_hash"`
	RecordHash HashValue      `json:"record_hash"`
}
