// Package model holds the records shared between the status store, the
// session controller and the CLI.
package model

import (
	"strings"
	"time"
)

// WorldStatus is the hosting state recorded by the status store.
type WorldStatus string

const (
	StatusOffline WorldStatus = "offline"
	StatusOnline  WorldStatus = "online"
	// StatusUnknown is used locally when the store response carried no status.
	StatusUnknown WorldStatus = "unknown"
)

// AddressPreparing is published while the host has the lock but no
// reachable address yet.
const AddressPreparing = "preparing..."

// World is one row of the status store.
type World struct {
	Name          string      `json:"name"`
	Status        WorldStatus `json:"status"`
	Holder        string      `json:"host,omitempty"`
	Address       string      `json:"domain,omitempty"`
	LockTimestamp string      `json:"lock_timestamp,omitempty"`
}

// IsOnline reports whether someone currently holds the world.
func (w *World) IsOnline() bool {
	return w != nil && w.Status == StatusOnline
}

// HasAddress reports whether the world is online with a joinable address.
func (w *World) HasAddress() bool {
	return w.IsOnline() && w.Address != "" && w.Address != AddressPreparing
}

// LockedAt parses LockTimestamp. ok is false when the timestamp is empty or
// cannot be parsed.
func (w *World) LockedAt() (t time.Time, ok bool) {
	if w == nil {
		return time.Time{}, false
	}
	return ParseLockTimestamp(w.LockTimestamp)
}

// zonedLayouts cover the ISO-8601 forms besides RFC 3339: a space
// separator and offsets without a colon. Z07 layouts also accept "Z".
var zonedLayouts = []string{
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z0700",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseLockTimestamp accepts RFC 3339 timestamps (including a trailing Z),
// the other zoned ISO-8601 forms the store may write, and timestamps
// without a zone, which are taken as UTC.
func ParseLockTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
