package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLockTimestamp(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"rfc3339 zulu", "2026-03-01T12:30:00Z", true},
		{"rfc3339 millis", "2026-03-01T12:30:00.000Z", true},
		{"offset", "2026-03-01T21:30:00+09:00", true},
		{"naive", "2026-03-01T12:30:00", true},
		{"naive space", "2026-03-01 12:30:00", true},
		{"space with offset", "2026-03-01 12:30:00+00:00", true},
		{"space with zulu", "2026-03-01 12:30:00Z", true},
		{"offset without colon", "2026-03-01T21:30:00+0900", true},
		{"space offset without colon", "2026-03-01 07:30:00.000-0500", true},
		{"empty", "", false},
		{"garbage", "yesterday", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLockTimestamp(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestWorld_HasAddress(t *testing.T) {
	assert.False(t, (&World{Status: StatusOffline, Address: "a.e4mc.link"}).HasAddress())
	assert.False(t, (&World{Status: StatusOnline, Address: AddressPreparing}).HasAddress())
	assert.False(t, (&World{Status: StatusOnline}).HasAddress())
	assert.True(t, (&World{Status: StatusOnline, Address: "a.e4mc.link"}).HasAddress())

	var nilWorld *World
	assert.False(t, nilWorld.IsOnline())
}

func TestOutcome_Summary(t *testing.T) {
	assert.Equal(t, "completed", (&Outcome{Kind: OutcomeCompleted}).Summary())
	assert.Equal(t, "completed, degraded, manual verification recommended",
		(&Outcome{Kind: OutcomeCompleted, Degraded: true}).Summary())
	assert.Equal(t, "already hosted by Alice",
		(&Outcome{Kind: OutcomeAlreadyHosted, Holder: "Alice"}).Summary())
	assert.Contains(t, (&Outcome{Kind: OutcomeStaleLock, Holder: "Alice"}).Summary(), "force release")
	assert.Equal(t, "aborted: E_DATA_SYNC (release failed, clear the lock manually)",
		(&Outcome{Kind: OutcomeAborted, Error: "E_DATA_SYNC", ReleaseFailed: true}).Summary())
}

func TestState_HoldsLock(t *testing.T) {
	assert.False(t, StateCheckingStatus.HoldsLock())
	assert.False(t, StateAcquiringLock.HoldsLock())
	assert.True(t, StateSyncing.HoldsLock())
	assert.True(t, StateFinishingUp.HoldsLock())
	assert.True(t, StateReleased.Terminal())
	assert.True(t, StateAborted.Terminal())
	assert.False(t, StateActiveUpkeep.Terminal())
}
