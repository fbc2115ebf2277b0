package statusstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsLockExpiredAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		timestamp string
		hours     int
		want      bool
	}{
		{"empty", "", 6, true},
		{"garbage", "yesterday-ish", 6, true},
		{"fresh", "2026-03-01T11:00:00Z", 6, false},
		{"exactly at timeout", "2026-03-01T06:00:00Z", 6, false},
		{"one second past", "2026-03-01T05:59:59Z", 6, true},
		{"ten hours old", "2026-03-01T02:00:00Z", 6, true},
		{"naive timestamp is utc", "2026-03-01T07:00:00", 6, false},
		{"offset", "2026-03-01T15:00:00+09:00", 6, false},
		{"fractional seconds", "2026-03-01T05:59:59.999Z", 6, true},
		{"space with offset", "2026-03-01 11:00:00+00:00", 6, false},
		{"offset without colon", "2026-03-01T11:00:00+0000", 6, false},
		{"space with z", "2026-03-01 11:00:00Z", 6, false},
		{"space with offset past timeout", "2026-03-01 14:59:59+09:00", 6, true},
		{"space offset without colon", "2026-03-01 20:00:00+0900", 6, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLockExpiredAt(tt.timestamp, tt.hours, now))
		})
	}
}

func TestIsLockExpired_UsesWallClock(t *testing.T) {
	assert.False(t, IsLockExpired(time.Now().UTC().Format(time.RFC3339), 1))
	assert.True(t, IsLockExpired(time.Now().Add(-2*time.Hour).UTC().Format(time.RFC3339), 1))
}
