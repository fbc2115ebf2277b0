package statusstore

import (
	"time"

	"github.com/harupipipipi/mcmultidrive/pkg/model"
)

// IsLockExpired reports whether a lock taken at timestamp is older than
// hours. Empty or unparsable timestamps count as expired; exactly hours
// elapsed does not.
func IsLockExpired(timestamp string, hours int) bool {
	return IsLockExpiredAt(timestamp, hours, time.Now())
}

// IsLockExpiredAt is IsLockExpired evaluated at now.
func IsLockExpiredAt(timestamp string, hours int, now time.Time) bool {
	lockedAt, ok := model.ParseLockTimestamp(timestamp)
	if !ok {
		return true
	}
	return now.Sub(lockedAt) > time.Duration(hours)*time.Hour
}
