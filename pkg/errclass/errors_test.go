package errclass_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	err := errclass.ErrLockConflict.WithMessage("world Test is hosted by Alice")
	assert.Equal(t, "E_LOCK_CONFLICT: world Test is hosted by Alice", err.Error())
}

func TestError_ErrorWithoutMessage(t *testing.T) {
	assert.Equal(t, "E_TRANSPORT", errclass.ErrTransport.Error())
}

func TestError_Is(t *testing.T) {
	err := errclass.ErrLockStale.WithMessage("specific message")
	require.True(t, errors.Is(err, errclass.ErrLockStale))
	require.False(t, errors.Is(err, errclass.ErrLockConflict))
}

func TestError_IsThroughWrap(t *testing.T) {
	wrapped := fmt.Errorf("pull world: %w", errclass.ErrDataSync.WithMessage("rclone exited 1"))
	assert.ErrorIs(t, wrapped, errclass.ErrDataSync)
}

func TestError_WithMessagefKeepsCode(t *testing.T) {
	err := errclass.ErrTransport.WithMessagef("get_status %s: %d", "Test", 502)
	assert.Equal(t, "E_TRANSPORT", err.Code)
	assert.Equal(t, "get_status Test: 502", err.Message)
	assert.Empty(t, errclass.ErrTransport.Message, "base class must not be mutated")
}

func TestAll_UniqueCodes(t *testing.T) {
	seen := map[string]bool{}
	for _, e := range errclass.All() {
		assert.False(t, seen[e.Code], "duplicate code %s", e.Code)
		seen[e.Code] = true
	}
	assert.Len(t, seen, 16)
}
