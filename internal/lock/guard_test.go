package lock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harupipipipi/mcmultidrive/internal/lock"
	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
)

func TestGuard_AcquireRelease(t *testing.T) {
	g := lock.NewGuard(t.TempDir())

	held, err := g.Acquire("Test", "Bob")
	require.NoError(t, err)
	assert.Equal(t, "Test", held.Record.World)
	assert.Equal(t, "Bob", held.Record.Identity)
	assert.NotZero(t, held.Record.PID)

	require.NoError(t, held.Release())
	require.NoError(t, held.Release())

	again, err := g.Acquire("Test", "Bob")
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestGuard_SecondAcquireFails(t *testing.T) {
	dir := t.TempDir()
	held, err := lock.NewGuard(dir).Acquire("Test", "Bob")
	require.NoError(t, err)
	defer held.Release()

	// A separate Guard opens its own descriptor, as another process would.
	_, err = lock.NewGuard(dir).Acquire("Test", "Bob")
	require.Error(t, err)
	assert.ErrorIs(t, err, errclass.ErrAlreadyRunning)
	assert.Contains(t, err.Error(), "Test")
}

func TestGuard_WorldsAreIndependent(t *testing.T) {
	dir := t.TempDir()
	a, err := lock.NewGuard(dir).Acquire("Alpha", "Bob")
	require.NoError(t, err)
	defer a.Release()

	b, err := lock.NewGuard(dir).Acquire("Beta", "Bob")
	require.NoError(t, err)
	require.NoError(t, b.Release())
}

func TestGuard_Inspect(t *testing.T) {
	dir := t.TempDir()
	g := lock.NewGuard(dir)

	_, ok := g.Inspect("Test")
	assert.False(t, ok)

	held, err := g.Acquire("Test", "Bob")
	require.NoError(t, err)

	rec, ok := lock.NewGuard(dir).Inspect("Test")
	require.True(t, ok)
	assert.Equal(t, "Bob", rec.Identity)

	require.NoError(t, held.Release())
	_, ok = g.Inspect("Test")
	assert.False(t, ok)
}

func TestGuard_RejectsBadName(t *testing.T) {
	_, err := lock.NewGuard(t.TempDir()).Acquire("../evil", "Bob")
	assert.ErrorIs(t, err, errclass.ErrNameInvalid)
}
