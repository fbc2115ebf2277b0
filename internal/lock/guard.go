// Package lock keeps two hosting sessions for the same world from running
// on one machine. The remote status row is the cross-machine lock; this
// guard only covers processes sharing a config directory.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
	"github.com/harupipipipi/mcmultidrive/pkg/fsutil"
	"github.com/harupipipipi/mcmultidrive/pkg/pathutil"
)

// Record describes the process holding a guard.
type Record struct {
	World     string    `json:"world"`
	Identity  string    `json:"identity"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// Guard hands out per-world host locks under dir.
type Guard struct {
	dir string
}

// NewGuard creates a guard storing its lock files in dir.
func NewGuard(dir string) *Guard {
	return &Guard{dir: dir}
}

// Held is an acquired guard. Release it when the session ends.
type Held struct {
	Record Record

	fl         *flock.Flock
	recordPath string
}

func (g *Guard) lockPath(world string) string {
	return filepath.Join(g.dir, world+".lock")
}

func (g *Guard) recordPath(world string) string {
	return filepath.Join(g.dir, world+".session.json")
}

// Acquire takes the guard for world without blocking. It fails with
// ErrAlreadyRunning when another process on this machine holds it.
func (g *Guard) Acquire(world, identity string) (*Held, error) {
	if err := pathutil.ValidateWorldName(world); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	fl := flock.New(g.lockPath(world))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", world, err)
	}
	if !locked {
		msg := fmt.Sprintf("a session for %s is already running on this machine", world)
		if rec, ok := g.Inspect(world); ok {
			msg = fmt.Sprintf("%s (pid %d, since %s)", msg, rec.PID, rec.StartedAt.Local().Format(time.DateTime))
		}
		return nil, errclass.ErrAlreadyRunning.WithMessage(msg)
	}

	rec := Record{
		World:     world,
		Identity:  identity,
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("marshal lock record: %w", err)
	}
	if err := fsutil.AtomicWrite(g.recordPath(world), data, 0644); err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("write lock record: %w", err)
	}

	return &Held{Record: rec, fl: fl, recordPath: g.recordPath(world)}, nil
}

// Inspect reads the record of a currently held guard. ok is false when the
// guard is free or its record is unreadable.
func (g *Guard) Inspect(world string) (Record, bool) {
	fl := flock.New(g.lockPath(world))
	locked, err := fl.TryLock()
	if err == nil && locked {
		fl.Unlock()
		return Record{}, false
	}

	data, err := os.ReadFile(g.recordPath(world))
	if err != nil {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}

// Release frees the guard. Calling it twice is harmless.
func (h *Held) Release() error {
	if h == nil || h.fl == nil {
		return nil
	}
	if err := os.Remove(h.recordPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.fl.Unlock()
		h.fl = nil
		return fmt.Errorf("remove lock record: %w", err)
	}
	err := h.fl.Unlock()
	h.fl = nil
	return err
}
