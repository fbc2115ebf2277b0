package session

import (
	"context"
	"time"

	"github.com/harupipipipi/mcmultidrive/internal/procwatch"
	"github.com/harupipipipi/mcmultidrive/internal/savefix"
	"github.com/harupipipipi/mcmultidrive/internal/statusstore"
	"github.com/harupipipipi/mcmultidrive/pkg/config"
	"github.com/harupipipipi/mcmultidrive/pkg/model"
)

// StatusStore is the part of the status API a session uses.
type StatusStore interface {
	Read(ctx context.Context, name string) (*model.World, error)
	Acquire(ctx context.Context, name, identity string) (statusstore.AcquireResult, error)
	PublishAddress(ctx context.Context, name, address string) error
	Release(ctx context.Context, name string) error
}

// DataSync moves world data between the saves folder and the drive.
type DataSync interface {
	Exists(ctx context.Context, world string) (bool, error)
	Pull(ctx context.Context, world, localDir string) error
	Push(ctx context.Context, world, localDir string) error
	// Backup snapshots the remote copy and prunes old snapshots.
	Backup(ctx context.Context, world string, keep int) (string, error)
}

// SaveFixer prepares the local world before it is opened.
type SaveFixer interface {
	FixLevelDat(worldDir string) (savefix.FixResult, error)
}

// ProcessWatcher observes the hosted game process.
type ProcessWatcher interface {
	Find(ctx context.Context) (*procwatch.Handle, bool)
	IsAlive(ctx context.Context, h *procwatch.Handle) bool
}

// AddressWatcher finds the published address in the game log.
type AddressWatcher interface {
	Watch(ctx context.Context, path string, timeout time.Duration) (string, bool)
}

// ManualSource supplies an address typed in by a person. Await returns
// when an address arrives or ctx is done.
type ManualSource interface {
	Await(ctx context.Context) (string, bool)
}

// Settings is the immutable configuration of one session.
type Settings struct {
	World             string
	Identity          string
	WorldDir          string
	LogPath           string
	BackupGenerations int
	LockTimeoutHours  int
	Timings           config.Timings
}

// SettingsFrom derives session settings from a merged world config.
func SettingsFrom(wc *config.WorldConfig) Settings {
	return Settings{
		World:             wc.World,
		Identity:          wc.Identity,
		WorldDir:          wc.WorldDir(),
		LogPath:           wc.LogPath(),
		BackupGenerations: wc.BackupGenerations,
		LockTimeoutHours:  wc.LockTimeoutHours,
		Timings:           wc.Timings,
	}
}
