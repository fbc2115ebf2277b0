// Package world implements the operations on a shared world that do not
// run a hosting session: registering, listing, joining, manual transfers
// and archival.
package world

import (
	"context"
	"fmt"

	"github.com/harupipipipi/mcmultidrive/internal/savefix"
	"github.com/harupipipipi/mcmultidrive/internal/statusstore"
	"github.com/harupipipipi/mcmultidrive/pkg/config"
	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
	"github.com/harupipipipi/mcmultidrive/pkg/fsutil"
	"github.com/harupipipipi/mcmultidrive/pkg/logging"
	"github.com/harupipipipi/mcmultidrive/pkg/model"
	"github.com/harupipipipi/mcmultidrive/pkg/pathutil"
)

// Store is the part of the status API these operations use.
type Store interface {
	List(ctx context.Context) ([]model.World, error)
	Read(ctx context.Context, name string) (*model.World, error)
	Register(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
}

// Remote is the drive side.
type Remote interface {
	Exists(ctx context.Context, world string) (bool, error)
	Pull(ctx context.Context, world, localDir string) error
	Push(ctx context.Context, world, localDir string) error
	Backup(ctx context.Context, world string, keep int) (string, error)
	Archive(ctx context.Context, world string) (string, error)
}

// ConnectWriter adds a server entry to the game's server list.
type ConnectWriter interface {
	PublishConnectEntry(serversFile, address, label string) error
}

var _ Store = (*statusstore.Client)(nil)

// Service bundles the collaborators.
type Service struct {
	store   Store
	remote  Remote
	connect ConnectWriter
	label   string
	log     *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithConnectLabel names the server list entry written by Join.
func WithConnectLabel(label string) Option {
	return func(s *Service) { s.label = label }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New creates a Service. remote and connect may be nil for callers that
// only touch the status store.
func New(store Store, remote Remote, connect ConnectWriter, opts ...Option) *Service {
	s := &Service{
		store:   store,
		remote:  remote,
		connect: connect,
		label:   savefix.DefaultLabel,
		log:     logging.Global(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every registered world.
func (s *Service) List(ctx context.Context) ([]model.World, error) {
	return s.store.List(ctx)
}

// Status returns one world's row.
func (s *Service) Status(ctx context.Context, name string) (*model.World, error) {
	if err := pathutil.ValidateWorldName(name); err != nil {
		return nil, err
	}
	return s.store.Read(ctx, name)
}

// Register adds a world under its normalized name and returns that name.
func (s *Service) Register(ctx context.Context, name string) (string, error) {
	norm, err := pathutil.NormalizeWorldName(name)
	if err != nil {
		return "", err
	}
	if err := s.store.Register(ctx, norm); err != nil {
		return "", err
	}
	s.log.Info("world registered", map[string]any{"world": norm})
	return norm, nil
}

// JoinInfo describes a joinable session.
type JoinInfo struct {
	World   string `json:"world"`
	Holder  string `json:"host"`
	Address string `json:"address"`
	// ServersFile is the server list that received the entry.
	ServersFile string `json:"servers_file"`
}

// Join looks up the current host and adds its address to the local server
// list. It fails with ErrNotHosted when nobody hosts the world and with
// ErrAddressPending while the host is still starting.
func (s *Service) Join(ctx context.Context, wc *config.WorldConfig) (*JoinInfo, error) {
	w, err := s.store.Read(ctx, wc.World)
	if err != nil {
		return nil, err
	}
	if !w.IsOnline() {
		return nil, errclass.ErrNotHosted.WithMessagef("nobody is hosting %s right now", wc.World)
	}
	if !w.HasAddress() {
		return nil, errclass.ErrAddressPending.WithMessagef("%s is still preparing %s, try again shortly", w.Holder, wc.World)
	}

	info := &JoinInfo{World: wc.World, Holder: w.Holder, Address: w.Address}
	if s.connect != nil {
		info.ServersFile = wc.ServersFile()
		if err := s.connect.PublishConnectEntry(info.ServersFile, w.Address, s.label); err != nil {
			return info, fmt.Errorf("update server list: %w", err)
		}
	}
	s.log.Info("join prepared", map[string]any{"world": wc.World, "host": w.Holder, "address": w.Address})
	return info, nil
}

// Upload snapshots the remote copy and then replaces it with the local
// world. It refuses while someone else holds the world, since their
// session would overwrite the upload.
func (s *Service) Upload(ctx context.Context, wc *config.WorldConfig) (snapshot string, err error) {
	if err := s.refuseForeignHost(ctx, wc); err != nil {
		return "", err
	}
	dir := wc.WorldDir()
	if !fsutil.IsDir(dir) {
		return "", errclass.ErrDataSync.WithMessagef("no local world at %s", dir)
	}

	snapshot, err = s.remote.Backup(ctx, wc.World, wc.BackupGenerations)
	if err != nil {
		s.log.Warn("snapshot before upload failed", map[string]any{"world": wc.World, "error": err.Error()})
		snapshot = ""
	}
	if err := s.remote.Push(ctx, wc.World, dir); err != nil {
		return snapshot, err
	}
	s.log.Info("world uploaded", map[string]any{"world": wc.World, "snapshot": snapshot})
	return snapshot, nil
}

// Download replaces the local world with the remote copy.
func (s *Service) Download(ctx context.Context, wc *config.WorldConfig) error {
	exists, err := s.remote.Exists(ctx, wc.World)
	if err != nil {
		return err
	}
	if !exists {
		return errclass.ErrDataSync.WithMessagef("no remote data for %s", wc.World)
	}
	if err := s.remote.Pull(ctx, wc.World, wc.WorldDir()); err != nil {
		return err
	}
	s.log.Info("world downloaded", map[string]any{"world": wc.World, "to": wc.WorldDir()})
	return nil
}

// Delete archives the remote data and removes the status row. It refuses
// while the world is online. archive is empty when there was no remote
// data to keep.
func (s *Service) Delete(ctx context.Context, name string) (archive string, err error) {
	if err := pathutil.ValidateWorldName(name); err != nil {
		return "", err
	}
	w, err := s.store.Read(ctx, name)
	if err != nil {
		return "", err
	}
	if w.IsOnline() {
		return "", errclass.ErrWorldOnline.WithMessagef("%s is hosted by %s; delete it once the session ends", name, w.Holder)
	}

	exists, err := s.remote.Exists(ctx, name)
	if err != nil {
		return "", err
	}
	if exists {
		if archive, err = s.remote.Archive(ctx, name); err != nil {
			return archive, err
		}
	}
	if err := s.store.Remove(ctx, name); err != nil {
		return archive, err
	}
	s.log.Info("world deleted", map[string]any{"world": name, "archive": archive})
	return archive, nil
}

func (s *Service) refuseForeignHost(ctx context.Context, wc *config.WorldConfig) error {
	w, err := s.store.Read(ctx, wc.World)
	if err != nil {
		return err
	}
	if w.IsOnline() && w.Holder != wc.Identity {
		return errclass.ErrWorldOnline.WithMessagef("%s is hosted by %s", wc.World, w.Holder)
	}
	return nil
}
