// Package rclone moves world data between the local saves folder and the
// shared drive by driving the rclone binary.
//
// Remote layout:
//
//	<remote>:worlds/<world>                     live copy
//	<remote>:backups/<world>/<YYYY-MM-DD_HHMMSS> snapshots
//	<remote>:backups/<world>_archived_<stamp>   archived worlds
package rclone

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
	"github.com/harupipipipi/mcmultidrive/pkg/logging"
	"github.com/harupipipipi/mcmultidrive/pkg/progress"
)

// SnapshotLayout names snapshot directories; lexical order is time order.
const SnapshotLayout = "2006-01-02_150405"

const listTimeout = 30 * time.Second

// exitDirNotFound is rclone's exit status for a missing directory.
const exitDirNotFound = 3

// Options locates the remote.
type Options struct {
	Binary        string
	ConfigPath    string
	RemoteName    string
	DriveFolderID string
}

// Remote is the drive as seen through rclone.
type Remote struct {
	opts     Options
	runner   Runner
	now      func() time.Time
	log      *logging.Logger
	progress progress.Callback
}

// Option configures a Remote.
type Option func(*Remote)

// WithRunner replaces the exec based runner.
func WithRunner(r Runner) Option {
	return func(rm *Remote) { rm.runner = r }
}

// WithNow replaces the clock used for snapshot names.
func WithNow(now func() time.Time) Option {
	return func(rm *Remote) { rm.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(rm *Remote) { rm.log = l }
}

// WithProgress reports sync and copy progress in percent. It takes effect
// when the runner is a StreamRunner.
func WithProgress(cb progress.Callback) Option {
	return func(rm *Remote) { rm.progress = cb }
}

// New creates a Remote.
func New(opts Options, options ...Option) *Remote {
	if opts.Binary == "" {
		opts.Binary = "rclone"
	}
	r := &Remote{opts: opts, now: time.Now, log: logging.Global()}
	for _, o := range options {
		o(r)
	}
	if r.runner == nil {
		r.runner = &ExecRunner{Binary: opts.Binary, Log: r.log}
	}
	return r
}

// Runner returns the runner in use.
func (r *Remote) Runner() Runner { return r.runner }

// WorldPath is the live copy of world.
func (r *Remote) WorldPath(world string) string {
	return r.opts.RemoteName + ":worlds/" + world
}

// SnapshotDir holds the snapshots of world.
func (r *Remote) SnapshotDir(world string) string {
	return r.opts.RemoteName + ":backups/" + world
}

func (r *Remote) withRemoteFlags(args []string) []string {
	if r.opts.ConfigPath != "" {
		args = append(args, "--config", r.opts.ConfigPath)
	}
	if r.opts.DriveFolderID != "" {
		args = append(args, "--drive-root-folder-id", r.opts.DriveFolderID)
	}
	return args
}

func (r *Remote) run(ctx context.Context, args ...string) ([]byte, error) {
	return r.runner.Run(ctx, r.withRemoteFlags(args)...)
}

// transfer runs a sync or copy, streaming its stats to the progress
// callback under label when both sides support it.
func (r *Remote) transfer(ctx context.Context, command, label, src, dst string) error {
	stream, ok := r.runner.(StreamRunner)
	if r.progress == nil || !ok {
		_, err := r.run(ctx, command, src, dst)
		return err
	}
	p := progress.New(label, 100, r.progress)
	args := r.withRemoteFlags(append([]string{command, src, dst}, statsFlags...))
	_, err := stream.RunStream(ctx, func(line string) {
		if s, ok := ParseStats(line); ok {
			p.Set(max(s.Percent, 0), s.String())
			return
		}
		r.log.Debug("rclone", map[string]any{"line": line})
	}, args...)
	if err != nil {
		return err
	}
	p.Done("done")
	return nil
}

// Sync makes dst identical to src.
func (r *Remote) Sync(ctx context.Context, src, dst string) error {
	return r.sync(ctx, "sync", src, dst)
}

func (r *Remote) sync(ctx context.Context, label, src, dst string) error {
	if err := r.transfer(ctx, "sync", label, src, dst); err != nil {
		return errclass.ErrDataSync.WithMessagef("sync %s -> %s: %v", src, dst, err)
	}
	return nil
}

// Copy copies src into dst without deleting extra files in dst.
func (r *Remote) Copy(ctx context.Context, src, dst string) error {
	return r.copy(ctx, "copy", src, dst)
}

func (r *Remote) copy(ctx context.Context, label, src, dst string) error {
	if err := r.transfer(ctx, "copy", label, src, dst); err != nil {
		return errclass.ErrDataSync.WithMessagef("copy %s -> %s: %v", src, dst, err)
	}
	return nil
}

// Purge removes path and everything below it.
func (r *Remote) Purge(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*listTimeout)
	defer cancel()
	if _, err := r.run(ctx, "purge", path); err != nil {
		return errclass.ErrDataSync.WithMessagef("purge %s: %v", path, err)
	}
	return nil
}

// ListDirs lists the immediate subdirectories of path.
func (r *Remote) ListDirs(ctx context.Context, path string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	out, err := r.run(ctx, "lsf", path, "--dirs-only", "--max-depth", "1")
	if err != nil {
		return nil, errclass.ErrDataSync.WithMessagef("list %s: %v", path, err)
	}
	var dirs []string
	for _, line := range strings.Split(string(out), "\n") {
		if name := strings.TrimSuffix(strings.TrimSpace(line), "/"); name != "" {
			dirs = append(dirs, name)
		}
	}
	return dirs, nil
}

// Exists reports whether the remote holds any data for world. rclone's
// "directory not found" exit status means no data; any other failure is
// returned so a flaky listing is never mistaken for a fresh world.
func (r *Remote) Exists(ctx context.Context, world string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	out, err := r.run(ctx, "lsf", r.WorldPath(world), "--max-depth", "1")
	if err != nil {
		var exit interface{ ExitCode() int }
		if errors.As(err, &exit) && exit.ExitCode() == exitDirNotFound {
			return false, nil
		}
		return false, errclass.ErrDataSync.WithMessagef("list %s: %v", r.WorldPath(world), err)
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// Pull replaces localDir with the remote copy of world.
func (r *Remote) Pull(ctx context.Context, world, localDir string) error {
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return errclass.ErrDataSync.WithMessagef("create %s: %v", localDir, err)
	}
	r.log.Info("downloading world", map[string]any{"world": world, "to": localDir})
	return r.sync(ctx, "download", r.WorldPath(world), localDir)
}

// Push replaces the remote copy of world with localDir.
func (r *Remote) Push(ctx context.Context, world, localDir string) error {
	info, err := os.Stat(localDir)
	if err != nil || !info.IsDir() {
		return errclass.ErrDataSync.WithMessagef("world folder not found: %s", localDir)
	}
	r.log.Info("uploading world", map[string]any{"world": world, "from": localDir})
	return r.sync(ctx, "upload", localDir, r.WorldPath(world))
}

// Snapshot copies the remote copy of world into a new timestamped
// snapshot directory and returns its name.
func (r *Remote) Snapshot(ctx context.Context, world string) (string, error) {
	name := r.now().UTC().Format(SnapshotLayout)
	dst := r.SnapshotDir(world) + "/" + name
	r.log.Info("creating snapshot", map[string]any{"world": world, "snapshot": name})
	if err := r.copy(ctx, "snapshot", r.WorldPath(world), dst); err != nil {
		return "", err
	}
	return name, nil
}

// PrunePlan lists what a prune keeps and deletes.
type PrunePlan struct {
	Keep   []string `json:"keep"`
	Delete []string `json:"delete"`
	// Ignored holds directories that are not snapshot names.
	Ignored []string `json:"ignored,omitempty"`
}

// PlanPrune keeps the newest keep snapshots among names.
func PlanPrune(names []string, keep int) PrunePlan {
	var plan PrunePlan
	var snaps []string
	for _, n := range names {
		if _, err := time.Parse(SnapshotLayout, n); err != nil {
			plan.Ignored = append(plan.Ignored, n)
			continue
		}
		snaps = append(snaps, n)
	}
	sort.Strings(snaps)

	if keep < 0 {
		keep = 0
	}
	cut := len(snaps) - keep
	if cut < 0 {
		cut = 0
	}
	plan.Delete = snaps[:cut]
	plan.Keep = snaps[cut:]
	return plan
}

// Prune deletes all but the newest keep snapshots of world. Individual
// purge failures are logged and skipped.
func (r *Remote) Prune(ctx context.Context, world string, keep int) (PrunePlan, error) {
	names, err := r.ListDirs(ctx, r.SnapshotDir(world))
	if err != nil {
		return PrunePlan{}, err
	}
	plan := PlanPrune(names, keep)

	var failed []string
	for _, name := range plan.Delete {
		r.log.Info("deleting old snapshot", map[string]any{"world": world, "snapshot": name})
		if err := r.Purge(ctx, r.SnapshotDir(world)+"/"+name); err != nil {
			r.log.ErrorErr("snapshot purge failed", err, map[string]any{"world": world, "snapshot": name})
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		return plan, errclass.ErrDataSync.WithMessagef("could not delete %d snapshot(s): %s", len(failed), strings.Join(failed, ", "))
	}
	return plan, nil
}

// Backup takes a snapshot of world and prunes to keep generations. A
// prune failure does not fail the backup.
func (r *Remote) Backup(ctx context.Context, world string, keep int) (string, error) {
	name, err := r.Snapshot(ctx, world)
	if err != nil {
		return "", err
	}
	if _, err := r.Prune(ctx, world, keep); err != nil {
		r.log.Warn("snapshot cleanup incomplete", map[string]any{"world": world, "error": err.Error()})
	}
	return name, nil
}

// Archive copies the remote copy of world to an archive directory, then
// purges the original. It returns the archive path.
func (r *Remote) Archive(ctx context.Context, world string) (string, error) {
	stamp := r.now().UTC().Format(SnapshotLayout)
	dst := fmt.Sprintf("%s:backups/%s_archived_%s", r.opts.RemoteName, world, stamp)
	r.log.Info("archiving world", map[string]any{"world": world, "to": dst})

	if err := r.copy(ctx, "archive", r.WorldPath(world), dst); err != nil {
		return "", err
	}
	if err := r.Purge(ctx, r.WorldPath(world)); err != nil {
		return dst, errclass.ErrDataSync.WithMessagef("archive created at %s but original was not removed: %v", dst, err)
	}
	return dst, nil
}
