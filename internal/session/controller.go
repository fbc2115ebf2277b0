// Package session runs one hosting session for one world: check the
// status sheet, take the lock, pull the world, wait for the game to
// publish its address, keep the remote copy fresh while the game runs,
// then push the world back and release the lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harupipipipi/mcmultidrive/internal/procwatch"
	"github.com/harupipipipi/mcmultidrive/internal/statusstore"
	"github.com/harupipipipi/mcmultidrive/internal/upkeep"
	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
	"github.com/harupipipipi/mcmultidrive/pkg/logging"
	"github.com/harupipipipi/mcmultidrive/pkg/model"
)

// StaleDecision is asked whether to force-release a lock that outlived the
// configured timeout. Returning false ends the session with a stale lock
// outcome.
type StaleDecision func(holder string, lockedAt time.Time) bool

// Controller drives sessions for one world and identity. Run may be
// called again after it returns, for instance after a force release.
type Controller struct {
	cfg     Settings
	store   StatusStore
	sync    DataSync
	fixer   SaveFixer
	procs   ProcessWatcher
	watcher AddressWatcher
	manual  ManualSource
	decide  StaleDecision
	mirror  func(address string)
	clock   upkeep.Clock

	handlers []Handler
	log      *logging.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithManualSource enables the manual address override.
func WithManualSource(m ManualSource) Option {
	return func(c *Controller) { c.manual = m }
}

// WithStaleDecision lets the session force-release a stale lock when fn
// agrees.
func WithStaleDecision(fn StaleDecision) Option {
	return func(c *Controller) { c.decide = fn }
}

// WithAddressMirror receives the resolved address for local surfaces such
// as the clipboard.
func WithAddressMirror(fn func(address string)) Option {
	return func(c *Controller) { c.mirror = fn }
}

// WithHandler subscribes to session events.
func WithHandler(h Handler) Option {
	return func(c *Controller) { c.handlers = append(c.handlers, h) }
}

// WithClock replaces the wall clock for process polling and upkeep.
func WithClock(clock upkeep.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// New creates a Controller.
func New(cfg Settings, store StatusStore, sync DataSync, fixer SaveFixer, procs ProcessWatcher, watcher AddressWatcher, opts ...Option) *Controller {
	c := &Controller{
		cfg:     cfg,
		store:   store,
		sync:    sync,
		fixer:   fixer,
		procs:   procs,
		watcher: watcher,
		clock:   upkeep.RealClock,
		log:     logging.Global(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run holds the state of one Run call. Only the controller goroutine
// touches it.
type run struct {
	s   *model.Session
	out *model.Outcome
	log *logging.Logger
}

// Run executes one session and returns its outcome. Run never panics and
// never returns with the lock held unless the release call itself failed,
// which the outcome reports.
func (c *Controller) Run(ctx context.Context) *model.Outcome {
	s := &model.Session{
		ID:        uuid.NewString(),
		World:     c.cfg.World,
		Identity:  c.cfg.Identity,
		StartedAt: c.clock.Now().UTC(),
		State:     model.StateIdle,
	}
	r := &run{
		s:   s,
		out: &model.Outcome{SessionID: s.ID, World: s.World},
		log: c.log.WithFields(map[string]any{"session": s.ID, "world": s.World}),
	}

	func() {
		defer func() {
			if p := recover(); p != nil {
				c.fault(ctx, r, errclass.ErrInternal.WithMessagef("panic: %v", p))
			}
		}()
		c.run(ctx, r)
	}()

	r.out.State = s.State
	r.out.Address = s.Address
	r.out.Autosaves = s.Autosaves
	if r.out.Err != nil && r.out.Error == "" {
		r.out.Error = r.out.Err.Error()
	}
	c.emit(r, Event{Kind: EventSessionDone, Success: r.out.Success(), Message: r.out.Summary(), Outcome: r.out})
	return r.out
}

func (c *Controller) run(ctx context.Context, r *run) {
	c.transition(r, model.StateCheckingStatus)
	world, err := c.store.Read(ctx, c.cfg.World)
	if err != nil {
		c.abort(r, err)
		return
	}

	if world.IsOnline() {
		if !statusstore.IsLockExpiredAt(world.LockTimestamp, c.cfg.LockTimeoutHours, c.clock.Now()) {
			r.out.Kind = model.OutcomeAlreadyHosted
			r.out.Holder = world.Holder
			if world.Holder == c.cfg.Identity {
				r.out.AddNote("the lock is yours from an earlier run; use force-release if that session is gone")
			}
			c.say(r, logging.LevelInfo, "world is already hosted", map[string]any{"holder": world.Holder})
			c.transition(r, model.StateAborted)
			return
		}

		lockedAt, _ := world.LockedAt()
		c.emit(r, Event{Kind: EventLockStale, Holder: world.Holder, LockedAt: world.LockTimestamp})
		c.say(r, logging.LevelWarn, "lock is past its timeout", map[string]any{
			"holder":    world.Holder,
			"locked_at": world.LockTimestamp,
		})
		if c.decide == nil || !c.decide(world.Holder, lockedAt) {
			r.out.Kind = model.OutcomeStaleLock
			r.out.Holder = world.Holder
			r.out.LockedAt = lockedAt
			c.transition(r, model.StateAborted)
			return
		}
		if err := c.ForceRelease(ctx); err != nil {
			c.abort(r, err)
			return
		}
	}

	c.transition(r, model.StateAcquiringLock)
	res, err := c.store.Acquire(ctx, c.cfg.World, c.cfg.Identity)
	if err != nil {
		c.releaseIfMine(ctx, r)
		c.abort(r, err)
		return
	}
	if !res.Acquired {
		r.out.Kind = model.OutcomeConflict
		r.out.Holder = res.Holder
		c.say(r, logging.LevelWarn, "lock taken by someone else", map[string]any{"holder": res.Holder})
		c.transition(r, model.StateAborted)
		return
	}
	c.say(r, logging.LevelInfo, "lock acquired", nil)

	c.transition(r, model.StateSyncing)
	exists, err := c.sync.Exists(ctx, c.cfg.World)
	if err != nil {
		c.fault(ctx, r, err)
		return
	}
	if exists {
		if err := c.sync.Pull(ctx, c.cfg.World, c.cfg.WorldDir); err != nil {
			c.fault(ctx, r, err)
			return
		}
		c.say(r, logging.LevelInfo, "world downloaded", map[string]any{"to": c.cfg.WorldDir})
	} else {
		c.say(r, logging.LevelInfo, "no remote data, starting a new world", nil)
	}

	c.transition(r, model.StateAwaitingReadiness)
	if fix, err := c.fixer.FixLevelDat(c.cfg.WorldDir); err != nil {
		r.out.AddNote("level.dat fixup failed: %v", err)
		c.say(r, logging.LevelWarn, "level.dat fixup failed", map[string]any{"error": err.Error()})
	} else if fix.Removed {
		c.say(r, logging.LevelInfo, "stale player data removed from level.dat", nil)
	}

	c.transition(r, model.StateDiscoveringAddress)
	if addr, source, ok := c.discoverAddress(ctx, r); ok {
		r.s.Address = addr
		if err := c.store.PublishAddress(ctx, c.cfg.World, addr); err != nil {
			r.out.Degraded = true
			r.out.AddNote("address %s could not be published: %v", addr, err)
			c.say(r, logging.LevelWarn, "address publish failed", map[string]any{"error": err.Error()})
		}
		if c.mirror != nil {
			c.mirror(addr)
		}
		c.emit(r, Event{Kind: EventAddressResolved, Address: addr, Source: source})
	} else {
		r.out.Degraded = true
		r.out.AddNote("no address was detected; share it by hand and verify the upload afterwards")
		c.say(r, logging.LevelWarn, "address discovery timed out", nil)
	}

	c.transition(r, model.StateActiveUpkeep)
	c.activeUpkeep(ctx, r)

	c.finish(ctx, r)
}

// discoverAddress races the log watcher against the manual override. The
// first address delivered wins; the other source is cancelled and its
// result, if any, dropped.
func (c *Controller) discoverAddress(ctx context.Context, r *run) (addr, source string, ok bool) {
	type candidate struct {
		addr   string
		ok     bool
		source string
	}

	phase, cancel := context.WithCancel(ctx)
	defer cancel()

	handoff := make(chan candidate, 2)
	pending := 1
	go func() {
		a, found := c.watcher.Watch(phase, c.cfg.LogPath, c.cfg.Timings.WatchTimeout.Std())
		handoff <- candidate{a, found, "watcher"}
	}()
	if c.manual != nil {
		pending++
		go func() {
			mctx, mcancel := context.WithTimeout(phase, c.cfg.Timings.ManualOverride.Std())
			defer mcancel()
			a, got := c.manual.Await(mctx)
			handoff <- candidate{a, got && a != "", "manual"}
		}()
	}

	c.say(r, logging.LevelInfo, "waiting for the world to be opened to LAN", map[string]any{
		"log":     c.cfg.LogPath,
		"timeout": c.cfg.Timings.WatchTimeout.Std().String(),
	})
	for ; pending > 0; pending-- {
		cand := <-handoff
		if cand.ok {
			c.say(r, logging.LevelInfo, "address resolved", map[string]any{"address": cand.addr, "source": cand.source})
			return cand.addr, cand.source, true
		}
	}
	return "", "", false
}

// activeUpkeep waits for the game to start, then autosaves until it exits.
func (c *Controller) activeUpkeep(ctx context.Context, r *run) {
	t := c.cfg.Timings
	handle := c.waitForProcess(ctx, t.ProcessStartWait.Std(), t.ProcessPoll.Std())
	if handle == nil {
		r.out.Degraded = true
		r.out.AddNote("the game process was never seen; autosave was skipped")
		c.say(r, logging.LevelWarn, "game process not found", map[string]any{
			"error": errclass.ErrProcessNotFound.WithMessagef("no client within %s", t.ProcessStartWait.Std()).Error(),
		})
		return
	}
	c.say(r, logging.LevelInfo, "game running, waiting for it to exit", map[string]any{"pid": handle.PID})

	sched := upkeep.New(upkeep.WithClock(c.clock), upkeep.WithPoll(t.UpkeepPoll.Std()), upkeep.WithLogger(r.log))
	autosave := func(ctx context.Context) error {
		if err := c.sync.Push(ctx, c.cfg.World, c.cfg.WorldDir); err != nil {
			return err
		}
		r.s.Autosaves++
		r.s.LastAutosaveAt = c.clock.Now().UTC()
		c.say(r, logging.LevelInfo, "autosave uploaded", map[string]any{"count": r.s.Autosaves})
		return nil
	}
	alive := func() bool { return c.procs.IsAlive(ctx, handle) }

	res := sched.Run(ctx, autosave, t.AutosaveInterval.Std(), alive)
	if res.Failed > 0 {
		r.out.AddNote("%d of %d autosaves failed", res.Failed, res.Fired)
	}

	c.say(r, logging.LevelInfo, "game exited, letting files settle", map[string]any{"settle": t.ExitSettle.Std().String()})
	c.sleep(ctx, t.ExitSettle.Std())
}

func (c *Controller) waitForProcess(ctx context.Context, wait, poll time.Duration) *procwatch.Handle {
	deadline := c.clock.Now().Add(wait)
	for {
		if h, ok := c.procs.Find(ctx); ok {
			return h
		}
		if !c.clock.Now().Before(deadline) {
			return nil
		}
		if !c.sleep(ctx, poll) {
			return nil
		}
	}
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(d):
		return true
	}
}

// finish snapshots, pushes and releases. It runs detached from ctx
// cancellation so an interrupted session still hands the world back.
func (c *Controller) finish(ctx context.Context, r *run) {
	ctx = context.WithoutCancel(ctx)
	c.transition(r, model.StateFinishingUp)

	if name, err := c.sync.Backup(ctx, c.cfg.World, c.cfg.BackupGenerations); err != nil {
		r.out.AddNote("snapshot failed: %v", err)
		c.say(r, logging.LevelWarn, "snapshot failed", map[string]any{"error": err.Error()})
	} else {
		c.say(r, logging.LevelInfo, "snapshot created", map[string]any{"snapshot": name})
	}

	if err := c.sync.Push(ctx, c.cfg.World, c.cfg.WorldDir); err != nil {
		r.out.ManualUploadRequired = true
		r.out.AddNote("final upload failed, upload manually: %v", err)
		c.say(r, logging.LevelError, "final upload failed", map[string]any{"error": err.Error()})
	} else {
		c.say(r, logging.LevelInfo, "world uploaded", nil)
	}

	if err := c.store.Release(ctx, c.cfg.World); err != nil {
		r.out.ReleaseFailed = true
		r.out.AddNote("release failed, run force-release: %v", err)
		c.say(r, logging.LevelError, "lock release failed", map[string]any{"error": err.Error()})
	} else {
		c.say(r, logging.LevelInfo, "lock released", nil)
	}

	r.out.Kind = model.OutcomeCompleted
	c.transition(r, model.StateReleased)
}

// ForceRelease clears the lock regardless of who holds it. The previous
// holder is not asked whether it stopped writing.
func (c *Controller) ForceRelease(ctx context.Context) error {
	c.log.Warn("force releasing lock", map[string]any{"world": c.cfg.World, "by": c.cfg.Identity})
	if err := c.store.Release(ctx, c.cfg.World); err != nil {
		return fmt.Errorf("force release: %w", err)
	}
	return nil
}

// releaseIfMine clears a lock whose acquisition outcome is unknown, but
// only when the store shows this identity as the holder.
func (c *Controller) releaseIfMine(ctx context.Context, r *run) {
	ctx = context.WithoutCancel(ctx)
	w, err := c.store.Read(ctx, c.cfg.World)
	if err != nil || !w.IsOnline() || w.Holder != c.cfg.Identity {
		return
	}
	if err := c.store.Release(ctx, c.cfg.World); err != nil {
		r.out.ReleaseFailed = true
		c.say(r, logging.LevelError, "lock release failed", map[string]any{"error": err.Error()})
	}
}

// fault ends a session that may hold the lock: best-effort release, then
// Aborted. A failed release is reported, not retried.
func (c *Controller) fault(ctx context.Context, r *run, err error) {
	c.say(r, logging.LevelError, "session failed", map[string]any{"state": string(r.s.State), "error": err.Error()})
	switch {
	case r.s.State.HoldsLock():
		if rerr := c.store.Release(context.WithoutCancel(ctx), c.cfg.World); rerr != nil {
			r.out.ReleaseFailed = true
			c.say(r, logging.LevelError, "lock release failed", map[string]any{"error": rerr.Error()})
		} else {
			c.say(r, logging.LevelInfo, "lock released after failure", nil)
		}
	case r.s.State == model.StateAcquiringLock:
		c.releaseIfMine(ctx, r)
	}
	c.abort(r, err)
}

func (c *Controller) abort(r *run, err error) {
	r.out.Kind = model.OutcomeAborted
	r.out.Err = err
	r.out.Error = err.Error()
	if errors.Is(err, errclass.ErrTransport) {
		r.out.AddNote("the status endpoint could not be reached; nothing was changed remotely")
	}
	c.transition(r, model.StateAborted)
}

func (c *Controller) transition(r *run, to model.State) {
	from := r.s.State
	if from == to {
		return
	}
	r.s.State = to
	r.log.Debug("state", map[string]any{"from": string(from), "to": string(to)})
	c.emit(r, Event{Kind: EventStateChanged, From: from, To: to})
}

// say logs a line and mirrors it to subscribers.
func (c *Controller) say(r *run, level logging.Level, msg string, fields map[string]any) {
	if fields == nil {
		r.log.Log(level, msg)
	} else {
		r.log.Log(level, msg, fields)
	}
	c.emit(r, Event{Kind: EventLog, Level: level, Message: msg, Fields: fields})
}

func (c *Controller) emit(r *run, e Event) {
	e.Time = c.clock.Now().UTC()
	e.SessionID = r.s.ID
	e.World = r.s.World
	for _, h := range c.handlers {
		h(e)
	}
}
