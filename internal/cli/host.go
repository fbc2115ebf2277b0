package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harupipipipi/mcmultidrive/internal/savefix"
	"github.com/harupipipipi/mcmultidrive/internal/session"
	"github.com/harupipipipi/mcmultidrive/pkg/color"
	"github.com/harupipipipi/mcmultidrive/pkg/model"
)

func (a *app) hostCmd() *cobra.Command {
	var (
		assumeYes bool
		noManual  bool
	)
	cmd := &cobra.Command{
		Use:   "host <world>",
		Short: "Host a world until the game exits",
		Long: `Host a world.

Takes the lock on the status sheet, downloads the world, waits for you to
open it to LAN so e4mc can publish an address, uploads the world every
autosave interval while the game runs and a final time when it exits,
then releases the lock.

If the address is not detected in the game log you can paste it and
press Enter. Interrupting with Ctrl-C still uploads and releases.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHost(cmd.Context(), args[0], assumeYes, noManual)
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "force release a stale lock without asking")
	cmd.Flags().BoolVar(&noManual, "no-manual", false, "do not read a manually entered address from stdin")
	return cmd
}

func (a *app) runHost(ctx context.Context, name string, assumeYes, noManual bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	wc, err := a.loadWorld(name)
	if err != nil {
		return err
	}

	held, err := a.guard().Acquire(wc.World, wc.Identity)
	if err != nil {
		return err
	}
	defer held.Release()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hooks := a.webhooks(wc.Webhooks)
	defer hooks.Close()

	opts := []session.Option{
		session.WithLogger(a.log),
		session.WithHandler(a.printer()),
		session.WithHandler(webhookBridge(hooks, wc.Identity)),
		session.WithAddressMirror(func(addr string) {
			if a.copyToClipboard(addr) && !a.jsonOutput() {
				a.println(color.Dim("    address copied to the clipboard"))
			}
		}),
		session.WithStaleDecision(func(holder string, lockedAt time.Time) bool {
			if assumeYes {
				return true
			}
			return a.confirm(ctx, fmt.Sprintf("Force release the lock held by %s since %s?", holder, lockedAt.Local().Format(time.DateTime)))
		}),
	}
	if a.deps.Clock != nil {
		opts = append(opts, session.WithClock(a.deps.Clock))
	}
	if !noManual {
		inbox := session.NewInbox()
		opts = append(opts, session.WithManualSource(inbox), session.WithHandler(a.manualPrompt(ctx, inbox)))
	}

	ctrl := session.New(
		session.SettingsFrom(wc),
		a.store(wc.StatusURL, wc.Timings),
		a.deps.Remote(wc, a.log, a.transferProgress()),
		savefix.Editor{Log: a.log},
		a.deps.Procs(a.log),
		a.deps.Watcher(wc, a.log),
		opts...,
	)
	out := ctrl.Run(ctx)

	if _, err := a.journal().RecordOutcome(wc.Identity, out); err != nil {
		a.log.Warn("journal append failed", map[string]any{"error": err.Error()})
	}
	a.printOutcome(out)
	if !out.Success() {
		return &outcomeError{out: out}
	}
	return nil
}

// manualPrompt reads addresses from stdin while the session is waiting
// for one and feeds them to inbox.
func (a *app) manualPrompt(ctx context.Context, inbox *session.Inbox) session.Handler {
	var cancel context.CancelFunc
	return func(e session.Event) {
		if e.Kind != session.EventStateChanged {
			return
		}
		if e.From == model.StateDiscoveringAddress && cancel != nil {
			cancel()
			cancel = nil
			inbox.Drain()
		}
		if e.To != model.StateDiscoveringAddress {
			return
		}
		var phase context.Context
		phase, cancel = context.WithCancel(ctx)
		if !a.jsonOutput() {
			a.println(color.Dim("    Open the world to LAN. If no address shows up, paste it here and press Enter."))
		}
		go func() {
			for {
				line, ok := a.readLine(phase)
				if !ok || inbox.Submit(line) {
					return
				}
			}
		}()
	}
}
