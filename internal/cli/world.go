package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harupipipipi/mcmultidrive/pkg/color"
	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
	"github.com/harupipipipi/mcmultidrive/pkg/pathutil"
	"github.com/harupipipipi/mcmultidrive/pkg/webhook"
)

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <world>",
		Short: "Register a new world on the status sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shared, err := a.loadShared()
			if err != nil {
				return err
			}
			name, err := a.sharedService(shared).Register(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.outputJSON(map[string]any{"world": name, "registered": true})
			}
			a.println(color.Successf("Registered %s.", name))
			a.printf("Set where it lives on this machine with `mcmultidrive config set-path %s <instance dir>`.\n", name)
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	var assumeYes bool
	cmd := &cobra.Command{
		Use:   "delete <world>",
		Short: "Archive a world's data and remove it from the status sheet",
		Long: `Archive a world's data and remove it from the status sheet.

The drive copy is moved to backups/<world>_archived_<timestamp> before the
world is removed, so it can be restored by hand. Refuses while the world
is being hosted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := pathutil.ValidateWorldName(name); err != nil {
				return err
			}
			shared, err := a.loadShared()
			if err != nil {
				return err
			}
			if !assumeYes && !a.confirm(cmd.Context(), fmt.Sprintf("Archive and delete %s?", name)) {
				a.println("Cancelled.")
				return nil
			}

			archive, err := a.sharedService(shared).Delete(cmd.Context(), name)
			if err != nil {
				return err
			}

			hooks := a.webhooks(shared.Webhooks)
			hooks.Send(webhook.Event{
				Event:     webhook.EventWorldArchived,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				World:     name,
				Metadata:  map[string]any{"archive": archive},
			}, true)
			hooks.Close()

			if a.jsonOutput() {
				return a.outputJSON(map[string]any{"world": name, "deleted": true, "archive": archive})
			}
			if archive != "" {
				a.printf("Archived to %s\n", archive)
			}
			a.println(color.Successf("Deleted %s.", name))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (a *app) uploadCmd() *cobra.Command {
	var assumeYes bool
	cmd := &cobra.Command{
		Use:   "upload <world>",
		Short: "Replace the drive copy with your local world",
		Long: `Replace the drive copy with your local world.

A snapshot of the current drive copy is taken first. Use this when a
session ended without its final upload.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := a.loadWorld(args[0])
			if err != nil {
				return err
			}
			if !assumeYes && !a.confirm(cmd.Context(), fmt.Sprintf("Overwrite the drive copy of %s?", wc.World)) {
				a.println("Cancelled.")
				return nil
			}
			snapshot, err := a.worldService(wc).Upload(cmd.Context(), wc)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.outputJSON(map[string]any{"world": wc.World, "uploaded": true, "snapshot": snapshot})
			}
			if snapshot != "" {
				a.printf("Snapshot %s taken.\n", snapshot)
			}
			a.println(color.Successf("Uploaded %s.", wc.World))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (a *app) downloadCmd() *cobra.Command {
	var assumeYes bool
	cmd := &cobra.Command{
		Use:   "download <world>",
		Short: "Replace your local world with the drive copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := a.loadWorld(args[0])
			if err != nil {
				return err
			}
			if !assumeYes && !a.confirm(cmd.Context(), fmt.Sprintf("Overwrite your local copy of %s?", wc.World)) {
				a.println("Cancelled.")
				return nil
			}
			if err := a.worldService(wc).Download(cmd.Context(), wc); err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.outputJSON(map[string]any{"world": wc.World, "downloaded": true, "path": wc.WorldDir()})
			}
			a.println(color.Successf("Downloaded %s to %s.", wc.World, wc.WorldDir()))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (a *app) forceReleaseCmd() *cobra.Command {
	var assumeYes bool
	cmd := &cobra.Command{
		Use:   "force-release <world>",
		Short: "Clear a lock left behind by a crashed host",
		Long: `Clear a lock left behind by a crashed host.

Only do this when the holder is certainly not playing: if they are, their
next upload will overwrite whatever the new host saved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := pathutil.ValidateWorldName(name); err != nil {
				return err
			}
			if rec, running := a.guard().Inspect(name); running {
				return errclass.ErrAlreadyRunning.WithMessagef("a session for %s is running on this machine (pid %d); stop it instead", name, rec.PID)
			}
			shared, err := a.loadShared()
			if err != nil {
				return err
			}
			store := a.store(shared.StatusURL, shared.Timings)
			w, err := store.Read(cmd.Context(), name)
			if err != nil {
				return err
			}
			if !w.IsOnline() {
				if a.jsonOutput() {
					return a.outputJSON(map[string]any{"world": name, "released": false})
				}
				a.printf("%s is not locked.\n", name)
				return nil
			}
			if !assumeYes && !a.confirm(cmd.Context(), fmt.Sprintf("Release the lock %s holds on %s?", w.Holder, name)) {
				a.println("Cancelled.")
				return nil
			}
			if err := store.Release(cmd.Context(), name); err != nil {
				return err
			}
			a.log.Warn("lock force released", map[string]any{"world": name, "previous_holder": w.Holder})
			if a.jsonOutput() {
				return a.outputJSON(map[string]any{"world": name, "released": true, "previous_holder": w.Holder})
			}
			a.println(color.Successf("Released %s (was held by %s).", name, w.Holder))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
