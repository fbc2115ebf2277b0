package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harupipipipi/mcmultidrive/internal/statusstore"
	"github.com/harupipipipi/mcmultidrive/pkg/color"
	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
	"github.com/harupipipipi/mcmultidrive/pkg/model"
)

// worldView is the status of one world as printed by status and list.
type worldView struct {
	model.World
	Stale bool `json:"stale,omitempty"`
	// LocalSession is set when a host session for the world runs on this
	// machine.
	LocalSession bool `json:"local_session,omitempty"`
}

func (a *app) view(w model.World, lockHours int) worldView {
	v := worldView{World: w}
	if w.IsOnline() {
		v.Stale = statusstore.IsLockExpired(w.LockTimestamp, lockHours)
		_, v.LocalSession = a.guard().Inspect(w.Name)
	}
	return v
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <world>",
		Short: "Show who is hosting a world",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shared, err := a.loadShared()
			if err != nil {
				return err
			}
			svc := a.sharedService(shared)
			w, err := svc.Status(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, errclass.ErrStoreRejected) {
					if worlds, lerr := svc.List(cmd.Context()); lerr == nil {
						return errors.New(formatWorldNotFoundError(args[0], worlds))
					}
				}
				return err
			}
			if w.Name == "" {
				w.Name = args[0]
			}
			v := a.view(*w, shared.LockTimeoutHours)

			if a.jsonOutput() {
				return a.outputJSON(v)
			}
			a.printf("World:   %s\n", v.Name)
			a.printf("Status:  %s\n", color.Status(string(v.Status)))
			if v.IsOnline() {
				a.printf("Host:    %s\n", v.Holder)
				a.printf("Address: %s\n", addressText(v.World))
				if t, ok := v.LockedAt(); ok {
					a.printf("Since:   %s\n", t.Local().Format("2006-01-02 15:04"))
				}
				if v.Stale {
					a.println(color.Warningf("The lock is older than %dh; the host may have crashed. See `mcmultidrive force-release`.", shared.LockTimeoutHours))
				}
			}
			return nil
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered worlds",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shared, err := a.loadShared()
			if err != nil {
				return err
			}
			worlds, err := a.sharedService(shared).List(cmd.Context())
			if err != nil {
				return err
			}
			views := make([]worldView, 0, len(worlds))
			for _, w := range worlds {
				views = append(views, a.view(w, shared.LockTimeoutHours))
			}

			if a.jsonOutput() {
				return a.outputJSON(views)
			}
			if len(views) == 0 {
				a.println("No worlds registered yet. Add one with `mcmultidrive add <world>`.")
				return nil
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WORLD\tSTATUS\tHOST\tADDRESS")
			for _, v := range views {
				status := string(v.Status)
				if v.Stale {
					status += " (stale)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Name, status, dash(v.Holder), dash(addressText(v.World)))
			}
			return tw.Flush()
		},
	}
}

func addressText(w model.World) string {
	if w.Address == model.AddressPreparing {
		return "(preparing)"
	}
	return w.Address
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
