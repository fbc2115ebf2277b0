package cli

import (
	"github.com/spf13/cobra"

	"github.com/harupipipipi/mcmultidrive/pkg/color"
)

func (a *app) joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <world>",
		Short: "Add the current host's address to your server list",
		Long: `Look up who is hosting a world and write their address into the
servers.dat of your instance, first in the list. The address is also
copied to the clipboard when the terminal supports it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := a.loadWorld(args[0])
			if err != nil {
				return err
			}
			info, err := a.worldService(wc).Join(cmd.Context(), wc)
			if err != nil {
				return err
			}
			copied := a.copyToClipboard(info.Address)

			if a.jsonOutput() {
				return a.outputJSON(info)
			}
			a.printf("Host:    %s\n", info.Holder)
			a.printf("Address: %s\n", color.Address(info.Address))
			if copied {
				a.println(color.Dim("(copied to the clipboard)"))
			}
			a.println()
			a.println("Start the game, open Multiplayer and pick the first server in the list.")
			return nil
		},
	}
}
