package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harupipipipi/mcmultidrive/pkg/color"
)

func (a *app) journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the sessions hosted from this machine",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.journal().List(limit)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.outputJSON(records)
			}
			if len(records) == 0 {
				a.println("No sessions recorded yet.")
				return nil
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tWORLD\tHOST\tRESULT")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Timestamp.Local().Format("2006-01-02 15:04"), r.World, dash(r.Identity), r.Summary)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "number of sessions to show, 0 for all")

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check the journal's hash chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.journal().Verify()
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.outputJSON(map[string]any{"records": n, "valid": true})
			}
			a.println(color.Successf("Journal intact (%d records).", n))
			return nil
		},
	}

	cmd.AddCommand(list, verify)
	return cmd
}
