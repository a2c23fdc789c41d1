package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newBlocksCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "blocks",
		Short: "List the content blocks under the content root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.rt.FS == nil {
				return fmt.Errorf("blocks needs the fs loader, have %q", c.cfg.Loader)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPATH")
			for _, b := range c.rt.FS.Blocks() {
				fmt.Fprintf(tw, "%s\t%s\n", b.ID, b.Path)
			}
			return tw.Flush()
		},
	}
}
