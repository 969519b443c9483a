package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search French addresses",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadCLIConfig(cmd.ErrOrStderr(), true)
		if err != nil {
			return err
		}
		d, err := buildDeps(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer d.close()

		candidates := d.geocoder.Search(cmd.Context(), strings.Join(args, " "))
		if len(candidates) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "no results")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LABEL\tLAT\tLON\tCONTEXT")
		for _, c := range candidates {
			fmt.Fprintf(tw, "%s\t%.6f\t%.6f\t%s\n", c.Label, c.Coordinate.Lat, c.Coordinate.Lon, c.Context)
		}
		return tw.Flush()
	},
}
