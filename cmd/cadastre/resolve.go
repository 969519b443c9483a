package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var resolveSynthetic bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <lat> <lon>",
	Short: "Print the cadastral record for a coordinate as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := parseCoordinate(args)
		if err != nil {
			return err
		}
		cfg, logger, err := loadCLIConfig(cmd.ErrOrStderr(), resolveSynthetic)
		if err != nil {
			return err
		}
		d, err := buildDeps(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer d.close()

		rec := d.resolver.Resolve(cmd.Context(), coord)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveSynthetic, "synthetic", false, "skip the parcel lookup and synthesize the record")
}
