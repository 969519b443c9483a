package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
	"github.com/couchcryptid/cadastre-extract-service/internal/report"
	"github.com/couchcryptid/cadastre-extract-service/internal/snapshot"
)

var (
	exportSnapshot  string
	exportOutDir    string
	exportSynthetic bool
)

var exportCmd = &cobra.Command{
	Use:   "export <lat> <lon>",
	Short: "Resolve a coordinate and write its PDF extract",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := parseCoordinate(args)
		if err != nil {
			return err
		}
		cfg, logger, err := loadCLIConfig(cmd.ErrOrStderr(), exportSynthetic)
		if err != nil {
			return err
		}
		d, err := buildDeps(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer d.close()

		var provider domain.SnapshotProvider
		if exportSnapshot != "" {
			data, err := os.ReadFile(exportSnapshot)
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			store := snapshot.NewStore(cfg.SnapshotMaxBytes)
			if _, err := store.Put(data); err != nil {
				return err
			}
			provider = store
		}

		rec := d.resolver.Resolve(cmd.Context(), coord)
		exporter := report.NewExporter(provider, d.composer, cfg.SnapshotScale, d.metrics, logger)
		res, err := exporter.Export(cmd.Context(), rec, coord)
		if err != nil {
			return err
		}

		path := filepath.Join(exportOutDir, res.Filename)
		if err := os.WriteFile(path, res.PDF, 0o644); err != nil {
			return fmt.Errorf("write extract: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSnapshot, "snapshot", "", "PNG or JPEG map image to embed")
	exportCmd.Flags().StringVarP(&exportOutDir, "out", "o", ".", "output directory")
	exportCmd.Flags().BoolVar(&exportSynthetic, "synthetic", false, "skip the parcel lookup and synthesize the record")
}
