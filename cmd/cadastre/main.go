// Command cadastre serves the cadastral extract API and offers one-shot
// resolution, address search and PDF export from the command line.
//
// Usage:
//
//	cadastre serve
//	cadastre resolve 48.8566 2.3522
//	cadastre search "8 bd du port amiens"
//	cadastre export 48.8566 2.3522 --snapshot map.png --out ./extracts
//	cadastre synth --in coords.csv --out fixtures.json
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "cadastre",
	Short:         "Resolve map coordinates into cadastral parcel extracts",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(synthCmd)
}
