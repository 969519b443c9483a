package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
)

var (
	synthIn  string
	synthOut string
)

// synthCmd turns a CSV of coordinates into synthesized-record fixtures, using
// the same domain.Synthesize the resolver falls back to.
var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Generate synthesized-record fixtures from a CSV of coordinates",
	Long: `Reads a CSV with a header row containing lat and lon columns, plus
optional commune and code_insee columns, and writes a JSON array of
{coordinate, record} fixtures.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f, err := os.Open(synthIn)
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}
		defer f.Close()

		fixtures, err := synthesizeCSV(f)
		if err != nil {
			return fmt.Errorf("processing %s: %w", synthIn, err)
		}
		if err := writeJSON(synthOut, fixtures); err != nil {
			return fmt.Errorf("writing fixtures: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d fixtures to %s\n", len(fixtures), synthOut)
		printStats(cmd.ErrOrStderr(), fixtures)
		return nil
	},
}

func init() {
	synthCmd.Flags().StringVar(&synthIn, "in", "", "CSV file with lat,lon[,commune,code_insee] columns")
	synthCmd.Flags().StringVar(&synthOut, "out", "", "output path for the JSON fixture")
	_ = synthCmd.MarkFlagRequired("in")
	_ = synthCmd.MarkFlagRequired("out")
}

type fixture struct {
	Coordinate domain.Coordinate      `json:"coordinate"`
	Record     domain.CadastralRecord `json:"record"`
}

func synthesizeCSV(r io.Reader) ([]fixture, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("no data rows")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := colIdx["lat"]; !ok {
		return nil, errors.New("missing lat column")
	}
	if _, ok := colIdx["lon"]; !ok {
		return nil, errors.New("missing lon column")
	}

	fixtures := make([]fixture, 0, len(rows)-1)
	for n, row := range rows[1:] {
		lat, errLat := strconv.ParseFloat(get(row, colIdx, "lat"), 64)
		lon, errLon := strconv.ParseFloat(get(row, colIdx, "lon"), 64)
		if err := errors.Join(errLat, errLon); err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		c := domain.Coordinate{Lat: lat, Lon: lon}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		commune := domain.Commune{Name: get(row, colIdx, "commune"), Code: get(row, colIdx, "code_insee")}
		fixtures = append(fixtures, fixture{Coordinate: c, Record: domain.Synthesize(c, commune)})
	}
	return fixtures, nil
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(w io.Writer, fixtures []fixture) {
	sections := map[string]int{}
	natures := map[string]int{}
	for _, f := range fixtures {
		sections[f.Record.Section]++
		natures[f.Record.NatureLabel]++
	}
	fmt.Fprintln(w, "sections:")
	printCounts(w, sections)
	fmt.Fprintln(w, "natures:")
	printCounts(w, natures)
}

func printCounts(w io.Writer, m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-16s %d\n", k, m[k])
	}
}
