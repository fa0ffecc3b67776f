package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weave-dev/weave-quality/pkg/scanner"
)

// NewHotspotsCommand builds the `hotspots` subcommand.
func NewHotspotsCommand(d Deps) *cobra.Command {
	var (
		asJSON bool
		top    int
	)

	cmd := &cobra.Command{
		Use:   "hotspots",
		Short: "List the current top ranked hotspots",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, store, err := openStore(d)
			if err != nil {
				return err
			}
			defer store.Close()

			rows, available, err := scanner.Hotspots(store, top)
			if err != nil {
				return err
			}
			if !available {
				if asJSON {
					return json.NewEncoder(os.Stdout).Encode(struct {
						Hotspots []scanner.HotspotRow `json:"hotspots"`
					}{})
				}
				fmt.Fprintln(os.Stderr, "no scan available; run `weave-quality scan` first")
				return nil
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(struct {
					Hotspots []scanner.HotspotRow `json:"hotspots"`
				}{Hotspots: rows})
			}
			for _, r := range rows {
				fmt.Fprintf(os.Stderr, "%-40s hotspot=%.2f complexity=%.1f churn=%d trend=%s\n",
					r.Path, r.Hotspot, r.Complexity, r.Churn, r.Trend)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit hotspots as a JSON object on stdout")
	cmd.Flags().IntVar(&top, "top", 10, "number of hotspots to report (0 = all above threshold)")

	return cmd
}
