package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weave-dev/weave-quality/pkg/scanner"
)

// NewDiffCommand builds the `diff` subcommand.
func NewDiffCommand(d Deps) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare the current scan against the previous one",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, store, err := openStore(d)
			if err != nil {
				return err
			}
			defer store.Close()

			report, available, err := scanner.Diff(store)
			if err != nil {
				return err
			}
			if !available {
				if asJSON {
					return json.NewEncoder(os.Stdout).Encode(scanner.DiffReport{})
				}
				fmt.Fprintln(os.Stderr, "no scan available; run `weave-quality scan` first")
				return nil
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(report)
			}
			for _, row := range report.Rows {
				fmt.Fprintf(os.Stderr, "%-8s %-40s delta=%+.1f\n", row.Category, row.Path, row.Delta)
			}
			fmt.Fprintf(os.Stderr, "quality: %d -> %d\n", report.QualityScorePrevious, report.QualityScoreCurrent)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the diff report as JSON on stdout")

	return cmd
}
