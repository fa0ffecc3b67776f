package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weave-dev/weave-quality/pkg/graphstore/cliclient"
	"github.com/weave-dev/weave-quality/pkg/scanner"
)

// NewPromoteCommand builds the `promote` subcommand.
func NewPromoteCommand(d Deps) *cobra.Command {
	var (
		parent string
		top    int
		upsert bool
		dryRun bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote current hotspots into the knowledge graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, store, err := openStore(d)
			if err != nil {
				return err
			}
			defer store.Close()

			graph := cliclient.New(cfg.Graph.Command, cfg.Graph.Args...)

			result, err := scanner.Promote(cmd.Context(), store, graph, parent, top, upsert, dryRun)
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(result)
			}
			fmt.Fprintf(os.Stderr, "promoted=%d updated=%d skipped=%d parent=%s\n",
				result.Promoted, len(result.Updated), result.Skipped, result.Parent)
			return nil
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "parent node id for promoted hotspot findings")
	cmd.Flags().IntVar(&top, "top", 10, "number of hotspots to promote")
	cmd.Flags().BoolVar(&upsert, "upsert", false, "update existing finding nodes instead of skipping them")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing to the graph")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the promote result as JSON on stdout")
	_ = cmd.MarkFlagRequired("parent")

	return cmd
}
