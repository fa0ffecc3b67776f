package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weave-dev/weave-quality/pkg/scanner"
)

// NewFunctionsCommand builds the `functions` subcommand.
func NewFunctionsCommand(d Deps) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "functions [path]",
		Short: "Report per-function complexity",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}

			_, store, err := openStore(d)
			if err != nil {
				return err
			}
			defer store.Close()

			report, available, err := scanner.Functions(store, prefix)
			if err != nil {
				return err
			}
			if !available {
				if asJSON {
					return json.NewEncoder(os.Stdout).Encode(scanner.FunctionsReport{})
				}
				fmt.Fprintln(os.Stderr, "no scan available; run `weave-quality scan` first")
				return nil
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(report)
			}
			for _, fn := range report.Functions {
				fmt.Fprintf(os.Stderr, "%-40s %-24s complexity=%d essential=%d dispatch=%t\n",
					fn.Path, fn.FunctionName, fn.Complexity, fn.EssentialComplexity, fn.IsDispatch)
			}
			fmt.Fprintf(os.Stderr, "%d exceed threshold, %d exempted as dispatch\n", report.ExceedCount, report.ExemptedCount)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the functions report as JSON on stdout")

	return cmd
}
