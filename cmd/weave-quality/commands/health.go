package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weave-dev/weave-quality/pkg/scanner"
)

// NewHealthInfoCommand builds the `health-info` subcommand. Its output
// is always the JSON object spec.md §6 defines; there is no text mode.
func NewHealthInfoCommand(d Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "health-info",
		Short: "Summarize the current scan's quality signals",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, store, err := openStore(d)
			if err != nil {
				return err
			}
			defer store.Close()

			info, err := scanner.Health(store)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(info)
		},
	}
}

// NewContextFilesCommand builds the `context-files` subcommand, which
// reads newline-delimited paths from stdin and reports known quality
// signals for each.
func NewContextFilesCommand(d Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "context-files",
		Short: "Look up quality signals for stdin-supplied paths",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var paths []string

			stdinScanner := bufio.NewScanner(os.Stdin)
			for stdinScanner.Scan() {
				line := stdinScanner.Text()
				if line != "" {
					paths = append(paths, line)
				}
			}
			if err := stdinScanner.Err(); err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}

			_, store, err := openStore(d)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := scanner.ContextFiles(store, paths)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(report)
		},
	}
}
