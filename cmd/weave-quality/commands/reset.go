package commands

import (
	"github.com/spf13/cobra"

	"github.com/weave-dev/weave-quality/pkg/scanner"
)

// NewResetCommand builds the `reset` subcommand.
func NewResetCommand(d Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove the cache file for the active hot zone",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(d)
			if err != nil {
				return err
			}
			return scanner.Reset(cfg.Repository.HotZone, cfg.Repository.DB)
		},
	}
}
