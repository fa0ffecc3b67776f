package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weave-dev/weave-quality/pkg/observability"
	"github.com/weave-dev/weave-quality/pkg/qconfig"
	"github.com/weave-dev/weave-quality/pkg/scanner"
)

// NewScanCommand builds the `scan` subcommand.
func NewScanCommand(d Deps) *cobra.Command {
	var (
		asJSON  bool
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Re-scan the repository and persist results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var repoArg string
			if len(args) == 1 {
				repoArg = args[0]
			}

			cfg, err := loadConfig(d)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			providers, _, cleanup, err := setupObservability(ctx, d, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			logger := providers.Logger

			scanMetrics, err := observability.NewScanMetrics(providers.Meter)
			if err != nil {
				return err
			}

			fileGlobs, err := qconfig.LoadExcludeGlobs(cfg.Repository.HotZone)
			if err != nil {
				return err
			}

			summary, err := scanner.Scan(ctx, scanner.Options{
				RepoRootArg:      repoArg,
				HotZone:          cfg.Repository.HotZone,
				DBName:           cfg.Repository.DB,
				ExcludeGlobs:     qconfig.MergeExcludeGlobs(fileGlobs, exclude),
				ScanRetention:    cfg.Retention.ScanRetention,
				FileRetention:    cfg.Retention.FileRetention,
				HotspotThreshold: cfg.Retention.HotspotThreshold,
				Logger:           logger,
			})
			if err != nil {
				return err
			}

			scanMetrics.RecordScan(ctx, observability.ScanStats{
				Duration:     summary.Duration,
				FilesScanned: summary.FilesScanned(),
				HotspotCount: summary.HotspotCount,
				QualityScore: summary.QualityScore,
			})

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(summary)
			}
			fmt.Fprintln(os.Stderr, summary.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit a JSON summary on stdout")
	cmd.Flags().StringArrayVar(&exclude, "exclude", nil, "glob of paths to exclude (repeatable)")

	return cmd
}
