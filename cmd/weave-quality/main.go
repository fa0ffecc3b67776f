// Package main provides the entry point for the weave-quality CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weave-dev/weave-quality/cmd/weave-quality/commands"
	"github.com/weave-dev/weave-quality/pkg/version"
)

var (
	hotZone         string
	configFile      string
	verbose         bool
	diagnosticsAddr string
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "weave-quality",
		Short: "Weave Quality - repository code-quality analysis",
		Long: `weave-quality scans a repository for static code-quality metrics and
git-history-derived hotspot signals, storing results in an incremental,
scan-versioned cache.

Commands:
  scan           Re-scan the repository and persist results
  hotspots       List the current top ranked hotspots
  diff           Compare the current scan against the previous one
  functions      Report per-function complexity
  promote        Create or update graph findings from top hotspots
  health-info    Summarize the current scan's quality signals
  context-files  Look up quality signals for stdin-supplied paths
  reset          Remove the cache file for the active hot zone`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&hotZone, "hot-zone", "", "hot zone directory for quality.db (default .weave)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a weave-quality config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&diagnosticsAddr, "diagnostics-addr", "",
		"optional address to serve /healthz, /readyz, and /metrics on (e.g. localhost:9090)")

	deps := commands.Deps{
		HotZone:         &hotZone,
		ConfigFile:      &configFile,
		Verbose:         &verbose,
		DiagnosticsAddr: &diagnosticsAddr,
	}

	rootCmd.AddCommand(
		commands.NewScanCommand(deps),
		commands.NewHotspotsCommand(deps),
		commands.NewDiffCommand(deps),
		commands.NewFunctionsCommand(deps),
		commands.NewPromoteCommand(deps),
		commands.NewHealthInfoCommand(deps),
		commands.NewContextFilesCommand(deps),
		commands.NewResetCommand(deps),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "weave-quality %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
