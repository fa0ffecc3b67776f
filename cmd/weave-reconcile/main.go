// Package main provides the entry point for the weave-reconcile CLI tool,
// which syncs the local knowledge graph against a remote issue tracker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/weave-dev/weave-quality/pkg/gitlib"
	"github.com/weave-dev/weave-quality/pkg/graphstore/cliclient"
	"github.com/weave-dev/weave-quality/pkg/observability"
	"github.com/weave-dev/weave-quality/pkg/qconfig"
	"github.com/weave-dev/weave-quality/pkg/reconcile"
	"github.com/weave-dev/weave-quality/pkg/scanlock"
	trackercli "github.com/weave-dev/weave-quality/pkg/tracker/cliclient"
	"github.com/weave-dev/weave-quality/pkg/version"
)

// args holds the parsed command line. Unlike cmd/weave-quality, this
// binary's CLI shape (--notify takes two trailing positional values)
// doesn't map cleanly onto the flag package's FlagSet, so it's parsed
// by hand.
type args struct {
	configFile string
	hotZone    string
	verbose    bool
	dryRun     bool

	notify        bool
	notifyNode    string
	notifyEvent   string
	learning      string
	blocker       string
	refreshParent string
}

func parseArgs(raw []string) (args, error) {
	var a args

	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case "--config":
			i++
			if i >= len(raw) {
				return args{}, fmt.Errorf("--config requires a value")
			}
			a.configFile = raw[i]
		case "--hot-zone":
			i++
			if i >= len(raw) {
				return args{}, fmt.Errorf("--hot-zone requires a value")
			}
			a.hotZone = raw[i]
		case "-v", "--verbose":
			a.verbose = true
		case "--dry-run":
			a.dryRun = true
		case "--notify":
			if i+2 >= len(raw) {
				return args{}, fmt.Errorf("--notify requires <node-id> <event>")
			}
			a.notify = true
			a.notifyNode = raw[i+1]
			a.notifyEvent = raw[i+2]
			i += 2
		case "--learning":
			i++
			if i >= len(raw) {
				return args{}, fmt.Errorf("--learning requires a value")
			}
			a.learning = raw[i]
		case "--blocker":
			i++
			if i >= len(raw) {
				return args{}, fmt.Errorf("--blocker requires a value")
			}
			a.blocker = raw[i]
		case "--refresh-parent":
			i++
			if i >= len(raw) {
				return args{}, fmt.Errorf("--refresh-parent requires <node-id>")
			}
			a.refreshParent = raw[i]
		case "-h", "--help":
			printUsage()
			os.Exit(0)
		default:
			return args{}, fmt.Errorf("unrecognized argument: %s", raw[i])
		}
	}

	return a, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `weave-reconcile - sync the local knowledge graph against a remote issue tracker

Usage:
  weave-reconcile [--dry-run] [--config FILE] [--hot-zone DIR] [-v]
  weave-reconcile --notify <node-id> <work|done|block> [--learning TEXT] [--blocker NODE-ID]
  weave-reconcile --refresh-parent <node-id>

With no mode flag, runs the full three-phase sync.`)
}

func main() {
	version.InitBinaryVersion()

	a, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	if err := run(a); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(a args) error {
	cfg, err := qconfig.Load(a.configFile, a.hotZone)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	var parsed slog.Level
	switch {
	case a.verbose:
		level = slog.LevelDebug
	case parsed.UnmarshalText([]byte(cfg.Logging.Level)) == nil:
		level = parsed
	}

	ctx := context.Background()

	providers, err := observability.Init(observability.Config{
		ServiceName:    "weave-reconcile",
		ServiceVersion: version.Version,
		Mode:           observability.ModeCLI,
		LogLevel:       level,
		LogJSON:        cfg.Logging.Format == "json",
	})
	if err != nil {
		return err
	}
	logger := providers.Logger
	defer func() {
		if shutdownErr := providers.Shutdown(ctx); shutdownErr != nil {
			logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	reconcileMetrics, err := observability.NewReconcileMetrics(providers.Meter)
	if err != nil {
		return err
	}

	lock := scanlock.New(cfg.Repository.HotZone, "reconcile")
	if err := lock.Acquire(); err != nil {
		return fmt.Errorf("weave-reconcile: %w", err)
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.Warn("lock release failed", "error", releaseErr)
		}
	}()

	root := cfg.Repository.Root
	if root == "" {
		root = "."
	}
	repo, err := gitlib.OpenRepository(root)
	if err != nil {
		logger.Warn("commit-link lookups disabled; failed to open repository", "error", err)
		repo = nil
	} else {
		defer repo.Free()
	}

	r := &reconcile.Reconciler{
		Tracker: trackercli.New(cfg.Tracker.Command, cfg.Tracker.Args...),
		Graph:   cliclient.New(cfg.Graph.Command, cfg.Graph.Args...),
		Repo:    repo,
		DryRun:  a.dryRun,
		Logf:    func(format string, args ...any) { logger.Info(fmt.Sprintf(format, args...)) },
	}

	switch {
	case a.notify:
		event := reconcile.Event(a.notifyEvent)
		if err := reconcile.Notify(ctx, r, a.notifyNode, event, a.learning, a.blocker); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "notified %s: %s\n", a.notifyNode, a.notifyEvent)
		return nil

	case a.refreshParent != "":
		updated, err := reconcile.RefreshParent(ctx, r, a.refreshParent)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "refresh-parent %s: updated=%t\n", a.refreshParent, updated)
		return nil

	default:
		stats, err := reconcile.Run(ctx, r)
		if err != nil {
			return err
		}

		reconcileMetrics.RecordRun(ctx, observability.ReconcileStats{
			CreatedRemote: stats.CreatedRemote,
			CreatedNodes:  stats.CreatedNodes,
			Skipped:       stats.Skipped,
			Duplicates:    stats.Duplicates,
		})

		if a.dryRun {
			if err := reconcile.SaveDryRunReport(cfg.Repository.HotZone, stats, time.Now()); err != nil {
				logger.Warn("dry-run report not saved", "error", err)
			}
		}

		fmt.Fprintf(os.Stderr,
			"reconcile: created_remote=%d updated_remote=%d closed_remote=%d reopened_remote=%d "+
				"already_synced=%d skipped=%d duplicates=%d created_nodes=%d closed_nodes=%d\n",
			stats.CreatedRemote, stats.UpdatedRemote, stats.ClosedRemote, stats.ReopenedRemote,
			stats.AlreadySynced, stats.Skipped, stats.Duplicates, stats.CreatedNodes, stats.ClosedNodes)
		return nil
	}
}
