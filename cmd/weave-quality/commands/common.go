// Package commands implements CLI command handlers for weave-quality.
package commands

import (
	"context"
	"log/slog"

	"github.com/weave-dev/weave-quality/pkg/observability"
	"github.com/weave-dev/weave-quality/pkg/qconfig"
	"github.com/weave-dev/weave-quality/pkg/qstore"
	"github.com/weave-dev/weave-quality/pkg/version"
)

// Deps carries the root command's persistent flag values into every
// subcommand constructor, mirroring the teacher's package-level flag
// variables without reaching across package boundaries for the vars
// themselves.
type Deps struct {
	HotZone         *string
	ConfigFile      *string
	Verbose         *bool
	DiagnosticsAddr *string
}

// loadConfig resolves the qconfig.Config for this invocation, honoring
// --config and --hot-zone.
func loadConfig(d Deps) (*qconfig.Config, error) {
	return qconfig.Load(*d.ConfigFile, *d.HotZone)
}

// openStore loads the config for this invocation and opens its cache
// file, the shared first step of every read-only report command.
func openStore(d Deps) (*qconfig.Config, *qstore.Store, error) {
	cfg, err := loadConfig(d)
	if err != nil {
		return nil, nil, err
	}

	store, err := qstore.Open(cfg.DBPath(),
		qstore.WithScanRetention(cfg.Retention.ScanRetention),
		qstore.WithFileRetention(cfg.Retention.FileRetention),
	)
	if err != nil {
		return nil, nil, err
	}

	return cfg, store, nil
}

// logLevel resolves the effective slog level for this invocation:
// --verbose always wins, otherwise cfg.Logging.Level parses as an
// slog level name, defaulting to info on an empty or unknown value.
func logLevel(d Deps, cfg *qconfig.Config) slog.Level {
	if *d.Verbose {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// setupObservability initializes OTel providers (including the
// trace-injecting structured logger at providers.Logger) for this
// invocation, and returns a shutdown func plus, when --diagnostics-addr
// was set, a started diagnostics server whose Close the caller must
// also defer.
func setupObservability(ctx context.Context, d Deps, cfg *qconfig.Config) (observability.Providers, *observability.DiagnosticsServer, func(), error) {
	providers, err := observability.Init(observability.Config{
		ServiceName:    "weave-quality",
		ServiceVersion: version.Version,
		Mode:           observability.ModeCLI,
		LogLevel:       logLevel(d, cfg),
		LogJSON:        cfg.Logging.Format == "json",
	})
	if err != nil {
		return observability.Providers{}, nil, func() {}, err
	}

	var diag *observability.DiagnosticsServer
	if *d.DiagnosticsAddr != "" {
		diag, err = observability.NewDiagnosticsServer(*d.DiagnosticsAddr)
		if err != nil {
			_ = providers.Shutdown(ctx)
			return observability.Providers{}, nil, func() {}, err
		}
	}

	cleanup := func() {
		if diag != nil {
			_ = diag.Close()
		}
		if shutdownErr := providers.Shutdown(ctx); shutdownErr != nil && providers.Logger != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}

	return providers, diag, cleanup, nil
}
