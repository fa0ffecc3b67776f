// Package qconfig provides configuration loading and validation for the
// quality scanner and reconciler.
package qconfig

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidRetention = errors.New("retention window must be positive")
	ErrInvalidHotZone   = errors.New("hot zone directory must not be empty")
	ErrInvalidTracker   = errors.New("tracker command must not be empty")
)

// Default configuration values.
const (
	defaultHotZone          = ".weave"
	defaultDB               = "quality.db"
	defaultScanRetention    = 5
	defaultFileRetention    = 2
	defaultHotspotThreshold = 0.5
	defaultTrackerCommand   = "gh"
	defaultGraphCommand     = "weave"
)

// Config holds all configuration for the scanner and reconciler binaries.
type Config struct {
	Repository RepositoryConfig `mapstructure:"repository"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	Tracker    TrackerConfig    `mapstructure:"tracker"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// RepositoryConfig holds repository-root and cache-location configuration.
type RepositoryConfig struct {
	Root             string `mapstructure:"root"`
	HotZone          string `mapstructure:"hot_zone"`
	DB               string `mapstructure:"db"`
	DisableAutoprune bool   `mapstructure:"disable_autoprune"`
}

// RetentionConfig holds cache-pruning and hotspot-classification configuration.
type RetentionConfig struct {
	ScanRetention    int     `mapstructure:"scan_retention"`
	FileRetention    int     `mapstructure:"file_retention"`
	HotspotThreshold float64 `mapstructure:"hotspot_threshold"`
}

// TrackerConfig holds the issue-tracker CLI invocation configuration.
type TrackerConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// GraphConfig holds the local knowledge-graph CLI invocation configuration.
type GraphConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load loads configuration from the given config file (if non-empty, else
// the usual search paths), overlaid with environment variables. hotZoneFlag,
// when non-empty, overrides repository.hot_zone (a --hot-zone CLI flag beats
// both file and env).
func Load(configPath, hotZoneFlag string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("quality")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".weave")
		viperCfg.AddConfigPath(".")
	}

	bindEnv(viperCfg)

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	if hotZoneFlag != "" {
		config.Repository.HotZone = hotZoneFlag
	}

	if validateErr := validateConfig(&config); validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// bindEnv binds the handful of environment variables the scanner and
// reconciler recognize directly; each name is bound explicitly rather than
// through an env prefix because REPO_ROOT carries no WV_ prefix.
func bindEnv(viperCfg *viper.Viper) {
	_ = viperCfg.BindEnv("repository.hot_zone", "WV_HOT_ZONE")
	_ = viperCfg.BindEnv("repository.db", "WV_DB")
	_ = viperCfg.BindEnv("repository.root", "REPO_ROOT")
	_ = viperCfg.BindEnv("repository.disable_autoprune", "WV_DISABLE_AUTOPRUNE")
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("repository.hot_zone", defaultHotZone)
	viperCfg.SetDefault("repository.db", defaultDB)
	viperCfg.SetDefault("repository.root", "")
	viperCfg.SetDefault("repository.disable_autoprune", false)

	viperCfg.SetDefault("retention.scan_retention", defaultScanRetention)
	viperCfg.SetDefault("retention.file_retention", defaultFileRetention)
	viperCfg.SetDefault("retention.hotspot_threshold", defaultHotspotThreshold)

	viperCfg.SetDefault("tracker.command", defaultTrackerCommand)
	viperCfg.SetDefault("tracker.args", []string{"issue"})

	viperCfg.SetDefault("graph.command", defaultGraphCommand)
	viperCfg.SetDefault("graph.args", []string{"node"})

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")
	viperCfg.SetDefault("logging.output", "stdout")
}

func validateConfig(config *Config) error {
	if strings.TrimSpace(config.Repository.HotZone) == "" {
		return ErrInvalidHotZone
	}

	if config.Retention.ScanRetention <= 0 {
		return fmt.Errorf("%w: scan_retention=%d", ErrInvalidRetention, config.Retention.ScanRetention)
	}

	if config.Retention.FileRetention <= 0 {
		return fmt.Errorf("%w: file_retention=%d", ErrInvalidRetention, config.Retention.FileRetention)
	}

	if strings.TrimSpace(config.Tracker.Command) == "" {
		return ErrInvalidTracker
	}

	return nil
}

// DBPath returns the resolved path to the SQLite cache file inside the hot zone.
func (c *Config) DBPath() string {
	return filepath.Join(c.Repository.HotZone, c.Repository.DB)
}

// LoadExcludeGlobs reads the [exclude] section of <hotZone>/quality.conf,
// one glob per non-blank, non-comment line. A missing file yields no globs
// and no error — exclusion is opt-in.
func LoadExcludeGlobs(hotZone string) ([]string, error) {
	path := filepath.Join(hotZone, "quality.conf")

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var globs []string

	inExclude := false
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			inExclude = strings.EqualFold(strings.TrimSpace(line[1:len(line)-1]), "exclude")
		case inExclude:
			globs = append(globs, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return globs, nil
}

// MergeExcludeGlobs combines config-file globs with CLI-supplied globs,
// deduplicating while preserving first-seen order.
func MergeExcludeGlobs(fileGlobs, cliGlobs []string) []string {
	seen := make(map[string]bool, len(fileGlobs)+len(cliGlobs))

	merged := make([]string, 0, len(fileGlobs)+len(cliGlobs))

	for _, g := range append(append([]string{}, fileGlobs...), cliGlobs...) {
		if g == "" || seen[g] {
			continue
		}

		seen[g] = true

		merged = append(merged, g)
	}

	return merged
}
