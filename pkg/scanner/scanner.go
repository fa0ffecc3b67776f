// Package scanner orchestrates one incremental repository scan: it
// resolves what changed since the last scan, re-analyzes only those
// files, carries forward everything else, remines repository history,
// fuses the two into hotspot scores, and commits the whole pass as one
// SQLite transaction.
package scanner

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/weave-dev/weave-quality/pkg/analyzer"
	"github.com/weave-dev/weave-quality/pkg/gitlib"
	"github.com/weave-dev/weave-quality/pkg/history"
	"github.com/weave-dev/weave-quality/pkg/hotspot"
	"github.com/weave-dev/weave-quality/pkg/qmodel"
	"github.com/weave-dev/weave-quality/pkg/qstore"
	"github.com/weave-dev/weave-quality/pkg/scanlock"
)

// Options configures one Scan run.
type Options struct {
	RepoRootArg      string
	HotZone          string
	DBName           string
	ExcludeGlobs     []string
	ScanRetention    int
	FileRetention    int
	HotspotThreshold float64
	Logger           *slog.Logger
}

// Summary is the human-facing result of a completed scan.
type Summary struct {
	ScanID         int64                   `json:"scan_id"`
	FilesByLang    map[qmodel.Language]int `json:"files_by_lang"`
	ChangedCount   int                     `json:"files_changed"`
	UnchangedCount int                     `json:"files_unchanged"`
	Duration       time.Duration           `json:"duration_ns"`
	HotspotCount   int                     `json:"hotspot_count"`
	QualityScore   int                     `json:"quality_score"`
}

// FilesScanned is the total file count considered in this scan
// (changed + unchanged), the `files_scanned` field of `scan --json`
// per spec.md §6's fresh-scan/incremental-rescan acceptance properties.
func (s Summary) FilesScanned() int {
	return s.ChangedCount + s.UnchangedCount
}

// MarshalJSON renders Summary for `scan --json`, adding the derived
// files_scanned field spec.md §8's acceptance properties check
// alongside the stored fields.
func (s Summary) MarshalJSON() ([]byte, error) {
	type alias Summary
	return json.Marshal(struct {
		alias
		FilesScanned int `json:"files_scanned"`
	}{alias: alias(s), FilesScanned: s.FilesScanned()})
}

// String renders the human-facing one-line scan summary written to
// stderr, e.g. "scanned 184 files (12 changed, 172 unchanged) in 3.2s,
// 7 hotspots, quality 82".
func (s Summary) String() string {
	total := s.ChangedCount + s.UnchangedCount
	return fmt.Sprintf(
		"scanned %s files (%s changed, %s unchanged) in %.1fs, %s hotspots, quality %d",
		humanize.Comma(int64(total)),
		humanize.Comma(int64(s.ChangedCount)),
		humanize.Comma(int64(s.UnchangedCount)),
		s.Duration.Seconds(),
		humanize.Comma(int64(s.HotspotCount)),
		s.QualityScore,
	)
}

// Scan runs the full 14-step incremental scan pipeline and returns a
// summary of what it found. The scan lock, once acquired, is held for
// the whole pipeline and released on every return path.
func Scan(ctx context.Context, opts Options) (Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lock := scanlock.New(opts.HotZone, "scan")
	if err := lock.Acquire(); err != nil {
		return Summary{}, fmt.Errorf("scanner: %w", err)
	}
	defer lock.Release()

	start := time.Now()

	root, err := ResolveRepoRoot(opts.RepoRootArg)
	if err != nil {
		return Summary{}, fmt.Errorf("scanner: resolve repo root: %w", err)
	}

	repo, err := gitlib.OpenRepository(root)
	if err != nil {
		return Summary{}, fmt.Errorf("scanner: open repository: %w", err)
	}
	defer repo.Free()

	head, err := repo.Head()
	if err != nil {
		return Summary{}, fmt.Errorf("scanner: read HEAD: %w", err)
	}

	candidates, err := DiscoverFiles(ctx, repo, root, opts.ExcludeGlobs)
	if err != nil {
		return Summary{}, fmt.Errorf("scanner: discover files: %w", err)
	}

	store, err := qstore.Open(
		dbPath(opts.HotZone, opts.DBName),
		qstore.WithScanRetention(orDefault(opts.ScanRetention, qstore.DefaultScanRetention)),
		qstore.WithFileRetention(orDefault(opts.FileRetention, qstore.DefaultFileRetention)),
	)
	if err != nil {
		return Summary{}, fmt.Errorf("scanner: open store: %w", err)
	}
	defer store.Close()

	tx, err := store.DB().Begin()
	if err != nil {
		return Summary{}, fmt.Errorf("scanner: begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	scanID, err := store.BeginScan(tx, head.String())
	if err != nil {
		return Summary{}, fmt.Errorf("scanner: begin scan: %w", err)
	}

	knownStates, err := store.AllFileStates()
	if err != nil {
		return Summary{}, fmt.Errorf("scanner: load file states: %w", err)
	}

	changed, unchanged := partitionByState(candidates, knownStates)

	entries, err := analyzeChanged(ctx, repo, root, changed, scanID, tx, logger)
	if err != nil {
		return Summary{}, err
	}

	carried, err := carryForwardUnchanged(unchanged, scanID, tx, store)
	if err != nil {
		return Summary{}, err
	}
	entries = append(entries, carried...)

	if err := updateFileStates(candidates, tx); err != nil {
		return Summary{}, err
	}

	miner, err := history.Open(root)
	if err != nil {
		return Summary{}, fmt.Errorf("scanner: open history miner: %w", err)
	}
	defer miner.Close()

	mined, err := miner.Mine(ctx, time.Now().UTC())
	if err != nil {
		return Summary{}, fmt.Errorf("scanner: mine history: %w", err)
	}
	if mined.CoChangeFailed {
		logger.Warn("co-change mining failed; continuing scan without it")
	}

	fused := hotspot.Fuse(entries, mined.Stats)

	for _, g := range fused {
		if err := qstore.UpsertGitStats(tx, g); err != nil {
			return Summary{}, fmt.Errorf("scanner: persist git stats: %w", err)
		}
	}
	if err := qstore.ReplaceCoChanges(tx, mined.CoChanges); err != nil {
		return Summary{}, fmt.Errorf("scanner: persist co-change: %w", err)
	}

	duration := time.Since(start)
	if err := store.FinishScan(tx, scanID, len(candidates), duration); err != nil {
		return Summary{}, fmt.Errorf("scanner: finish scan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("scanner: commit: %w", err)
	}
	committed = true

	threshold := opts.HotspotThreshold
	if threshold == 0 {
		threshold = qmodel.HotspotThreshold
	}

	summary := Summary{
		ScanID:         scanID,
		FilesByLang:    countByLanguage(entries),
		ChangedCount:   len(changed),
		UnchangedCount: len(unchanged),
		Duration:       duration,
		HotspotCount:   len(hotspot.TopHotspots(fused, threshold, 0)),
		QualityScore:   hotspot.QualityScore(entries, fused),
	}

	return summary, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func dbPath(hotZone, dbName string) string {
	if dbName == "" {
		dbName = "quality.db"
	}
	return hotZone + "/" + dbName
}

// partitionByState splits candidates into changed and unchanged sets
// using the already-fetched blob map so FileChanged never needs a
// per-file re-fetch.
func partitionByState(candidates []candidateFile, known map[string]qmodel.FileState) (changed, unchanged []candidateFile) {
	for _, c := range candidates {
		state, tracked := known[c.Path]
		if qstore.FileChanged(state, tracked, c.Mtime, c.Blob) {
			changed = append(changed, c)
		} else {
			unchanged = append(unchanged, c)
		}
	}
	return changed, unchanged
}

func analyzeChanged(
	ctx context.Context,
	repo *gitlib.Repository,
	root string,
	changed []candidateFile,
	scanID int64,
	tx *sql.Tx,
	logger *slog.Logger,
) ([]qmodel.FileEntry, error) {
	entries := make([]qmodel.FileEntry, 0, len(changed))

	for _, c := range changed {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		source, err := readBlob(repo, root, c)
		if err != nil {
			logger.Warn("skipping unreadable file", "path", c.Path, "error", err)
			continue
		}

		result := analyzer.Analyze(source, c.Path, scanID)
		entries = append(entries, result.Entry)

		if err := qstore.UpsertFileEntry(tx, result.Entry); err != nil {
			return nil, fmt.Errorf("scanner: persist file entry %s: %w", c.Path, err)
		}
		if result.CK != nil {
			if err := qstore.UpsertCKMetrics(tx, *result.CK); err != nil {
				return nil, fmt.Errorf("scanner: persist ck metrics %s: %w", c.Path, err)
			}
		}
		for _, fn := range result.Functions {
			if err := qstore.UpsertFunctionCC(tx, fn); err != nil {
				return nil, fmt.Errorf("scanner: persist function cc %s: %w", c.Path, err)
			}
		}

		trend := qmodel.ComplexityTrend{
			Path: c.Path, ScanID: scanID, ScannedAt: time.Now().UTC(),
			Complexity: result.Entry.CyclomaticComplexity, EssentialComplexity: result.Entry.EssentialComplexity,
		}
		if err := qstore.UpsertComplexityTrend(tx, trend); err != nil {
			return nil, fmt.Errorf("scanner: persist complexity trend %s: %w", c.Path, err)
		}
	}

	return entries, nil
}

func readBlob(repo *gitlib.Repository, root string, c candidateFile) ([]byte, error) {
	if c.Blob != "" {
		blob, err := repo.LookupBlob(context.Background(), gitlib.NewHash(c.Blob))
		if err == nil {
			defer blob.Free()
			return blob.Contents(), nil
		}
	}
	return readFileFallback(root, c.Path)
}

// carryForwardUnchanged reuses the previous scan's rows for every
// unchanged file under the new scan_id, and still emits a fresh
// complexity-trend point so trend regression sees a data point every
// scan even when nothing changed.
func carryForwardUnchanged(unchanged []candidateFile, scanID int64, tx *sql.Tx, store *qstore.Store) ([]qmodel.FileEntry, error) {
	prev, hasPrev, err := store.PreviousScan()
	if err != nil {
		return nil, fmt.Errorf("scanner: load previous scan: %w", err)
	}
	if !hasPrev || len(unchanged) == 0 {
		return nil, nil
	}

	entries := make([]qmodel.FileEntry, 0, len(unchanged))

	for _, c := range unchanged {
		prevEntries, err := store.GetFileEntries(prev.ID, c.Path)
		if err != nil {
			return nil, fmt.Errorf("scanner: load previous file entry %s: %w", c.Path, err)
		}
		if len(prevEntries) == 0 {
			continue
		}

		e := prevEntries[0]
		e.ScanID = scanID
		entries = append(entries, e)

		if err := qstore.UpsertFileEntry(tx, e); err != nil {
			return nil, fmt.Errorf("scanner: carry forward file entry %s: %w", c.Path, err)
		}

		ck, ok, err := store.GetCKMetrics(prev.ID, c.Path)
		if err != nil {
			return nil, fmt.Errorf("scanner: load previous ck metrics %s: %w", c.Path, err)
		}
		if ok {
			ck.ScanID = scanID
			if err := qstore.UpsertCKMetrics(tx, ck); err != nil {
				return nil, fmt.Errorf("scanner: carry forward ck metrics %s: %w", c.Path, err)
			}
		}

		fns, err := store.GetFunctionCCs(prev.ID, c.Path)
		if err != nil {
			return nil, fmt.Errorf("scanner: load previous function cc %s: %w", c.Path, err)
		}
		for _, fn := range fns {
			fn.ScanID = scanID
			if err := qstore.UpsertFunctionCC(tx, fn); err != nil {
				return nil, fmt.Errorf("scanner: carry forward function cc %s: %w", c.Path, err)
			}
		}

		trend := qmodel.ComplexityTrend{
			Path: c.Path, ScanID: scanID, ScannedAt: time.Now().UTC(),
			Complexity: e.CyclomaticComplexity, EssentialComplexity: e.EssentialComplexity,
		}
		if err := qstore.UpsertComplexityTrend(tx, trend); err != nil {
			return nil, fmt.Errorf("scanner: carry forward complexity trend %s: %w", c.Path, err)
		}
	}

	return entries, nil
}

func updateFileStates(candidates []candidateFile, tx *sql.Tx) error {
	now := time.Now().Unix()
	for _, c := range candidates {
		mtime := c.Mtime
		if mtime == 0 {
			mtime = now
		}
		if err := qstore.UpsertFileState(tx, qmodel.FileState{Path: c.Path, Mtime: mtime, GitBlob: c.Blob}); err != nil {
			return fmt.Errorf("scanner: persist file state %s: %w", c.Path, err)
		}
	}
	return nil
}

func countByLanguage(entries []qmodel.FileEntry) map[qmodel.Language]int {
	counts := make(map[qmodel.Language]int)
	for _, e := range entries {
		counts[e.Language]++
	}
	return counts
}
