package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/weave-dev/weave-quality/pkg/graphstore"
	"github.com/weave-dev/weave-quality/pkg/hotspot"
	"github.com/weave-dev/weave-quality/pkg/qmodel"
	"github.com/weave-dev/weave-quality/pkg/qstore"
)

// HotspotRow is one ranked hotspot in a hotspots report.
type HotspotRow struct {
	Path       string                `json:"path"`
	Hotspot    float64               `json:"hotspot"`
	Complexity float64               `json:"complexity"`
	Churn      int                   `json:"churn"`
	Trend      qmodel.TrendDirection `json:"trend"`
}

// Hotspots returns the current scan's top-N GitStats joined with
// FileEntry, ranked by hotspot and annotated with trend direction.
func Hotspots(store *qstore.Store, topN int) ([]HotspotRow, bool, error) {
	latest, ok, err := store.LatestScan()
	if err != nil || !ok {
		return nil, ok, err
	}

	stats, err := store.GetGitStats()
	if err != nil {
		return nil, true, fmt.Errorf("scanner: load git stats: %w", err)
	}
	top := hotspot.TopHotspots(stats, qmodel.HotspotThreshold, topN)

	entries, err := store.GetFileEntries(latest.ID, "")
	if err != nil {
		return nil, true, fmt.Errorf("scanner: load file entries: %w", err)
	}
	complexityByPath := make(map[string]float64, len(entries))
	for _, e := range entries {
		complexityByPath[e.Path] = e.CyclomaticComplexity
	}

	rows := make([]HotspotRow, 0, len(top))
	for _, s := range top {
		trendPoints, err := store.GetComplexityTrend(s.Path)
		if err != nil {
			return nil, true, fmt.Errorf("scanner: load complexity trend %s: %w", s.Path, err)
		}
		points := make([]hotspot.TrendPoint, len(trendPoints))
		for i, t := range trendPoints {
			points[i] = hotspot.TrendPoint{Complexity: t.Complexity}
		}

		rows = append(rows, HotspotRow{
			Path:       s.Path,
			Hotspot:    s.Hotspot,
			Complexity: complexityByPath[s.Path],
			Churn:      s.Churn,
			Trend:      hotspot.ClassifyTrend(points),
		})
	}

	return rows, true, nil
}

// DiffCategory buckets one file's complexity change between scans.
type DiffCategory string

const (
	DiffNew      DiffCategory = "new"
	DiffRemoved  DiffCategory = "removed"
	DiffImproved DiffCategory = "improved"
	DiffDegraded DiffCategory = "degraded"
)

// DiffRow is one file's complexity delta between the previous and current scan.
type DiffRow struct {
	Path     string       `json:"path"`
	Category DiffCategory `json:"category"`
	Delta    float64      `json:"delta"`
}

// DiffReport is the full cross-scan comparison.
type DiffReport struct {
	Rows                 []DiffRow `json:"rows"`
	QualityScoreCurrent  int       `json:"quality_score_current"`
	QualityScorePrevious int       `json:"quality_score_previous"`
}

// improvedThreshold/degradedThreshold are the complexity-delta bands a
// file must cross to be classified as improved or degraded rather than
// merely unchanged (and thus omitted from the report).
const (
	improvedThreshold = -0.5
	degradedThreshold = 0.5
)

// Diff compares the current scan's FileEntry set against the previous
// scan's, categorizing new/removed/improved/degraded files and reporting
// quality-score deltas for both scans.
func Diff(store *qstore.Store) (DiffReport, bool, error) {
	current, ok, err := store.LatestScan()
	if err != nil || !ok {
		return DiffReport{}, ok, err
	}
	previous, hasPrev, err := store.PreviousScan()
	if err != nil {
		return DiffReport{}, true, fmt.Errorf("scanner: load previous scan: %w", err)
	}

	currentEntries, err := store.GetFileEntries(current.ID, "")
	if err != nil {
		return DiffReport{}, true, fmt.Errorf("scanner: load current entries: %w", err)
	}
	stats, err := store.GetGitStats()
	if err != nil {
		return DiffReport{}, true, fmt.Errorf("scanner: load git stats: %w", err)
	}
	fused := hotspot.Fuse(currentEntries, stats)
	report := DiffReport{QualityScoreCurrent: hotspot.QualityScore(currentEntries, fused)}

	if !hasPrev {
		for _, e := range currentEntries {
			report.Rows = append(report.Rows, DiffRow{Path: e.Path, Category: DiffNew})
		}
		return report, true, nil
	}

	previousEntries, err := store.GetFileEntries(previous.ID, "")
	if err != nil {
		return DiffReport{}, true, fmt.Errorf("scanner: load previous entries: %w", err)
	}
	prevFused := hotspot.Fuse(previousEntries, stats)
	report.QualityScorePrevious = hotspot.QualityScore(previousEntries, prevFused)

	currentByPath := make(map[string]qmodel.FileEntry, len(currentEntries))
	for _, e := range currentEntries {
		currentByPath[e.Path] = e
	}
	previousByPath := make(map[string]qmodel.FileEntry, len(previousEntries))
	for _, e := range previousEntries {
		previousByPath[e.Path] = e
	}

	for path, cur := range currentByPath {
		prev, existed := previousByPath[path]
		if !existed {
			report.Rows = append(report.Rows, DiffRow{Path: path, Category: DiffNew})
			continue
		}

		delta := cur.CyclomaticComplexity - prev.CyclomaticComplexity
		switch {
		case delta <= improvedThreshold:
			report.Rows = append(report.Rows, DiffRow{Path: path, Category: DiffImproved, Delta: delta})
		case delta >= degradedThreshold:
			report.Rows = append(report.Rows, DiffRow{Path: path, Category: DiffDegraded, Delta: delta})
		}
	}
	for path := range previousByPath {
		if _, stillPresent := currentByPath[path]; !stillPresent {
			report.Rows = append(report.Rows, DiffRow{Path: path, Category: DiffRemoved})
		}
	}

	sort.Slice(report.Rows, func(i, j int) bool { return report.Rows[i].Path < report.Rows[j].Path })

	return report, true, nil
}

// FunctionsReport lists per-function complexity for a path or directory
// prefix, sorted descending, with a threshold-exceed summary.
type FunctionsReport struct {
	Functions     []qmodel.FunctionCC `json:"functions"`
	ExceedCount   int                 `json:"exceed_count"`
	ExemptedCount int                 `json:"exempted_count"`
}

// Functions reports per-function complexity under pathPrefix (a single
// file path, a directory prefix, or "" for the whole scan). qstore's
// GetFunctionCCs only matches one exact path, so a prefix or whole-scan
// query first resolves the matching file paths from that scan's
// FileEntry set, then fetches and merges each file's functions.
func Functions(store *qstore.Store, pathPrefix string) (FunctionsReport, bool, error) {
	latest, ok, err := store.LatestScan()
	if err != nil || !ok {
		return FunctionsReport{}, ok, err
	}

	entries, err := store.GetFileEntries(latest.ID, "")
	if err != nil {
		return FunctionsReport{}, true, fmt.Errorf("scanner: load file entries: %w", err)
	}

	prefix := splitPathPrefix(pathPrefix)

	var fns []qmodel.FunctionCC
	for _, e := range entries {
		if prefix != "" && e.Path != prefix && !strings.HasPrefix(e.Path, prefix+"/") {
			continue
		}
		perFile, err := store.GetFunctionCCs(latest.ID, e.Path)
		if err != nil {
			return FunctionsReport{}, true, fmt.Errorf("scanner: load function cc %s: %w", e.Path, err)
		}
		fns = append(fns, perFile...)
	}

	sort.Slice(fns, func(i, j int) bool { return fns[i].Complexity > fns[j].Complexity })

	report := FunctionsReport{Functions: fns}
	for _, fn := range fns {
		if hotspot.ClassifyFunctionCC(fn) {
			report.ExceedCount++
		} else if fn.IsDispatch && fn.Complexity > qmodel.FunctionCCFlag {
			report.ExemptedCount++
		}
	}

	return report, true, nil
}

// PromoteResult is the outcome of a promote run.
type PromoteResult struct {
	Promoted []string `json:"promoted"`
	Updated  []string `json:"updated,omitempty"`
	Skipped  int      `json:"skipped"`
	Parent   string   `json:"parent"`
}

// FindingID computes the stable finding id promote uses to dedupe nodes
// across repeated runs: the first 12 hex characters of sha256(path+":"+metric).
func FindingID(path, metric string) string {
	sum := sha256.Sum256([]byte(path + ":" + metric))
	return hex.EncodeToString(sum[:])[:12]
}

const findingMetadataKey = "quality_finding_id"

// Promote reads the top-N hotspots and, for each, either skips, upserts,
// or creates a graph node referencing parent. DryRun reports planned
// actions without calling the graph client's mutating methods.
func Promote(ctx context.Context, store *qstore.Store, graph graphstore.Client, parent string, topN int, upsert, dryRun bool) (PromoteResult, error) {
	stats, err := store.GetGitStats()
	if err != nil {
		return PromoteResult{}, fmt.Errorf("scanner: load git stats: %w", err)
	}
	top := hotspot.TopHotspots(stats, qmodel.HotspotThreshold, topN)

	nodes, err := graph.ListNodes(ctx)
	if err != nil {
		return PromoteResult{}, fmt.Errorf("scanner: list nodes: %w", err)
	}
	byFindingID := make(map[string]graphstore.Node, len(nodes))
	for _, n := range nodes {
		if id, ok := n.Metadata[findingMetadataKey]; ok && id != "" {
			byFindingID[id] = n
		}
	}

	result := PromoteResult{Parent: parent}

	for _, s := range top {
		findingID := FindingID(s.Path, "hotspot")
		text := fmt.Sprintf("Hotspot: %s (hotspot=%.4f, churn=%d)", s.Path, s.Hotspot, s.Churn)

		existing, found := byFindingID[findingID]
		switch {
		case found && !upsert:
			result.Skipped++
		case found && upsert:
			if dryRun {
				result.Updated = append(result.Updated, findingID)
				continue
			}
			refreshed := make(graphstore.Metadata, len(existing.Metadata)+1)
			for k, v := range existing.Metadata {
				refreshed[k] = v
			}
			refreshed[findingMetadataKey] = findingID
			refreshed["description"] = text
			if err := graph.UpdateMetadata(ctx, existing.ID, refreshed); err != nil {
				return PromoteResult{}, fmt.Errorf("scanner: update node %s: %w", existing.ID, err)
			}
			result.Updated = append(result.Updated, findingID)
		default:
			if dryRun {
				result.Promoted = append(result.Promoted, findingID)
				continue
			}
			node, err := graph.CreateNode(ctx, text, graphstore.StatusTodo, graphstore.Metadata{
				findingMetadataKey: findingID,
				"type":             string(graphstore.TypeAudit),
			})
			if err != nil {
				return PromoteResult{}, fmt.Errorf("scanner: create node: %w", err)
			}
			if parent != "" {
				if err := graph.AddEdge(ctx, node.ID, parent, graphstore.EdgeReferences); err != nil {
					return PromoteResult{}, fmt.Errorf("scanner: link node %s to parent %s: %w", node.ID, parent, err)
				}
			}
			result.Promoted = append(result.Promoted, findingID)
		}
	}

	return result, nil
}

// HealthInfo is the structured project-health summary.
type HealthInfo struct {
	Available    bool      `json:"available"`
	Score        int       `json:"score,omitempty"`
	HotspotCount int       `json:"hotspot_count,omitempty"`
	TotalFiles   int       `json:"total_files,omitempty"`
	GitHead      string    `json:"git_head,omitempty"`
	ScannedAt    time.Time `json:"scanned_at,omitzero"`
}

// Health summarizes the current scan's quality score and hotspot count.
func Health(store *qstore.Store) (HealthInfo, error) {
	latest, ok, err := store.LatestScan()
	if err != nil {
		return HealthInfo{}, fmt.Errorf("scanner: load latest scan: %w", err)
	}
	if !ok {
		return HealthInfo{Available: false}, nil
	}

	entries, err := store.GetFileEntries(latest.ID, "")
	if err != nil {
		return HealthInfo{}, fmt.Errorf("scanner: load file entries: %w", err)
	}
	stats, err := store.GetGitStats()
	if err != nil {
		return HealthInfo{}, fmt.Errorf("scanner: load git stats: %w", err)
	}
	fused := hotspot.Fuse(entries, stats)

	return HealthInfo{
		Available:    true,
		Score:        hotspot.QualityScore(entries, fused),
		HotspotCount: len(hotspot.TopHotspots(fused, qmodel.HotspotThreshold, 0)),
		TotalFiles:   latest.FilesCount,
		GitHead:      latest.GitHead,
		ScannedAt:    latest.ScannedAt,
	}, nil
}

// ContextFileEntry is one path's known quality signals, surfaced for
// external integration; each field is present only when data exists.
type ContextFileEntry struct {
	Path       string   `json:"path"`
	Hotspot    *float64 `json:"hotspot,omitempty"`
	Churn      *int     `json:"churn,omitempty"`
	Complexity *float64 `json:"complexity,omitempty"`
}

// ContextFilesReport carries code-quality context for a caller-supplied
// path list, plus the head commit the data was scanned against.
type ContextFilesReport struct {
	CodeQuality []ContextFileEntry `json:"code_quality"`
	QualityAsOf *string            `json:"quality_as_of"`
}

// ContextFiles looks up known quality signals for each of paths.
func ContextFiles(store *qstore.Store, paths []string) (ContextFilesReport, error) {
	latest, ok, err := store.LatestScan()
	if err != nil {
		return ContextFilesReport{}, fmt.Errorf("scanner: load latest scan: %w", err)
	}

	report := ContextFilesReport{}
	if !ok {
		for _, p := range paths {
			report.CodeQuality = append(report.CodeQuality, ContextFileEntry{Path: p})
		}
		return report, nil
	}
	head := latest.GitHead
	report.QualityAsOf = &head

	stats, err := store.GetGitStats()
	if err != nil {
		return ContextFilesReport{}, fmt.Errorf("scanner: load git stats: %w", err)
	}
	statByPath := make(map[string]qmodel.GitStats, len(stats))
	for _, s := range stats {
		statByPath[s.Path] = s
	}

	for _, p := range paths {
		entry := ContextFileEntry{Path: p}

		entries, err := store.GetFileEntries(latest.ID, p)
		if err != nil {
			return ContextFilesReport{}, fmt.Errorf("scanner: load file entry %s: %w", p, err)
		}
		if len(entries) > 0 {
			c := entries[0].CyclomaticComplexity
			entry.Complexity = &c
		}

		if s, ok := statByPath[p]; ok {
			h := s.Hotspot
			entry.Hotspot = &h
			churn := s.Churn
			entry.Churn = &churn
		}

		report.CodeQuality = append(report.CodeQuality, entry)
	}

	return report, nil
}

// Reset removes the cache file for a hot zone, if present.
func Reset(hotZone, dbName string) error {
	path := dbPath(hotZone, dbName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("scanner: reset %s: %w", path, err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	return nil
}

// splitPathPrefix normalizes a functions-report path argument: a
// directory argument is matched as a prefix, a file argument matches
// exactly. Functions does that matching itself because
// qstore.GetFunctionCCs matches one exact path; this only normalizes
// separators and drops a trailing slash.
func splitPathPrefix(p string) string {
	return strings.TrimSuffix(filepath.ToSlash(p), "/")
}
