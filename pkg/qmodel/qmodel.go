// Package qmodel holds the record shapes persisted by the quality scanner
// and consumed by reporting. Every type here maps to one storage concern
// described in the scan-versioned relational cache: some rows are tied to
// a specific scan (FileEntry, CKMetrics, FunctionCC, ComplexityTrend),
// others carry forward across scans because they represent current-state
// facts about the repository (GitStats, CoChange, FileState).
package qmodel

import "time"

// Language enumerates the analyzer family that produced a FileEntry.
type Language string

const (
	LangStructured Language = "structured"
	LangHeuristic  Language = "heuristic"
	LangUnknown    Language = "unknown"
)

// FileEntry is the static-analysis summary for one file in one scan.
// One row per (path, scan_id); rows are replaced as a unit, never mutated.
type FileEntry struct {
	Path                string
	ScanID              int64
	Language            Language
	LOC                 int
	CyclomaticComplexity float64
	FunctionCount       int
	MaxNesting          int
	AvgFunctionLength   float64
	EssentialComplexity float64
	IndentSD            float64
}

// FunctionCC is the per-function complexity record for one file in one
// scan.
type FunctionCC struct {
	Path                string `json:"path"`
	ScanID              int64  `json:"scan_id"`
	FunctionName        string `json:"function_name"`
	LineStart           int    `json:"line_start"`
	LineEnd             int    `json:"line_end"`
	Complexity          int    `json:"complexity"`
	EssentialComplexity int    `json:"essential_complexity"`
	IsDispatch          bool   `json:"is_dispatch"`
}

// CKValidMetrics are the only metric names a CKMetrics row may carry.
var CKValidMetrics = map[string]bool{
	"wmc": true, "cbo": true, "direct_bases": true, "rfc": true, "lcom": true,
}

// CKMetrics is the CK-suite OO metric set for one file in one scan,
// stored as an entity-attribute-value fan-out (one row per metric name).
type CKMetrics struct {
	Path    string
	ScanID  int64
	Metrics map[string]float64
}

// Rows expands Metrics into one (path, scan_id, metric, value) tuple per
// known metric name; unknown names are dropped, matching the filtering
// the store applies on insert.
func (c CKMetrics) Rows() []CKMetricRow {
	rows := make([]CKMetricRow, 0, len(c.Metrics))
	for name, value := range c.Metrics {
		if !CKValidMetrics[name] {
			continue
		}
		rows = append(rows, CKMetricRow{Path: c.Path, ScanID: c.ScanID, Metric: name, Value: value})
	}
	return rows
}

// CKMetricRow is a single EAV row as stored in file_metrics.
type CKMetricRow struct {
	Path   string
	ScanID int64
	Metric string
	Value  float64
}

// CKFromRows reassembles a CKMetrics from EAV rows sharing a path and
// scan_id. Returns the zero value and false if rows is empty.
func CKFromRows(rows []CKMetricRow) (CKMetrics, bool) {
	if len(rows) == 0 {
		return CKMetrics{}, false
	}
	m := CKMetrics{Path: rows[0].Path, ScanID: rows[0].ScanID, Metrics: make(map[string]float64, len(rows))}
	for _, r := range rows {
		m.Metrics[r.Metric] = r.Value
	}
	return m, true
}

// GitStats is history-derived metrics for a file: a single current-state
// row per path, NOT scan-versioned. Recomputed wholesale on every scan.
type GitStats struct {
	Path              string
	Churn             int
	Authors           int
	AgeDays           int
	Hotspot           float64
	OwnershipFraction float64
	MinorContributors int
}

// CoChange is one unordered pair of files observed to change together in
// the same commits. PathA < PathB gives each pair a single row.
type CoChange struct {
	PathA string
	PathB string
	Count int
}

// FileState is the incremental-scan bookkeeping row for one file.
type FileState struct {
	Path    string
	Mtime   int64
	GitBlob string
}

// ScanMeta is metadata for one scan run.
type ScanMeta struct {
	ID         int64
	ScannedAt  time.Time
	GitHead    string
	FilesCount int
	DurationMS int64
}

// IsStale reports whether this scan's recorded HEAD no longer matches the
// repository's current HEAD.
func (s ScanMeta) IsStale(currentHead string) bool {
	return s.GitHead != currentHead
}

// ComplexityTrend is one (path, scan) data point retained across the
// scan_meta retention window so trend direction can be fit over time.
type ComplexityTrend struct {
	Path                string
	ScanID              int64
	ScannedAt           time.Time
	Complexity          float64
	EssentialComplexity float64
}

// TrendDirection classifies a path's complexity history.
type TrendDirection string

const (
	TrendDeteriorating TrendDirection = "deteriorating"
	TrendRefactored    TrendDirection = "refactored"
	TrendStable        TrendDirection = "stable"
)

// Severity classifies a hotspot or a raw complexity value into a
// reporting tier.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Fusion/classification thresholds, named per the original proposal so
// every consumer of qmodel shares one set of constants.
const (
	HotspotThreshold = 0.5
	CCCritical       = 30.0
	CCWarning        = 15.0
	HotspotCritical  = 0.75
	HotspotWarning   = 0.5
	FunctionCCFlag   = 10
)

// ClassifyComplexity buckets a file-level complexity value.
func ClassifyComplexity(c float64) Severity {
	switch {
	case c >= CCCritical:
		return SeverityCritical
	case c >= CCWarning:
		return SeverityWarning
	default:
		return SeverityOK
	}
}

// ClassifyHotspot buckets a hotspot score.
func ClassifyHotspot(h float64) Severity {
	switch {
	case h > HotspotCritical:
		return SeverityCritical
	case h > HotspotWarning:
		return SeverityWarning
	default:
		return SeverityOK
	}
}

// ProjectMetrics is a computed (never persisted) aggregate view combining
// a scan's FileEntry rows with the repository's current GitStats.
type ProjectMetrics struct {
	TotalFiles    int
	TotalLOC      int
	AvgComplexity float64
	MaxComplexity float64
	AvgChurn      float64
	HotspotCount  int
	TopHotspots   []HotspotRank
	QualityScore  int
}

// HotspotRank names a file's hotspot score for ranked reporting, with the
// trend direction for that path (when trend history exists).
type HotspotRank struct {
	Path    string
	Hotspot float64
	Trend   TrendDirection
}
