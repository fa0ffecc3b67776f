// Package hotspot fuses static complexity with history-derived churn
// into a single score, classifies severity, and computes the
// project-level quality score and per-file complexity Gini. Everything
// here is a pure function over qmodel values: no I/O, no persistence —
// the scanner orchestrator is the only caller that touches a store.
package hotspot

import (
	"math"
	"sort"

	"github.com/weave-dev/weave-quality/pkg/qmodel"
)

// Fuse takes the intersection of entries and stats on path, min-max
// normalizes complexity and churn across that common set, and writes
// hotspot = round(C'·H', 4) back into the matching GitStats in place.
// GitStats outside the intersection are returned unchanged with
// hotspot left at 0, per the data model's rule that an absent path
// carries no hotspot.
func Fuse(entries []qmodel.FileEntry, stats []qmodel.GitStats) []qmodel.GitStats {
	complexityByPath := make(map[string]float64, len(entries))
	for _, e := range entries {
		complexityByPath[e.Path] = e.CyclomaticComplexity
	}

	var common []int
	complexities := make([]float64, 0, len(stats))
	churns := make([]float64, 0, len(stats))
	for i, s := range stats {
		c, ok := complexityByPath[s.Path]
		if !ok {
			continue
		}
		common = append(common, i)
		complexities = append(complexities, c)
		churns = append(churns, float64(s.Churn))
	}

	normComplexity := minMax(complexities)
	normChurn := minMax(churns)

	out := make([]qmodel.GitStats, len(stats))
	copy(out, stats)
	for j, idx := range common {
		out[idx].Hotspot = round4(normComplexity[j] * normChurn[j])
	}
	return out
}

// minMax scales values into [0, 1]; an empty or constant input maps to
// all-zeros.
func minMax(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		return out
	}
	for i, v := range values {
		out[i] = (v - min) / (max - min)
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// TopHotspots returns stats with hotspot > threshold, sorted descending
// by hotspot, truncated to topN (0 means unbounded).
func TopHotspots(stats []qmodel.GitStats, threshold float64, topN int) []qmodel.GitStats {
	var filtered []qmodel.GitStats
	for _, s := range stats {
		if s.Hotspot > threshold {
			filtered = append(filtered, s)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Hotspot > filtered[j].Hotspot
	})
	if topN > 0 && len(filtered) > topN {
		filtered = filtered[:topN]
	}
	return filtered
}

// ClassifyFunctionCC reports whether a FunctionCC should be flagged:
// complexity strictly above the threshold, unless the function is
// exempt as a dispatch function.
func ClassifyFunctionCC(f qmodel.FunctionCC) bool {
	if f.IsDispatch {
		return false
	}
	return f.Complexity > qmodel.FunctionCCFlag
}

// QualityScore computes the project-level 0..100 score: start at 100,
// subtract 5 per file with hotspot > 0.5, 3 per file with complexity
// >= 30, 1 per file with 15 <= complexity < 30; clamp to [0, 100].
func QualityScore(entries []qmodel.FileEntry, stats []qmodel.GitStats) int {
	hotspotByPath := make(map[string]float64, len(stats))
	for _, s := range stats {
		hotspotByPath[s.Path] = s.Hotspot
	}

	score := 100
	for _, e := range entries {
		if hotspotByPath[e.Path] > qmodel.HotspotWarning {
			score -= 5
		}
		switch {
		case e.CyclomaticComplexity >= qmodel.CCCritical:
			score -= 3
		case e.CyclomaticComplexity >= qmodel.CCWarning:
			score -= 1
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Gini computes the Gini coefficient of a file's per-function
// complexity distribution. Returns 0 for fewer than two functions or a
// zero total.
func Gini(complexities []int) float64 {
	n := len(complexities)
	if n <= 1 {
		return 0
	}

	sorted := make([]float64, n)
	var total float64
	for i, c := range complexities {
		sorted[i] = float64(c)
		total += float64(c)
	}
	if total == 0 {
		return 0
	}
	sort.Float64s(sorted)

	var sum float64
	for i, c := range sorted {
		weight := float64(2*(i+1) - n - 1)
		sum += weight * c
	}
	return sum / (float64(n) * total)
}

// TrendPoint is one chronologically-ordered observation for a single
// path's complexity-trend regression.
type TrendPoint struct {
	Complexity float64
}

// trendDeadBand is the ±3% relative-slope band inside which a trend is
// classified as stable.
const trendDeadBand = 0.03

// ClassifyTrend fits a simple linear regression over points in
// chronological order and classifies the relative slope (slope / mean)
// against a ±3% dead-band. Fewer than two points is always stable.
func ClassifyTrend(points []TrendPoint) qmodel.TrendDirection {
	if len(points) < 2 {
		return qmodel.TrendStable
	}

	n := float64(len(points))
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range points {
		x := float64(i)
		y := p.Complexity
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return qmodel.TrendStable
	}
	slope := (n*sumXY - sumX*sumY) / denom
	mean := sumY / n
	if mean == 0 {
		return qmodel.TrendStable
	}

	relative := slope / mean
	switch {
	case relative > trendDeadBand:
		return qmodel.TrendDeteriorating
	case relative < -trendDeadBand:
		return qmodel.TrendRefactored
	default:
		return qmodel.TrendStable
	}
}
