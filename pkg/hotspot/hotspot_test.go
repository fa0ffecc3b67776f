package hotspot

import (
	"testing"

	"github.com/weave-dev/weave-quality/pkg/qmodel"
)

func TestFuseWritesNormalizedProduct(t *testing.T) {
	t.Parallel()

	entries := []qmodel.FileEntry{
		{Path: "a.py", CyclomaticComplexity: 1},
		{Path: "b.py", CyclomaticComplexity: 10},
	}
	stats := []qmodel.GitStats{
		{Path: "a.py", Churn: 0},
		{Path: "b.py", Churn: 20},
	}

	out := Fuse(entries, stats)
	if out[0].Hotspot != 0 {
		t.Errorf("a.py hotspot = %v, want 0 (min on both axes)", out[0].Hotspot)
	}
	if out[1].Hotspot != 1 {
		t.Errorf("b.py hotspot = %v, want 1 (max on both axes)", out[1].Hotspot)
	}
}

func TestFuseIgnoresPathsMissingFromEitherSet(t *testing.T) {
	t.Parallel()

	entries := []qmodel.FileEntry{{Path: "a.py", CyclomaticComplexity: 5}}
	stats := []qmodel.GitStats{
		{Path: "a.py", Churn: 3},
		{Path: "untracked.py", Churn: 9},
	}

	out := Fuse(entries, stats)
	if out[1].Hotspot != 0 {
		t.Errorf("untracked.py hotspot = %v, want 0 (not in FileEntry set)", out[1].Hotspot)
	}
}

func TestFuseConstantArrayYieldsZero(t *testing.T) {
	t.Parallel()

	entries := []qmodel.FileEntry{
		{Path: "a.py", CyclomaticComplexity: 5},
		{Path: "b.py", CyclomaticComplexity: 5},
	}
	stats := []qmodel.GitStats{
		{Path: "a.py", Churn: 2},
		{Path: "b.py", Churn: 2},
	}

	out := Fuse(entries, stats)
	for _, s := range out {
		if s.Hotspot != 0 {
			t.Errorf("constant input should yield hotspot 0, got %v", s.Hotspot)
		}
	}
}

func TestTopHotspotsFiltersSortsAndTruncates(t *testing.T) {
	t.Parallel()

	stats := []qmodel.GitStats{
		{Path: "low", Hotspot: 0.3},
		{Path: "high", Hotspot: 0.9},
		{Path: "mid", Hotspot: 0.6},
	}

	top := TopHotspots(stats, 0.5, 1)
	if len(top) != 1 || top[0].Path != "high" {
		t.Fatalf("TopHotspots = %+v, want [high]", top)
	}
}

func TestClassifyFunctionCCExemptsDispatch(t *testing.T) {
	t.Parallel()

	flagged := ClassifyFunctionCC(qmodel.FunctionCC{Complexity: 15})
	if !flagged {
		t.Error("expected complexity 15 to be flagged")
	}

	exempt := ClassifyFunctionCC(qmodel.FunctionCC{Complexity: 15, IsDispatch: true})
	if exempt {
		t.Error("dispatch function must be exempt regardless of complexity")
	}
}

func TestQualityScoreClampsToRange(t *testing.T) {
	t.Parallel()

	entries := make([]qmodel.FileEntry, 0, 30)
	stats := make([]qmodel.GitStats, 0, 30)
	for i := 0; i < 30; i++ {
		path := string(rune('a' + i%26))
		entries = append(entries, qmodel.FileEntry{Path: path, CyclomaticComplexity: 35})
		stats = append(stats, qmodel.GitStats{Path: path, Hotspot: 0.9})
	}

	score := QualityScore(entries, stats)
	if score != 0 {
		t.Errorf("QualityScore = %d, want 0 (clamped)", score)
	}
}

func TestQualityScorePerfectWhenClean(t *testing.T) {
	t.Parallel()

	entries := []qmodel.FileEntry{{Path: "a.py", CyclomaticComplexity: 2}}
	stats := []qmodel.GitStats{{Path: "a.py", Hotspot: 0.1}}
	if score := QualityScore(entries, stats); score != 100 {
		t.Errorf("QualityScore = %d, want 100", score)
	}
}

func TestGiniZeroForUniformOrTooFew(t *testing.T) {
	t.Parallel()

	if g := Gini(nil); g != 0 {
		t.Errorf("Gini(nil) = %v, want 0", g)
	}
	if g := Gini([]int{5}); g != 0 {
		t.Errorf("Gini single value = %v, want 0", g)
	}
	if g := Gini([]int{3, 3, 3}); g != 0 {
		t.Errorf("Gini uniform = %v, want 0", g)
	}
}

func TestGiniPositiveForSkewedDistribution(t *testing.T) {
	t.Parallel()

	g := Gini([]int{1, 1, 1, 20})
	if g <= 0 {
		t.Errorf("Gini skewed = %v, want > 0", g)
	}
}

func TestClassifyTrendDeteriorating(t *testing.T) {
	t.Parallel()

	points := []TrendPoint{{Complexity: 10}, {Complexity: 12}, {Complexity: 14}, {Complexity: 20}}
	if got := ClassifyTrend(points); got != qmodel.TrendDeteriorating {
		t.Errorf("ClassifyTrend = %v, want deteriorating", got)
	}
}

func TestClassifyTrendRefactored(t *testing.T) {
	t.Parallel()

	points := []TrendPoint{{Complexity: 20}, {Complexity: 14}, {Complexity: 12}, {Complexity: 10}}
	if got := ClassifyTrend(points); got != qmodel.TrendRefactored {
		t.Errorf("ClassifyTrend = %v, want refactored", got)
	}
}

func TestClassifyTrendStableWithinDeadBand(t *testing.T) {
	t.Parallel()

	points := []TrendPoint{{Complexity: 10}, {Complexity: 10.1}, {Complexity: 9.9}, {Complexity: 10}}
	if got := ClassifyTrend(points); got != qmodel.TrendStable {
		t.Errorf("ClassifyTrend = %v, want stable", got)
	}
}

func TestClassifyTrendStableForSinglePoint(t *testing.T) {
	t.Parallel()

	if got := ClassifyTrend([]TrendPoint{{Complexity: 5}}); got != qmodel.TrendStable {
		t.Errorf("ClassifyTrend single point = %v, want stable", got)
	}
}
