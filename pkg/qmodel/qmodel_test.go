package qmodel

import "testing"

func TestCKMetricsRoundTrip(t *testing.T) {
	t.Parallel()

	ck := CKMetrics{
		Path:   "pkg/foo.py",
		ScanID: 3,
		Metrics: map[string]float64{
			"wmc": 12, "cbo": 4, "direct_bases": 2, "rfc": 9, "lcom": 0.5, "bogus": 99,
		},
	}

	rows := ck.Rows()
	if len(rows) != 5 {
		t.Fatalf("expected 5 valid rows (bogus dropped), got %d", len(rows))
	}

	back, ok := CKFromRows(rows)
	if !ok {
		t.Fatal("CKFromRows returned false for non-empty rows")
	}
	if back.Path != ck.Path || back.ScanID != ck.ScanID {
		t.Fatalf("round trip lost identity: %+v", back)
	}
	if _, present := back.Metrics["bogus"]; present {
		t.Fatal("invalid metric name survived round trip")
	}
	if back.Metrics["wmc"] != 12 {
		t.Fatalf("wmc = %v, want 12", back.Metrics["wmc"])
	}
}

func TestCKFromRowsEmpty(t *testing.T) {
	t.Parallel()

	if _, ok := CKFromRows(nil); ok {
		t.Fatal("expected false for empty rows")
	}
}

func TestClassifyComplexity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		c    float64
		want Severity
	}{
		{1, SeverityOK},
		{14.9, SeverityOK},
		{15, SeverityWarning},
		{29.9, SeverityWarning},
		{30, SeverityCritical},
		{100, SeverityCritical},
	}
	for _, tc := range cases {
		if got := ClassifyComplexity(tc.c); got != tc.want {
			t.Errorf("ClassifyComplexity(%v) = %v, want %v", tc.c, got, tc.want)
		}
	}
}

func TestClassifyHotspot(t *testing.T) {
	t.Parallel()

	cases := []struct {
		h    float64
		want Severity
	}{
		{0, SeverityOK},
		{0.5, SeverityOK},
		{0.51, SeverityWarning},
		{0.75, SeverityWarning},
		{0.76, SeverityCritical},
	}
	for _, tc := range cases {
		if got := ClassifyHotspot(tc.h); got != tc.want {
			t.Errorf("ClassifyHotspot(%v) = %v, want %v", tc.h, got, tc.want)
		}
	}
}

func TestScanMetaIsStale(t *testing.T) {
	t.Parallel()

	s := ScanMeta{GitHead: "abc123"}
	if s.IsStale("abc123") {
		t.Fatal("matching head should not be stale")
	}
	if !s.IsStale("def456") {
		t.Fatal("differing head should be stale")
	}
}
