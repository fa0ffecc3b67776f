package idvalidate

import "testing"

func TestValidNodeID(t *testing.T) {
	t.Parallel()

	valid := []string{"lx-abcd", "wv-0123abcd", "ab-" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"[:64]}
	for _, id := range valid {
		if !ValidNodeID(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}

	invalid := []string{"", "LX-abcd", "lx_abcd", "lx-abcd; rm -rf /", "lx-xyz", "l-abcd", "lx-abc"}
	for _, id := range invalid {
		if ValidNodeID(id) {
			t.Errorf("expected %q to be invalid", id)
		}
	}
}

func TestValidFindingID(t *testing.T) {
	t.Parallel()

	if !ValidFindingID("0123456789ab") {
		t.Error("expected 12 hex chars to be valid")
	}
	if ValidFindingID("0123456789abc") {
		t.Error("13 chars should be invalid")
	}
	if ValidFindingID("0123456789aG") {
		t.Error("non-hex char should be invalid")
	}
}

func TestRequireHelpers(t *testing.T) {
	t.Parallel()

	if err := RequireNodeID("lx-abcd"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := RequireNodeID("bad id"); err == nil {
		t.Error("expected error for invalid node id")
	}
	if err := RequireFindingID("0123456789ab"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := RequireFindingID("bad"); err == nil {
		t.Error("expected error for invalid finding id")
	}
}
