package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGlobMatchExact(t *testing.T) {
	if !globMatch("main.go", "main.go") {
		t.Fatalf("expected exact match")
	}
	if globMatch("main.go", "pkg/main.go") {
		t.Fatalf("expected no match across a path separator")
	}
}

func TestGlobMatchVendorDoubleStarSuffix(t *testing.T) {
	if !globMatch("vendor/**", "vendor/pkg/lib.go") {
		t.Fatalf("expected vendor/** to match a nested file")
	}
	if !globMatch("vendor/**", "vendor") {
		t.Fatalf("expected vendor/** to match the directory itself")
	}
	if globMatch("vendor/**", "other/pkg/lib.go") {
		t.Fatalf("expected vendor/** not to match outside vendor")
	}
}

func TestGlobMatchDoubleStarPrefix(t *testing.T) {
	if !globMatch("**/*.pb.go", "pkg/api/thing.pb.go") {
		t.Fatalf("expected **/*.pb.go to match a nested generated file")
	}
	if !globMatch("**/*.pb.go", "thing.pb.go") {
		t.Fatalf("expected **/*.pb.go to match a root-level file too")
	}
	if globMatch("**/*.pb.go", "thing.go") {
		t.Fatalf("expected **/*.pb.go not to match a non-generated file")
	}
}

func TestFilterCandidatesAppliesAllGlobs(t *testing.T) {
	files := []candidateFile{
		{Path: "main.go"},
		{Path: "vendor/lib/x.go"},
		{Path: "pkg/gen.pb.go"},
	}
	filtered := filterCandidates(files, []string{"vendor/**", "**/*.pb.go"})
	if len(filtered) != 1 || filtered[0].Path != "main.go" {
		t.Fatalf("expected only main.go to survive filtering, got %+v", filtered)
	}
}

func TestFilterCandidatesNoGlobsReturnsAllUnchanged(t *testing.T) {
	files := []candidateFile{{Path: "a.go"}, {Path: "b.go"}}
	filtered := filterCandidates(files, nil)
	if len(filtered) != 2 {
		t.Fatalf("expected no filtering with an empty glob list, got %+v", filtered)
	}
}

func TestResolveRepoRootExplicitArgWins(t *testing.T) {
	dir := t.TempDir()
	root, err := ResolveRepoRoot(dir)
	if err != nil {
		t.Fatalf("ResolveRepoRoot: %v", err)
	}
	abs, _ := filepath.Abs(dir)
	if root != abs {
		t.Fatalf("expected %q, got %q", abs, root)
	}
}

func TestResolveRepoRootWalksUpToGitAncestor(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}

	t.Chdir(nested)

	got, err := ResolveRepoRoot("")
	if err != nil {
		t.Fatalf("ResolveRepoRoot: %v", err)
	}
	resolvedRoot, _ := filepath.EvalSymlinks(root)
	resolvedGot, _ := filepath.EvalSymlinks(got)
	if resolvedGot != resolvedRoot {
		t.Fatalf("expected %q, got %q", resolvedRoot, resolvedGot)
	}
}

func TestResolveRepoRootErrorsWithNoGitAncestor(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if _, err := ResolveRepoRoot(""); err == nil {
		t.Fatalf("expected an error with no .git ancestor")
	}
}

func TestReadFileFallbackJoinsRootAndSlashPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "pkg"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pkg", "a.py"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	data, err := readFileFallback(dir, "pkg/a.py")
	if err != nil {
		t.Fatalf("readFileFallback: %v", err)
	}
	if string(data) != "x = 1\n" {
		t.Fatalf("unexpected contents: %q", data)
	}
}
