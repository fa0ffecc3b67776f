package shellheur

import "testing"

func TestComplexityCountsBranchKeywordsAndBoolOperators(t *testing.T) {
	t.Parallel()

	src := `#!/bin/sh
if [ -f "$1" ] && [ -r "$1" ]; then
  echo "ok"
elif [ -d "$1" ]; then
  echo "dir"
fi
for f in *.sh; do
  echo "$f"
done
`
	entry := Analyze([]byte(src), "script.sh", 1)
	// base 1 + if + elif + for = 4, + one && = 5
	if entry.CyclomaticComplexity != 5 {
		t.Errorf("CyclomaticComplexity = %v, want 5", entry.CyclomaticComplexity)
	}
}

func TestFunctionDeclarationBothStyles(t *testing.T) {
	t.Parallel()

	src := `function greet() {
  echo "hi"
}

build() {
  echo "building"
  echo "done"
}
`
	entry := Analyze([]byte(src), "lib.sh", 1)
	if entry.FunctionCount != 2 {
		t.Fatalf("FunctionCount = %d, want 2", entry.FunctionCount)
	}
}

func TestFunctionBraceOnOwnLine(t *testing.T) {
	t.Parallel()

	src := `deploy()
{
  echo "deploying"
  echo "done"
}
`
	spans := findFunctions(splitLines(src))
	if len(spans) != 1 {
		t.Fatalf("expected 1 function, got %d", len(spans))
	}
	if spans[0].name != "deploy" {
		t.Errorf("name = %q, want deploy", spans[0].name)
	}
	if spans[0].end != 5 {
		t.Errorf("end = %d, want 5", spans[0].end)
	}
}

func TestIndentSDZeroForFlatFile(t *testing.T) {
	t.Parallel()

	entry := Analyze([]byte("echo one\necho two\necho three\n"), "flat.sh", 1)
	if entry.IndentSD != 0 {
		t.Errorf("IndentSD = %v, want 0", entry.IndentSD)
	}
}

func TestCommentsExcludedFromLOCAndComplexity(t *testing.T) {
	t.Parallel()

	src := "# if this were code it would count\necho hi\n"
	entry := Analyze([]byte(src), "x.sh", 1)
	if entry.LOC != 1 {
		t.Errorf("LOC = %d, want 1", entry.LOC)
	}
	if entry.CyclomaticComplexity != 1 {
		t.Errorf("CyclomaticComplexity = %v, want 1 (comment must not match branch keyword)", entry.CyclomaticComplexity)
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
