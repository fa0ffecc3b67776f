// Package shellheur is the line-oriented heuristic analyzer used for the
// indentation-structured shell-like language, and as the fallback path
// when the structured analyzer's syntax tree cannot be parsed. It never
// produces CK metrics or per-function records: just the one FileEntry
// shape every analyzer shares.
package shellheur

import (
	"regexp"
	"strings"

	"github.com/weave-dev/weave-quality/pkg/qmodel"
)

// IndentUnit is the conventional indent width for the shell-like
// language; a tab counts as one full unit, two spaces as one unit.
const IndentUnit = 2

var (
	branchKeyword = regexp.MustCompile(`(?:^|[\s;])(if|elif|case|for|while|until)(?:[\s;]|$)`)
	boolOperator  = regexp.MustCompile(`&&|\|\|`)
	funcDecl      = regexp.MustCompile(`^\s*(?:function\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*\(\)\s*\{?`)
	braceOnlyLine = regexp.MustCompile(`^\s*\{\s*$`)
)

// Analyze produces the single FileEntry record the heuristic analyzer
// emits for path; it never fails, since it never attempts a full parse.
func Analyze(source []byte, path string, scanID int64) qmodel.FileEntry {
	lines := strings.Split(string(source), "\n")

	complexity := 1
	loc := 0
	for _, line := range lines {
		if !isCodeLine(line) {
			continue
		}
		loc++
		if branchKeyword.MatchString(line) {
			complexity++
		}
		complexity += len(boolOperator.FindAllString(line, -1))
	}

	fns := findFunctions(lines)
	var lengthSum int
	for _, f := range fns {
		lengthSum += f.end - f.start + 1
	}
	avgLength := 0.0
	if len(fns) > 0 {
		avgLength = float64(lengthSum) / float64(len(fns))
	}

	return qmodel.FileEntry{
		Path:                 path,
		ScanID:               scanID,
		Language:             qmodel.LangHeuristic,
		LOC:                  loc,
		CyclomaticComplexity: float64(complexity),
		FunctionCount:        len(fns),
		MaxNesting:           maxNesting(lines),
		AvgFunctionLength:    avgLength,
		EssentialComplexity:  1,
		IndentSD:             indentSD(lines),
	}
}

func isCodeLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && !strings.HasPrefix(trimmed, "#")
}

type funcSpan struct {
	name       string
	start, end int
}

// findFunctions recognizes `name() {` (with or without a leading
// `function` keyword) and brace-matches to the closing line.
func findFunctions(lines []string) []funcSpan {
	var spans []funcSpan
	for i, line := range lines {
		m := funcDecl.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		depth := strings.Count(line, "{") - strings.Count(line, "}")
		end := i
		if depth <= 0 {
			// Opening brace is on its own line, or absent entirely; scan
			// forward for the first line carrying one.
			for j := i + 1; j < len(lines) && depth <= 0; j++ {
				if braceOnlyLine.MatchString(lines[j]) {
					depth = 1
					end = j
				}
			}
		}
		for depth > 0 && end+1 < len(lines) {
			end++
			depth += strings.Count(lines[end], "{") - strings.Count(lines[end], "}")
		}

		spans = append(spans, funcSpan{name: m[1], start: i + 1, end: end + 1})
	}
	return spans
}

func maxNesting(lines []string) int {
	max := 0
	for _, line := range lines {
		if !isCodeLine(line) {
			continue
		}
		if level := indentLevel(line); level > max {
			max = level
		}
	}
	return max
}

func indentLevel(line string) int {
	tabs, spaces := leadingWhitespace(line)
	if tabs > 0 {
		return tabs
	}
	return spaces / IndentUnit
}

func leadingWhitespace(line string) (tabs, spaces int) {
	for _, r := range line {
		switch r {
		case '\t':
			tabs++
		case ' ':
			spaces++
		default:
			return tabs, spaces
		}
	}
	return tabs, spaces
}

func indentSD(lines []string) float64 {
	var levels []float64
	for _, line := range lines {
		if !isCodeLine(line) {
			continue
		}
		tabs, spaces := leadingWhitespace(line)
		levels = append(levels, float64(tabs)+float64(spaces)/float64(IndentUnit))
	}
	if len(levels) < 2 {
		return 0
	}

	var mean float64
	for _, l := range levels {
		mean += l
	}
	mean /= float64(len(levels))

	var variance float64
	for _, l := range levels {
		d := l - mean
		variance += d * d
	}
	variance /= float64(len(levels))

	return sqrt(variance)
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	x := v
	for i := 0; i < 20; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}
