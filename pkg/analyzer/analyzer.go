// Package analyzer is the per-file dispatch layer: it picks an analyzer
// family by extension (falling back to a shebang check for
// extensionless files), runs it, and normalizes the result into the
// shared FileEntry/CKMetrics/FunctionCC shapes the scanner persists.
package analyzer

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/weave-dev/weave-quality/pkg/analyzer/pyflow"
	"github.com/weave-dev/weave-quality/pkg/analyzer/shellheur"
	"github.com/weave-dev/weave-quality/pkg/qmodel"
)

// Family names which analyzer owns a file.
type Family string

const (
	FamilyStructured Family = "structured"
	FamilyHeuristic  Family = "heuristic"
	FamilyUnknown    Family = "unknown"
)

var structuredExtensions = map[string]bool{
	".py": true,
}

var heuristicExtensions = map[string]bool{
	".sh": true, ".bash": true, ".zsh": true,
}

// shebangDirective matches the interpreter named on a `#!` line; only
// the first 256 bytes of the file are inspected.
var shebangDirective = regexp.MustCompile(`^#!\s*\S*/(?:env\s+)?(\w+)`)

// Detect classifies path (and, for extensionless files, a source
// prefix) into an analyzer family.
func Detect(path string, source []byte) Family {
	ext := extensionOf(path)
	if ext != "" {
		switch {
		case structuredExtensions[ext]:
			return FamilyStructured
		case heuristicExtensions[ext]:
			return FamilyHeuristic
		default:
			return FamilyUnknown
		}
	}

	prefix := source
	if len(prefix) > 256 {
		prefix = prefix[:256]
	}
	nl := bytes.IndexByte(prefix, '\n')
	if nl >= 0 {
		prefix = prefix[:nl]
	}

	m := shebangDirective.FindSubmatch(prefix)
	if m == nil {
		return FamilyUnknown
	}
	switch string(m[1]) {
	case "python", "python3":
		return FamilyStructured
	case "sh", "bash", "zsh":
		return FamilyHeuristic
	default:
		return FamilyUnknown
	}
}

func extensionOf(path string) string {
	slash := strings.LastIndexByte(path, '/')
	name := path
	if slash >= 0 {
		name = path[slash+1:]
	}
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return ""
	}
	return strings.ToLower(name[dot:])
}

// Result is the normalized output of analyzing one file.
type Result struct {
	Entry     qmodel.FileEntry
	CK        *qmodel.CKMetrics
	Functions []qmodel.FunctionCC
}

// Analyze runs the appropriate analyzer for path, falling back to the
// heuristic analyzer when the structured analyzer cannot parse source.
// When no structured/heuristic extension or shebang matches, it returns a
// minimal record with language unknown and complexities of 1.
func Analyze(source []byte, path string, scanID int64) Result {
	switch Detect(path, source) {
	case FamilyStructured:
		res, err := pyflow.Analyze(source, path, scanID)
		if err == nil {
			return Result{Entry: res.Entry, CK: res.CK, Functions: res.Functions}
		}
		fallthrough
	case FamilyHeuristic:
		return Result{Entry: shellheur.Analyze(source, path, scanID)}
	default:
		return Result{Entry: qmodel.FileEntry{
			Path:                 path,
			ScanID:               scanID,
			Language:             qmodel.LangUnknown,
			CyclomaticComplexity: 1,
			EssentialComplexity:  1,
		}}
	}
}
