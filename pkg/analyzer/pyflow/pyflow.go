// Package pyflow is the structured analyzer for the scripting language: a
// full syntax-tree walk that computes cyclomatic and essential
// complexity, nesting depth, dispatch-function detection, CK-suite OO
// metrics, and indentation variance. It collects everything in one tree
// walk and runs a second, scoped visitor per function for the
// per-function figures, mirroring the enter/exit visitor shape used
// elsewhere in this codebase for syntax-tree analysis but operating
// directly on tree-sitter nodes instead of a canonicalized AST.
//
// On any parse failure the caller should fall back to
// pkg/analyzer/shellheur-style regex heuristics; this package reports
// that condition via ErrParseFailed rather than attempting a partial
// result.
package pyflow

import (
	"context"
	"errors"
	"math"
	"strings"

	forest "github.com/alexaandru/go-sitter-forest/python"
	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/weave-dev/weave-quality/pkg/qmodel"
)

// IndentWidth is the conventional indentation unit for the scripting
// language; tabs each count as one level regardless of width.
const IndentWidth = 4

// ErrParseFailed indicates the source could not be parsed as valid
// syntax; the caller should fall through to the heuristic analyzer.
var ErrParseFailed = errors.New("pyflow: parse failed")

var language = sitter.NewLanguage(forest.GetLanguage())

// Result is everything the structured analyzer produces for one file.
type Result struct {
	Entry     qmodel.FileEntry
	CK        *qmodel.CKMetrics
	Functions []qmodel.FunctionCC
}

// Analyze parses source and computes the full structured-analyzer
// result for path at scanID. Returns ErrParseFailed if source does not
// parse.
func Analyze(source []byte, path string, scanID int64) (Result, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(language)

	tree, err := parser.ParseString(context.Background(), nil, source)
	if err != nil {
		return Result{}, ErrParseFailed
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return Result{}, ErrParseFailed
	}

	col := &collected{imports: make(map[string]bool)}
	walkCollect(root, "", "", source, col)

	fileComplexity, _, fileNesting := analyzeSpan(root, source, false)

	functions := make([]qmodel.FunctionCC, 0, len(col.funcs))
	fnComplexity := make(map[sitter.Node]int, len(col.funcs))
	var fnLengthSum, fnLengthCount int

	for _, fn := range col.funcs {
		cc, essential, nesting := analyzeSpan(fn.node, source, true)
		fnComplexity[fn.node] = cc
		functions = append(functions, qmodel.FunctionCC{
			Path:                path,
			ScanID:              scanID,
			FunctionName:        fn.name,
			LineStart:           fn.startLine,
			LineEnd:             fn.endLine,
			Complexity:          cc,
			EssentialComplexity: essential,
			IsDispatch:          isDispatch(fn.node, source),
		})
		_ = nesting
		fnLengthSum += fn.endLine - fn.startLine + 1
		fnLengthCount++
	}

	entry := qmodel.FileEntry{
		Path:                path,
		ScanID:              scanID,
		Language:            qmodel.LangStructured,
		LOC:                 countLOC(source),
		CyclomaticComplexity: float64(fileComplexity),
		FunctionCount:       len(col.funcs),
		MaxNesting:          fileNesting,
		EssentialComplexity: maxEssential(functions),
		IndentSD:            indentSD(source, IndentWidth),
	}
	if fnLengthCount > 0 {
		entry.AvgFunctionLength = float64(fnLengthSum) / float64(fnLengthCount)
	}

	ck := ckMetrics(col.classes, col.imports, fnComplexity, source)

	return Result{Entry: entry, CK: ck, Functions: functions}, nil
}

func maxEssential(fns []qmodel.FunctionCC) float64 {
	max := 0
	for _, f := range fns {
		if f.EssentialComplexity > max {
			max = f.EssentialComplexity
		}
	}
	if max == 0 {
		return 1
	}
	return float64(max)
}

// --- single-pass collection ------------------------------------------------

type funcInfo struct {
	node      sitter.Node
	name      string
	startLine int
	endLine   int
	inClass   bool
}

type classInfo struct {
	node  sitter.Node
	name  string
	bases int
}

type collected struct {
	funcs    []funcInfo
	classes  []classInfo
	imports  map[string]bool
}

func walkCollect(n sitter.Node, parent, grandparent string, source []byte, out *collected) {
	t := n.Type()

	switch t {
	case "function_definition":
		name := fieldText(n, "name", source)
		out.funcs = append(out.funcs, funcInfo{
			node:      n,
			name:      name,
			startLine: int(n.StartPoint().Row) + 1,
			endLine:   int(n.EndPoint().Row) + 1,
			inClass:   parent == "block" && grandparent == "class_definition",
		})
	case "class_definition":
		out.classes = append(out.classes, classInfo{
			node:  n,
			name:  fieldText(n, "name", source),
			bases: countBases(n, source),
		})
	case "import_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if name := dottedNameFirstSegment(n.NamedChild(uint32(i)), source); name != "" {
				out.imports[name] = true
			}
		}
	case "import_from_statement":
		if mod := n.ChildByFieldName("module_name"); !mod.IsNull() {
			if name := dottedNameFirstSegment(mod, source); name != "" {
				out.imports[name] = true
			}
		}
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		walkCollect(n.NamedChild(uint32(i)), t, parent, source, out)
	}
}

func countBases(classNode sitter.Node, source []byte) int {
	bases := classNode.ChildByFieldName("superclasses")
	if bases.IsNull() {
		return 0
	}
	return int(bases.NamedChildCount())
}

func dottedNameFirstSegment(n sitter.Node, source []byte) string {
	t := n.Type()
	if t == "aliased_import" {
		name := n.ChildByFieldName("name")
		if name.IsNull() {
			return ""
		}
		n, t = name, name.Type()
	}
	switch t {
	case "dotted_name":
		if n.NamedChildCount() > 0 {
			return n.NamedChild(0).Content(source)
		}
		return n.Content(source)
	case "identifier":
		return n.Content(source)
	default:
		return ""
	}
}

func fieldText(n sitter.Node, field string, source []byte) string {
	f := n.ChildByFieldName(field)
	if f.IsNull() {
		return ""
	}
	return f.Content(source)
}

// --- complexity / essential complexity / nesting --------------------------

type spanState struct {
	complexity   int
	essential    int
	maxNesting   int
	returnDepths map[int]bool
}

// analyzeSpan computes (complexity, essential complexity, max nesting)
// over n's subtree. When respectFunctionBoundary is true (per-function
// analysis), the walk refuses to descend into nested function
// definitions; when false (file-level analysis), it descends through
// everything, matching the whole-tree visitor spec.md describes for the
// file-level figure.
func analyzeSpan(n sitter.Node, source []byte, respectFunctionBoundary bool) (complexity, essential, maxNesting int) {
	st := &spanState{complexity: 1, essential: 1, returnDepths: make(map[int]bool)}
	walkSpan(n, 0, 0, false, st, source, true, respectFunctionBoundary)
	if len(st.returnDepths) > 1 {
		st.essential += len(st.returnDepths) - 1
	}
	return st.complexity, st.essential, st.maxNesting
}

func walkSpan(n sitter.Node, depth, loopDepth int, inExcept bool, st *spanState, source []byte, isRoot, respectBoundary bool) {
	t := n.Type()
	if respectBoundary && t == "function_definition" && !isRoot {
		return
	}

	newDepth, newLoopDepth, newInExcept := depth, loopDepth, inExcept

	switch t {
	case "if_statement", "elif_clause":
		st.complexity++
		newDepth = depth + 1
	case "for_statement", "while_statement":
		st.complexity++
		newDepth = depth + 1
		newLoopDepth = loopDepth + 1
	case "except_clause":
		st.complexity++
		newDepth = depth + 1
		newInExcept = true
	case "match_statement":
		newDepth = depth + 1
	case "case_clause":
		st.complexity++
	case "boolean_operator":
		st.complexity++
	case "assert_statement":
		st.complexity++
	case "for_in_clause":
		st.complexity++
	case "if_clause":
		st.complexity++
	case "break_statement":
		st.essential++
	case "continue_statement":
		if loopDepth >= 2 {
			st.essential++
		}
	case "raise_statement":
		if inExcept && n.NamedChildCount() == 0 {
			st.essential++
		}
	case "return_statement":
		st.returnDepths[depth] = true
	}

	if newDepth > st.maxNesting {
		st.maxNesting = newDepth
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		walkSpan(n.NamedChild(uint32(i)), newDepth, newLoopDepth, newInExcept, st, source, false, respectBoundary)
	}
}

// --- dispatch-function detection -------------------------------------------

var controlFlowTypes = map[string]bool{
	"if_statement": true, "for_statement": true, "while_statement": true,
	"try_statement": true, "with_statement": true, "match_statement": true,
}

func isDispatch(fn sitter.Node, source []byte) bool {
	body := fn.ChildByFieldName("body")
	if body.IsNull() {
		return false
	}
	stmts := make([]sitter.Node, 0, body.NamedChildCount())
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmts = append(stmts, body.NamedChild(uint32(i)))
	}
	if len(stmts) > 0 && isDocstring(stmts[0]) {
		stmts = stmts[1:]
	}
	if len(stmts) != 1 {
		return false
	}

	switch stmts[0].Type() {
	case "match_statement":
		return true
	case "if_statement":
		return ifChainIsFlat(stmts[0])
	default:
		return false
	}
}

func isDocstring(n sitter.Node) bool {
	if n.Type() != "expression_statement" || n.NamedChildCount() != 1 {
		return false
	}
	return n.NamedChild(0).Type() == "string"
}

func ifChainIsFlat(ifStmt sitter.Node) bool {
	branches := []sitter.Node{ifStmt.ChildByFieldName("consequence")}
	for i := 0; i < int(ifStmt.NamedChildCount()); i++ {
		c := ifStmt.NamedChild(uint32(i))
		switch c.Type() {
		case "elif_clause":
			branches = append(branches, c.ChildByFieldName("consequence"))
		case "else_clause":
			branches = append(branches, c.ChildByFieldName("body"))
		}
	}
	for _, b := range branches {
		if b.IsNull() {
			continue
		}
		if containsControlFlow(b) {
			return false
		}
	}
	return true
}

func containsControlFlow(n sitter.Node) bool {
	if n.IsNull() {
		return false
	}
	if controlFlowTypes[n.Type()] {
		return true
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if containsControlFlow(n.NamedChild(uint32(i))) {
			return true
		}
	}
	return false
}

// --- CK-suite OO metrics ----------------------------------------------------

func ckMetrics(classes []classInfo, imports map[string]bool, fnComplexity map[sitter.Node]int, source []byte) *qmodel.CKMetrics {
	if len(classes) == 0 {
		if len(imports) == 0 {
			return nil
		}
		return &qmodel.CKMetrics{Metrics: map[string]float64{"cbo": float64(len(imports))}}
	}

	maxBases := 0
	var wmc float64
	var rfc int
	lcomValues := make([]float64, 0, len(classes))

	for _, c := range classes {
		if c.bases > maxBases {
			maxBases = c.bases
		}

		allMethods := collectFunctionDefs(c.node, nil)
		calls := countCalls(c.node)
		rfc += len(allMethods) + calls
		for _, m := range allMethods {
			if cc, ok := fnComplexity[m]; ok {
				wmc += float64(cc)
			} else {
				cc, _, _ := analyzeSpan(m, source, true)
				wmc += float64(cc)
			}
		}

		directMethods := directClassMethods(c.node)
		lcomValues = append(lcomValues, lcomForClass(directMethods, source))
	}

	lcom := 0.0
	if len(lcomValues) > 0 {
		var sum float64
		for _, v := range lcomValues {
			sum += v
		}
		lcom = sum / float64(len(lcomValues))
	}

	return &qmodel.CKMetrics{Metrics: map[string]float64{
		"wmc":          wmc,
		"cbo":          float64(len(imports)),
		"direct_bases": float64(maxBases),
		"rfc":          float64(rfc),
		"lcom":         lcom,
	}}
}

func collectFunctionDefs(n sitter.Node, out []sitter.Node) []sitter.Node {
	if n.Type() == "function_definition" {
		out = append(out, n)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = collectFunctionDefs(n.NamedChild(uint32(i)), out)
	}
	return out
}

func countCalls(n sitter.Node) int {
	count := 0
	if n.Type() == "call" {
		count++
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		count += countCalls(n.NamedChild(uint32(i)))
	}
	return count
}

func directClassMethods(classNode sitter.Node) []sitter.Node {
	body := classNode.ChildByFieldName("body")
	if body.IsNull() {
		return nil
	}
	var methods []sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		if c := body.NamedChild(uint32(i)); c.Type() == "function_definition" {
			methods = append(methods, c)
		}
	}
	return methods
}

// lcomForClass computes 1 - sharing_pairs/total_pairs averaged over a
// class's direct methods' self-attribute access sets; classes with fewer
// than two methods contribute 0.
func lcomForClass(methods []sitter.Node, source []byte) float64 {
	if len(methods) < 2 {
		return 0
	}

	attrSets := make([]map[string]bool, len(methods))
	for i, m := range methods {
		attrSets[i] = receiverAttributes(m, source)
	}

	totalPairs, sharingPairs := 0, 0
	for i := 0; i < len(attrSets); i++ {
		for j := i + 1; j < len(attrSets); j++ {
			totalPairs++
			if setsShare(attrSets[i], attrSets[j]) {
				sharingPairs++
			}
		}
	}
	if totalPairs == 0 {
		return 0
	}
	return 1 - float64(sharingPairs)/float64(totalPairs)
}

func setsShare(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}

// receiverAttributes collects the instance-attribute names a method
// accesses through its first positional parameter (conventionally, but
// not necessarily, named "self").
func receiverAttributes(method sitter.Node, source []byte) map[string]bool {
	receiver := firstParameterName(method, source)
	out := make(map[string]bool)
	if receiver == "" {
		return out
	}

	var walk func(sitter.Node)
	walk = func(n sitter.Node) {
		if n.Type() == "attribute" {
			obj := n.ChildByFieldName("object")
			attr := n.ChildByFieldName("attribute")
			if !obj.IsNull() && !attr.IsNull() && obj.Type() == "identifier" && obj.Content(source) == receiver {
				out[attr.Content(source)] = true
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(uint32(i)))
		}
	}
	walk(method)
	return out
}

func firstParameterName(method sitter.Node, source []byte) string {
	params := method.ChildByFieldName("parameters")
	if params.IsNull() || params.NamedChildCount() == 0 {
		return ""
	}
	first := params.NamedChild(0)
	switch first.Type() {
	case "identifier":
		return first.Content(source)
	case "typed_parameter", "default_parameter", "typed_default_parameter":
		if name := first.ChildByFieldName("name"); !name.IsNull() {
			return name.Content(source)
		}
		if first.NamedChildCount() > 0 {
			return first.NamedChild(0).Content(source)
		}
	}
	return ""
}

// --- line-oriented measures --------------------------------------------------

func countLOC(source []byte) int {
	n := 0
	for _, line := range strings.Split(string(source), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			n++
		}
	}
	return n
}

// indentSD is the population standard deviation of indentation level
// across qualifying lines, with indent level = leadingSpaces/width +
// leadingTabs (each tab counts as one level regardless of width).
func indentSD(source []byte, width int) float64 {
	var levels []float64
	for _, line := range strings.Split(string(source), "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		stripped := strings.TrimSpace(trimmed)
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			continue
		}
		tabs, spaces := 0, 0
		for _, r := range line {
			switch r {
			case '\t':
				tabs++
			case ' ':
				spaces++
			default:
				goto done
			}
		}
	done:
		level := float64(tabs) + float64(spaces)/float64(width)
		levels = append(levels, level)
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

	return math.Sqrt(variance)
}
