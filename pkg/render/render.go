// Package render composes and parses the machine-readable portion of a
// remote issue body: a hash-guarded block the reconciler rewrites only
// when its content actually changed, leaving any human-written prose
// above it untouched.
package render

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/weave-dev/weave-quality/pkg/gitlib"
	"github.com/weave-dev/weave-quality/pkg/graphstore"
)

const (
	beginPrefix = "<!-- MACHINE:BEGIN hash="
	beginSuffix = " -->"
	endMarker   = "<!-- MACHINE:END -->"

	// MermaidNodeThreshold is the child count above which the dependency
	// graph drops done children, unless that would drop all of them.
	MermaidNodeThreshold = 15

	// CloseCommentPrefix is the literal marker the reconciler's
	// close-origin detector looks for in comment history.
	CloseCommentPrefix = "Completed. Local node `%s` closed."

	// CommitLookbackDays bounds how far back commit-link search looks.
	CommitLookbackDays = 90
	// MaxCommitLinks caps the number of commits listed in a close comment.
	MaxCommitLinks = 10
)

var blockPattern = regexp.MustCompile(`(?s)<!-- MACHINE:BEGIN hash=([a-f0-9]{12}) -->\r?\n(.*?)<!-- MACHINE:END -->`)

// ContentHash returns the first 12 hex characters of the SHA-256 digest
// of content, used to decide whether a machine block needs rewriting.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:12]
}

// ExtractBlock returns the existing machine block's hash and content, if
// any is present in body.
func ExtractBlock(body string) (hash, content string, ok bool) {
	m := blockPattern.FindStringSubmatch(body)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// HumanContent returns whatever appears above an existing machine block,
// or the whole body if no block is present; trailing whitespace is trimmed
// in both cases.
func HumanContent(body string) string {
	loc := blockPattern.FindStringIndex(body)
	if loc == nil {
		return strings.TrimRight(body, "\n\t ")
	}
	return strings.TrimRight(body[:loc[0]], "\n\t ")
}

// ComposeBody joins preserved human content with a freshly rendered
// machine block.
func ComposeBody(humanContent, machineBlock string) string {
	if humanContent != "" {
		return humanContent + "\n\n" + machineBlock
	}
	return machineBlock
}

// DebugDiff renders a human-readable diff between two issue bodies for
// debug logging. It never participates in the update decision itself —
// that's ContentHash comparison in NeedsUpdate — this only explains one
// to a human after the fact, including when a body update is suppressed
// by the re-imported-no-children invariant.
func DebugDiff(oldBody, newBody string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldBody, newBody, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}

// NeedsUpdate reports whether existingBody's machine block hash differs
// from newBlockContent's hash (or no block exists yet).
func NeedsUpdate(existingBody, newBlockContent string) bool {
	existingHash, _, ok := ExtractBlock(existingBody)
	if !ok {
		return true
	}
	return existingHash != ContentHash(newBlockContent)
}

// NodeView is the minimal rendering-time context a node needs, resolved
// from the graph ahead of time so the renderer never calls back into a
// Client.
type NodeView struct {
	Node       graphstore.Node
	RemoteID   string // "" when not yet mapped
	ParentText string
	ParentView *NodeView
	Blockers   []NodeView
	Children   []NodeView
	ChildEdges []graphstore.Edge
}

func typeLabel(t graphstore.NodeType) string {
	if t == "" {
		return "Task"
	}
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}

// RenderIssueBody renders the full `<!-- MACHINE:BEGIN -->...<!-- MACHINE:END -->`
// block for view, including the Context/Goal/checkbox list/dependency
// graph sections that apply to its node.
func RenderIssueBody(view NodeView) string {
	var b strings.Builder

	b.WriteString("## Context\n\n")
	contextLine := fmt.Sprintf("**Local ID:** `%s` | **Type:** %s | **Priority:** P%d",
		view.Node.ID, typeLabel(view.Node.Metadata.Type()), priorityNumber(view.Node.Metadata.Priority()))
	if view.Node.Alias != "" {
		contextLine += fmt.Sprintf(" | **Alias:** `%s`", view.Node.Alias)
	}
	b.WriteString(contextLine)
	b.WriteString("\n")

	if view.ParentView != nil {
		if view.ParentView.RemoteID != "" {
			fmt.Fprintf(&b, "**Part of:** #%s (%s)\n", view.ParentView.RemoteID, view.ParentView.Node.Text)
		} else {
			fmt.Fprintf(&b, "**Part of:** %s (`%s`)\n", view.ParentView.Node.Text, view.ParentView.Node.ID)
		}
	}

	if len(view.Blockers) > 0 {
		parts := make([]string, 0, len(view.Blockers))
		for _, blocker := range view.Blockers {
			if blocker.RemoteID != "" {
				parts = append(parts, fmt.Sprintf("#%s (%s)", blocker.RemoteID, blocker.Node.Text))
			} else {
				parts = append(parts, fmt.Sprintf("%s (`%s`)", blocker.Node.Text, blocker.Node.ID))
			}
		}
		fmt.Fprintf(&b, "**Blocked by:** %s\n", strings.Join(parts, ", "))
	}

	b.WriteString("\n")

	if desc := view.Node.Metadata.Description(); desc != "" {
		b.WriteString("## Goal\n\n")
		b.WriteString(desc)
		b.WriteString("\n\n")
	}

	if len(view.Children) > 0 {
		b.WriteString("## Tasks\n\n")
		for _, child := range view.Children {
			check := " "
			if child.Node.Status == graphstore.StatusDone {
				check = "x"
			}
			ref := ""
			if child.RemoteID != "" {
				ref = fmt.Sprintf(" (#%s)", child.RemoteID)
			}
			fmt.Fprintf(&b, "- [%s] %s%s\n", check, child.Node.Text, ref)
		}
		b.WriteString("\n")

		t := view.Node.Metadata.Type()
		if t == graphstore.TypeEpic || t == graphstore.TypeFeature {
			if mermaid := renderDependencyGraph(view); mermaid != "" {
				b.WriteString("## Dependency Graph\n\n```mermaid\n")
				b.WriteString(mermaid)
				b.WriteString("\n```\n\n")
			}
		}
	}

	content := strings.TrimRight(b.String(), "\n")
	hash := ContentHash(content)
	return beginPrefix + hash + beginSuffix + "\n" + content + "\n" + endMarker
}

func priorityNumber(p int) int {
	if p == 0 {
		return 1
	}
	return p
}

func mermaidID(nodeID string) string { return strings.ReplaceAll(nodeID, "-", "_") }

func mermaidLabel(text string) string {
	if len(text) > 60 {
		text = text[:60]
	}
	text = strings.ReplaceAll(text, `"`, "'")
	text = strings.ReplaceAll(text, "[", "(")
	text = strings.ReplaceAll(text, "]", ")")
	return `"` + text + `"`
}

// renderDependencyGraph restricts the child set to non-done children
// when the count exceeds MermaidNodeThreshold and at least one child is
// not done, per the children-done-but-oversized exemption.
func renderDependencyGraph(view NodeView) string {
	children := view.Children
	if len(children) == 0 {
		return ""
	}

	if len(children) > MermaidNodeThreshold {
		var active []NodeView
		for _, c := range children {
			if c.Node.Status != graphstore.StatusDone {
				active = append(active, c)
			}
		}
		if len(active) > 0 {
			children = active
		}
	}

	childSet := make(map[string]struct{}, len(children))
	for _, c := range children {
		childSet[c.Node.ID] = struct{}{}
	}

	var b strings.Builder
	b.WriteString("graph TD\n")
	b.WriteString("    classDef done fill:#2da44e,stroke:#1a7f37,color:white\n")
	b.WriteString("    classDef active fill:#bf8700,stroke:#9a6700,color:white\n")
	b.WriteString("    classDef blocked fill:#cf222e,stroke:#a40e26,color:white\n")
	b.WriteString("    classDef todo fill:#656d76,stroke:#424a53,color:white\n\n")

	parentLabel := view.Node.Text
	if view.Node.Alias != "" {
		parentLabel = view.Node.Alias
	}
	fmt.Fprintf(&b, "    %s[%s]\n", mermaidID(view.Node.ID), mermaidLabel(parentLabel))

	for _, c := range children {
		statusClass := string(c.Node.Status)
		switch c.Node.Status {
		case graphstore.StatusDone, graphstore.StatusActive, graphstore.StatusBlocked:
		default:
			statusClass = "todo"
		}
		label := c.Node.Text
		if c.Node.Alias != "" {
			label = c.Node.Alias
		}
		fmt.Fprintf(&b, "    %s[%s]:::%s\n", mermaidID(c.Node.ID), mermaidLabel(label), statusClass)
	}
	b.WriteString("\n")

	for _, c := range children {
		fmt.Fprintf(&b, "    %s --> %s\n", mermaidID(view.Node.ID), mermaidID(c.Node.ID))
	}

	for _, e := range view.ChildEdges {
		if e.Type != graphstore.EdgeBlocks {
			continue
		}
		_, srcOK := childSet[e.Source]
		_, dstOK := childSet[e.Target]
		if srcOK && dstOK {
			fmt.Fprintf(&b, "    %s -.->|blocks| %s\n", mermaidID(e.Source), mermaidID(e.Target))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// DesiredLabels computes the full label set a node should carry.
func DesiredLabels(node graphstore.Node) []string {
	labels := []string{"synced"}
	labels = append(labels, typeToLabel(node.Metadata.Type()))
	labels = append(labels, fmt.Sprintf("P%d", priorityToLabel(node.Metadata.Priority())))
	if node.Status == graphstore.StatusActive {
		labels = append(labels, "active")
	} else if node.Status == graphstore.StatusBlocked {
		labels = append(labels, "blocked")
	}
	return labels
}

var typeLabelMap = map[graphstore.NodeType]string{
	graphstore.TypeBug:      "bug",
	graphstore.TypeFix:      "bug",
	graphstore.TypeFeature:  "enhancement",
	graphstore.TypeEpic:     "epic",
	graphstore.TypeTask:     "task",
	graphstore.TypeAudit:    "maintenance",
	graphstore.TypeLearning: "documentation",
}

func typeToLabel(t graphstore.NodeType) string {
	if label, ok := typeLabelMap[t]; ok {
		return label
	}
	return "task"
}

func priorityToLabel(p int) int {
	if p < 1 || p > 4 {
		return 2
	}
	return p
}

// statusLabelNames is the set of labels ReconcileLabels may remove.
var statusLabelNames = map[string]struct{}{"active": {}, "blocked": {}}

// ReconcileLabels returns the labels to add and the labels to remove to
// bring current in line with desired: additions cover any gap, removals
// are restricted to stale status labels so unrelated labels are never
// touched.
func ReconcileLabels(current, desired []string) (toAdd, toRemove []string) {
	currentSet := make(map[string]struct{}, len(current))
	for _, l := range current {
		currentSet[l] = struct{}{}
	}
	desiredSet := make(map[string]struct{}, len(desired))
	for _, l := range desired {
		desiredSet[l] = struct{}{}
	}

	for l := range desiredSet {
		if _, ok := currentSet[l]; !ok {
			toAdd = append(toAdd, l)
		}
	}
	for l := range currentSet {
		if _, statusLabel := statusLabelNames[l]; !statusLabel {
			continue
		}
		if _, stillDesired := desiredSet[l]; !stillDesired {
			toRemove = append(toRemove, l)
		}
	}
	return toAdd, toRemove
}

// BuildCloseComment renders the close comment for node, including
// optional learnings and a commit-link section sourced from repo's
// recent history.
func BuildCloseComment(node graphstore.Node, repo *gitlib.Repository, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, CloseCommentPrefix, node.ID)

	if section := learningsSection(node.Metadata); section != "" {
		b.WriteString("\n\n")
		b.WriteString(section)
	}

	if repo != nil {
		if section := commitLinksSection(repo, node.ID, now); section != "" {
			b.WriteString("\n\n")
			b.WriteString(section)
		}
	}

	return b.String()
}

func learningsSection(m graphstore.Metadata) string {
	type kv struct{ key, val string }
	var entries []kv
	if v := m.Decision(); v != "" {
		entries = append(entries, kv{"Decision", v})
	}
	if v := m.Pattern(); v != "" {
		entries = append(entries, kv{"Pattern", v})
	}
	if v := m.Pitfall(); v != "" {
		entries = append(entries, kv{"Pitfall", v})
	}
	if v := m.Learning(); v != "" {
		entries = append(entries, kv{"Learning", v})
	}
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("**Learnings:**\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- **%s:** %s\n", e.key, e.val)
	}
	return strings.TrimRight(b.String(), "\n")
}

func commitLinksSection(repo *gitlib.Repository, nodeID string, now time.Time) string {
	since := now.AddDate(0, 0, -CommitLookbackDays)
	iter, err := repo.Log(&gitlib.LogOptions{Since: &since})
	if err != nil {
		return ""
	}
	defer iter.Close()

	trailer := "Local-ID: " + nodeID
	var lines []string
	err = iter.ForEach(func(c *gitlib.Commit) error {
		if len(lines) >= MaxCommitLinks {
			return errStopCommitSearch
		}
		msg := c.Message()
		if !strings.Contains(msg, nodeID) && !strings.Contains(msg, trailer) {
			return nil
		}
		subject := msg
		if idx := strings.IndexByte(subject, '\n'); idx >= 0 {
			subject = subject[:idx]
		}
		short := c.Hash().String()
		if len(short) > 7 {
			short = short[:7]
		}
		lines = append(lines, fmt.Sprintf("- `%s` %s", short, subject))
		return nil
	})
	if err != nil && err != errStopCommitSearch {
		return ""
	}
	if len(lines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("**Commits:**\n")
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const errStopCommitSearch = sentinelErr("render: commit link cap reached")

// LocalIDMarker returns the two recognized body-marker variants used for
// mapping fallback when metadata.remote_issue_id is absent or stale.
func LocalIDMarker(nodeID string) (bold, plain string) {
	return fmt.Sprintf("**Local ID:** `%s`", nodeID), fmt.Sprintf("**Local ID**: `%s`", nodeID)
}

// ContainsLocalIDMarker reports whether body carries either marker
// variant for nodeID.
func ContainsLocalIDMarker(body, nodeID string) bool {
	bold, plain := LocalIDMarker(nodeID)
	return strings.Contains(body, bold) || strings.Contains(body, plain)
}

var priorityLabelPattern = regexp.MustCompile(`^P([1-4])`)

// ParseLabelsToMetadata derives priority (1-4, 0 if absent) and type (""
// if no recognized type label present) from a remote issue's labels.
func ParseLabelsToMetadata(labels []string) (priority int, nodeType string) {
	for _, l := range labels {
		if m := priorityLabelPattern.FindStringSubmatch(l); m != nil {
			priority = int(m[1][0] - '0')
			break
		}
	}

	reverseType := make(map[string]string, len(typeLabelMap))
	for t, label := range typeLabelMap {
		// When two types share a label (bug and fix both map to "bug"),
		// the type spelled like the label wins.
		if _, exists := reverseType[label]; !exists || string(t) == label {
			reverseType[label] = string(t)
		}
	}
	for _, l := range labels {
		if t, ok := reverseType[l]; ok {
			nodeType = t
			break
		}
	}
	return priority, nodeType
}

var formSectionPattern = regexp.MustCompile(`(?s)^### (.+?)\s*\n\n(.*?)(?:\n### |\z)`)

// ParseTemplateFields parses a GitHub-style issue-template form body of
// repeated `### Field\n\nvalue` sections into lowercase-keyed values,
// dropping the placeholder "_No response_" and blank values.
func ParseTemplateFields(body string) map[string]string {
	fields := make(map[string]string)
	remaining := body
	for {
		m := formSectionPattern.FindStringSubmatchIndex(remaining)
		if m == nil {
			break
		}
		key := strings.ToLower(strings.TrimSpace(remaining[m[2]:m[3]]))
		val := strings.TrimSpace(remaining[m[4]:m[5]])
		if val != "" && val != "_No response_" {
			fields[key] = val
		}
		remaining = remaining[m[4]:]
		if len(remaining) == 0 {
			break
		}
	}
	return fields
}

// ExtractDescription strips the machine block and legacy preamble lines
// (a bare "---" rule, or an old-format "**Local ID**" line) from body,
// leaving the freeform human description, if any.
func ExtractDescription(body string) string {
	human := HumanContent(body)
	if human == "" {
		return ""
	}
	var kept []string
	for _, line := range strings.Split(human, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "**Local ID**") || trimmed == "---" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
