// Package reconcile drives the three-phase bidirectional sync between
// the local knowledge graph and a remote issue tracker, plus a
// single-shot targeted parent refresh. It talks to both sides only
// through their narrow Client interfaces, composing bodies and labels
// via pkg/render.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/weave-dev/weave-quality/pkg/gitlib"
	"github.com/weave-dev/weave-quality/pkg/graphstore"
	"github.com/weave-dev/weave-quality/pkg/idvalidate"
	"github.com/weave-dev/weave-quality/pkg/persist"
	"github.com/weave-dev/weave-quality/pkg/render"
	"github.com/weave-dev/weave-quality/pkg/tracker"
)

const (
	syncedLabel   = "synced"
	testLabel     = "test"
	reopenComment = "Reopening — local node `%s` is still open."
)

// Stats accumulates counts across a reconciliation run, reported back
// to the caller for a one-line summary.
type Stats struct {
	CreatedRemote  int
	UpdatedRemote  int
	ClosedRemote   int
	ReopenedRemote int
	AlreadySynced  int
	Skipped        int
	Duplicates     int
	CreatedNodes   int
	ClosedNodes    int
}

// Reconciler wires the two collaborators and optional git history source
// used for close-comment commit links.
type Reconciler struct {
	Tracker tracker.Client
	Graph   graphstore.Client
	Repo    *gitlib.Repository // nil disables commit-link lookups
	DryRun  bool
	Now     func() time.Time
	Logf    func(format string, args ...any)
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Reconciler) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
	}
}

// graphSnapshot is the in-memory state a phase reads and mutates as it
// runs, avoiding a graph round trip per node.
type graphSnapshot struct {
	nodes  []graphstore.Node
	byID   map[string]graphstore.Node
	edges  []graphstore.Edge
	issues []tracker.Issue
	byNum  map[int]tracker.Issue
}

func (r *Reconciler) fetchGraph(ctx context.Context) (*graphSnapshot, error) {
	nodes, err := r.Graph.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list nodes: %w", err)
	}
	edges, err := r.Graph.ListEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list edges: %w", err)
	}
	byID := make(map[string]graphstore.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	return &graphSnapshot{nodes: nodes, byID: byID, edges: edges}, nil
}

func (s *graphSnapshot) loadIssues(issues []tracker.Issue) {
	s.issues = issues
	s.byNum = make(map[int]tracker.Issue, len(issues))
	for _, i := range issues {
		s.byNum[i.Number] = i
	}
}

func (s *graphSnapshot) children(parent string) []graphstore.Node {
	var out []graphstore.Node
	for _, e := range s.edges {
		if e.Type == graphstore.EdgeImplements && e.Target == parent {
			if n, ok := s.byID[e.Source]; ok {
				out = append(out, n)
			}
		}
	}
	return out
}

func (s *graphSnapshot) parent(child string) (graphstore.Node, bool) {
	for _, e := range s.edges {
		if e.Type == graphstore.EdgeImplements && e.Source == child {
			if n, ok := s.byID[e.Target]; ok {
				return n, true
			}
		}
	}
	return graphstore.Node{}, false
}

func (s *graphSnapshot) blockers(node string) []graphstore.Node {
	var out []graphstore.Node
	for _, e := range s.edges {
		if e.Type == graphstore.EdgeBlocks && e.Target == node {
			if n, ok := s.byID[e.Source]; ok {
				out = append(out, n)
			}
		}
	}
	return out
}

func (s *graphSnapshot) childEdges(childSet map[string]struct{}) []graphstore.Edge {
	var out []graphstore.Edge
	for _, e := range s.edges {
		if _, ok := childSet[e.Source]; !ok {
			continue
		}
		if _, ok := childSet[e.Target]; !ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s *graphSnapshot) view(node graphstore.Node) render.NodeView {
	v := render.NodeView{Node: node}
	if id, ok := node.Metadata.RemoteIssueID(); ok {
		v.RemoteID = id
	}

	if parent, ok := s.parent(node.ID); ok {
		pv := s.view(parent)
		v.ParentView = &pv
	}

	for _, b := range s.blockers(node.ID) {
		v.Blockers = append(v.Blockers, s.view(b))
	}

	children := s.children(node.ID)
	childSet := make(map[string]struct{}, len(children))
	for _, c := range children {
		childSet[c.ID] = struct{}{}
		v.Children = append(v.Children, render.NodeView{Node: c, RemoteID: remoteIDOf(c)})
	}
	v.ChildEdges = s.childEdges(childSet)
	return v
}

func remoteIDOf(n graphstore.Node) string {
	id, _ := n.Metadata.RemoteIssueID()
	return id
}

// duplicateMappings returns, for every remote id claimed by more than
// one node, the set of node ids beyond the first encountered (in nodes'
// iteration order) — these are skipped during phase 1.
func duplicateMappings(nodes []graphstore.Node) map[string]bool {
	seen := make(map[string]string) // remote id -> first node id
	skip := make(map[string]bool)
	for _, n := range nodes {
		id, ok := n.Metadata.RemoteIssueID()
		if !ok {
			continue
		}
		if first, claimed := seen[id]; claimed {
			if first != n.ID {
				skip[n.ID] = true
			}
			continue
		}
		seen[id] = n.ID
	}
	return skip
}

// doneRemoteSet returns the remote issue ids paired with a done node, used
// to suppress phantom reopens in phase 1.
func doneRemoteSet(nodes []graphstore.Node) map[string]bool {
	out := make(map[string]bool)
	for _, n := range nodes {
		if n.Status != graphstore.StatusDone {
			continue
		}
		if id, ok := n.Metadata.RemoteIssueID(); ok {
			out[id] = true
		}
	}
	return out
}

// DryRunReport is the persisted artifact a --dry-run invocation leaves
// behind so a later real run (or a human) can diff what was planned
// against what actually happened.
type DryRunReport struct {
	RunID       string
	GeneratedAt time.Time
	Stats       Stats
}

// SaveDryRunReport writes a DryRunReport for this run to dir, tagging it
// with a fresh run id for cross-run correlation.
func SaveDryRunReport(dir string, stats Stats, now time.Time) error {
	report := DryRunReport{RunID: uuid.NewString(), GeneratedAt: now, Stats: stats}
	p := persist.NewPersister[DryRunReport]("reconcile-dry-run", persist.NewJSONCodec())
	return p.Save(dir, func() *DryRunReport { return &report })
}

// Run executes the full three-phase sync and returns accumulated stats.
func Run(ctx context.Context, r *Reconciler) (Stats, error) {
	var stats Stats

	issues, err := r.Tracker.ListIssues(ctx)
	if err != nil {
		return stats, fmt.Errorf("reconcile: list issues: %w", err)
	}
	snap, err := r.fetchGraph(ctx)
	if err != nil {
		return stats, err
	}
	snap.loadIssues(issues)

	if err := r.phase1(ctx, snap, &stats); err != nil {
		return stats, err
	}
	// Phase 1's in-memory issue mutations (new/closed/reopened) must carry
	// forward since the tracker itself may be eventually-consistent.
	issues = make([]tracker.Issue, 0, len(snap.issues))
	for _, iss := range snap.issues {
		issues = append(issues, snap.byNum[iss.Number])
	}

	snap, err = r.fetchGraph(ctx)
	if err != nil {
		return stats, err
	}
	snap.loadIssues(issues)

	if err := r.phase2(ctx, snap, &stats); err != nil {
		return stats, err
	}

	snap, err = r.fetchGraph(ctx)
	if err != nil {
		return stats, err
	}
	snap.loadIssues(issues)

	if err := r.phase3(ctx, snap, &stats); err != nil {
		return stats, err
	}

	return stats, nil
}

// ---------------------------------------------------------------------
// Phase 1 — Graph -> Remote
// ---------------------------------------------------------------------

func (r *Reconciler) phase1(ctx context.Context, snap *graphSnapshot, stats *Stats) error {
	skip := duplicateMappings(snap.nodes)
	doneRemote := doneRemoteSet(snap.nodes)
	processed := make(map[string]bool) // remote ids already handled this phase

	for _, node := range snap.nodes {
		if node.Metadata.Type() == graphstore.TypeTest || node.Metadata.NoSync() {
			stats.Skipped++
			continue
		}
		if skip[node.ID] {
			stats.Skipped++
			stats.Duplicates++
			continue
		}

		remoteID, matchedByFallback, found := r.pairRemote(node, snap.issues)
		if found && processed[remoteID] {
			stats.Skipped++
			continue
		}

		if !found {
			if err := r.handleUnmatched(ctx, node, snap, stats); err != nil {
				return err
			}
			continue
		}
		processed[remoteID] = true

		issue := snap.byNum[parseIssueNumber(remoteID)]
		if err := r.handleMatched(ctx, node, issue, snap, doneRemote, matchedByFallback, stats); err != nil {
			return err
		}
	}
	return nil
}

// pairRemote resolves a node's paired remote issue per mapping precedence:
// metadata first, then a body-marker scan.
func (r *Reconciler) pairRemote(node graphstore.Node, issues []tracker.Issue) (remoteID string, matchedByFallback bool, found bool) {
	if id, ok := node.Metadata.RemoteIssueID(); ok {
		for _, iss := range issues {
			if fmt.Sprintf("%d", iss.Number) == id {
				return id, false, true
			}
		}
	}
	for _, iss := range issues {
		if render.ContainsLocalIDMarker(iss.Body, node.ID) {
			return fmt.Sprintf("%d", iss.Number), true, true
		}
	}
	return "", false, false
}

func parseIssueNumber(remoteID string) int {
	var n int
	fmt.Sscanf(remoteID, "%d", &n)
	return n
}

func (r *Reconciler) handleUnmatched(ctx context.Context, node graphstore.Node, snap *graphSnapshot, stats *Stats) error {
	switch node.Status {
	case graphstore.StatusTodo, graphstore.StatusActive, graphstore.StatusDone:
	default:
		stats.Skipped++
		return nil
	}

	for _, iss := range snap.issues {
		if iss.Title == node.Text && iss.HasLabel(syncedLabel) {
			if err := r.backfillRemoteID(ctx, node, snap, fmt.Sprintf("%d", iss.Number)); err != nil {
				return err
			}
			stats.AlreadySynced++
			return nil
		}
	}

	view := snap.view(node)
	body := render.ComposeBody("", render.RenderIssueBody(view))
	labels := render.DesiredLabels(node)

	if r.DryRun {
		r.logf("[dry-run] would create remote issue for %s", node.ID)
		stats.CreatedRemote++
		return nil
	}

	issue, err := r.Tracker.CreateIssue(ctx, node.Text, body, labels)
	if err != nil {
		return fmt.Errorf("reconcile: create issue for %s: %w", node.ID, err)
	}
	snap.issues = append(snap.issues, issue)
	snap.byNum[issue.Number] = issue
	stats.CreatedRemote++

	if err := r.backfillRemoteID(ctx, node, snap, fmt.Sprintf("%d", issue.Number)); err != nil {
		return err
	}

	if node.Status == graphstore.StatusDone {
		comment := render.BuildCloseComment(node, r.Repo, r.now())
		if err := r.Tracker.Close(ctx, issue.Number, comment); err != nil {
			return fmt.Errorf("reconcile: close new issue #%d: %w", issue.Number, err)
		}
		issue.State = tracker.StateClosed
		snap.byNum[issue.Number] = issue
		stats.ClosedRemote++
	}
	return nil
}

func (r *Reconciler) backfillRemoteID(ctx context.Context, node graphstore.Node, snap *graphSnapshot, remoteID string) error {
	if r.DryRun {
		return nil
	}
	for _, other := range snap.nodes {
		if other.ID == node.ID {
			continue
		}
		if id, ok := other.Metadata.RemoteIssueID(); ok && id == remoteID {
			r.logf("skipping backfill of remote id %s to %s — already claimed by %s", remoteID, node.ID, other.ID)
			return nil
		}
	}
	updated := node.Metadata.WithRemoteIssueID(remoteID)
	if err := r.Graph.UpdateMetadata(ctx, node.ID, updated); err != nil {
		return fmt.Errorf("reconcile: backfill remote id on %s: %w", node.ID, err)
	}
	node.Metadata = updated
	snap.byID[node.ID] = node
	for i, n := range snap.nodes {
		if n.ID == node.ID {
			snap.nodes[i] = node
		}
	}
	return nil
}

func (r *Reconciler) handleMatched(ctx context.Context, node graphstore.Node, issue tracker.Issue, snap *graphSnapshot, doneRemote map[string]bool, matchedByFallback bool, stats *Stats) error {
	reimported := node.Metadata.IsFromRemote()
	hasChildren := len(snap.children(node.ID)) > 0

	if reimported && !hasChildren {
		view := snap.view(node)
		newBlock := render.RenderIssueBody(view)
		if render.NeedsUpdate(issue.Body, newBlock) {
			human := render.HumanContent(issue.Body)
			suppressed := render.ComposeBody(human, newBlock)
			r.logf("skipping body update on #%d (re-imported, no children):\n%s", issue.Number, render.DebugDiff(issue.Body, suppressed))
		}
	} else {
		view := snap.view(node)
		newBlock := render.RenderIssueBody(view)
		if render.NeedsUpdate(issue.Body, newBlock) {
			human := render.HumanContent(issue.Body)
			newBody := render.ComposeBody(human, newBlock)
			if r.DryRun {
				r.logf("[dry-run] would update body of #%d", issue.Number)
			} else if err := r.Tracker.UpdateBody(ctx, issue.Number, newBody); err != nil {
				return fmt.Errorf("reconcile: update body of #%d: %w", issue.Number, err)
			} else {
				issue.Body = newBody
				snap.byNum[issue.Number] = issue
			}
			stats.UpdatedRemote++
		}
	}

	desired := render.DesiredLabels(node)
	toAdd, toRemove := render.ReconcileLabels(issue.Labels, desired)
	if len(toAdd) > 0 || len(toRemove) > 0 {
		if !r.DryRun {
			if err := r.Tracker.SetLabels(ctx, issue.Number, desired); err != nil {
				return fmt.Errorf("reconcile: set labels on #%d: %w", issue.Number, err)
			}
			issue.Labels = desired
			snap.byNum[issue.Number] = issue
		} else {
			r.logf("[dry-run] would reconcile labels on #%d (+%v -%v)", issue.Number, toAdd, toRemove)
		}
	}

	switch {
	case node.Status == graphstore.StatusDone && issue.State == tracker.StateOpen:
		comment := render.BuildCloseComment(node, r.Repo, r.now())
		if r.DryRun {
			r.logf("[dry-run] would close #%d", issue.Number)
		} else if err := r.Tracker.Close(ctx, issue.Number, comment); err != nil {
			return fmt.Errorf("reconcile: close #%d: %w", issue.Number, err)
		} else {
			issue.State = tracker.StateClosed
			snap.byNum[issue.Number] = issue
		}
		stats.ClosedRemote++

	case node.Status != graphstore.StatusDone && issue.State == tracker.StateClosed:
		remoteIDStr := fmt.Sprintf("%d", issue.Number)
		skipReopen := doneRemote[remoteIDStr]
		if !skipReopen {
			// Fail-open: a comment-fetch error is treated as "not closed by us".
			if closedByUs, cErr := r.lastCommentIsCloseMarker(ctx, issue.Number); cErr == nil && closedByUs {
				skipReopen = true
			}
		}
		if skipReopen {
			stats.Skipped++
		} else {
			if err := r.reopen(ctx, node, issue, snap); err != nil {
				return err
			}
			stats.ReopenedRemote++
		}

	default:
		stats.AlreadySynced++
	}

	if matchedByFallback {
		if err := r.backfillRemoteID(ctx, node, snap, fmt.Sprintf("%d", issue.Number)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) reopen(ctx context.Context, node graphstore.Node, issue tracker.Issue, snap *graphSnapshot) error {
	if r.DryRun {
		r.logf("[dry-run] would reopen #%d", issue.Number)
		return nil
	}
	if err := r.Tracker.Reopen(ctx, issue.Number, fmt.Sprintf(reopenComment, node.ID)); err != nil {
		return fmt.Errorf("reconcile: reopen #%d: %w", issue.Number, err)
	}
	issue.State = tracker.StateOpen
	snap.byNum[issue.Number] = issue
	return nil
}

func (r *Reconciler) lastCommentIsCloseMarker(ctx context.Context, number int) (bool, error) {
	comments, err := r.Tracker.RecentComments(ctx, number)
	if err != nil {
		return false, err
	}
	if len(comments) == 0 {
		return false, nil
	}
	last := comments[len(comments)-1]
	const marker = "Completed. Local node"
	return strings.Contains(last.Body, marker), nil
}

// ---------------------------------------------------------------------
// Phase 2 — Remote -> Graph
// ---------------------------------------------------------------------

func (r *Reconciler) phase2(ctx context.Context, snap *graphSnapshot, stats *Stats) error {
	trackedRemote := make(map[string]bool)
	for _, n := range snap.nodes {
		if id, ok := n.Metadata.RemoteIssueID(); ok {
			trackedRemote[id] = true
		}
	}

	for _, issue := range snap.issues {
		if issue.HasLabel(testLabel) {
			stats.Skipped++
			continue
		}
		remoteIDStr := fmt.Sprintf("%d", issue.Number)
		if trackedRemote[remoteIDStr] {
			continue
		}

		matched := false
		for _, n := range snap.nodes {
			if render.ContainsLocalIDMarker(issue.Body, n.ID) {
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		if issue.State != tracker.StateOpen {
			stats.Skipped++
			continue
		}

		priority, nodeType := render.ParseLabelsToMetadata(issue.Labels)
		meta := graphstore.Metadata{}
		meta["remote_issue_id"] = remoteIDStr
		meta["source"] = "remote"
		if priority > 0 {
			meta["priority"] = fmt.Sprintf("%d", priority)
		}
		if nodeType != "" {
			meta["type"] = nodeType
		}

		form := render.ParseTemplateFields(issue.Body)
		if t, ok := form["type"]; ok {
			meta["type"] = t
		}
		if p, ok := form["priority"]; ok {
			if m := priorityLabelDigit(p); m != "" {
				meta["priority"] = m
			}
		}
		desc := form["description"]
		if desc == "" {
			desc = render.ExtractDescription(issue.Body)
		}
		if desc != "" {
			meta["description"] = desc
		}

		if r.DryRun {
			r.logf("[dry-run] would create node for remote #%d", issue.Number)
			stats.CreatedNodes++
			continue
		}

		node, err := r.Graph.CreateNode(ctx, issue.Title, graphstore.StatusTodo, meta)
		if err != nil {
			return fmt.Errorf("reconcile: create node for remote #%d: %w", issue.Number, err)
		}
		snap.nodes = append(snap.nodes, node)
		snap.byID[node.ID] = node
		stats.CreatedNodes++
	}
	return nil
}

func priorityLabelDigit(s string) string {
	if len(s) >= 2 && s[0] == 'P' && s[1] >= '1' && s[1] <= '4' {
		return string(s[1])
	}
	return ""
}

// ---------------------------------------------------------------------
// Phase 3 — Closed remote -> graph close
// ---------------------------------------------------------------------

func (r *Reconciler) phase3(ctx context.Context, snap *graphSnapshot, stats *Stats) error {
	for _, node := range snap.nodes {
		if node.Status == graphstore.StatusDone {
			continue
		}
		id, ok := node.Metadata.RemoteIssueID()
		if !ok {
			continue
		}
		issue, ok := snap.byNum[parseIssueNumber(id)]
		if !ok || issue.State != tracker.StateClosed {
			continue
		}

		if r.DryRun {
			r.logf("[dry-run] would close node %s (remote #%d is closed)", node.ID, issue.Number)
			stats.ClosedNodes++
			continue
		}
		if err := r.Graph.SetStatus(ctx, node.ID, graphstore.StatusDone); err != nil {
			return fmt.Errorf("reconcile: close node %s: %w", node.ID, err)
		}
		stats.ClosedNodes++
	}
	return nil
}

// ---------------------------------------------------------------------
// Targeted parent refresh
// ---------------------------------------------------------------------

// RefreshParent re-renders childID's parent body and updates its remote
// issue only if the machine-block hash changed. Returns whether an
// update occurred.
func RefreshParent(ctx context.Context, r *Reconciler, childID string) (bool, error) {
	if err := idvalidate.RequireNodeID(childID); err != nil {
		return false, err
	}

	parent, ok, err := r.Graph.Parent(ctx, childID)
	if err != nil {
		return false, fmt.Errorf("reconcile: find parent of %s: %w", childID, err)
	}
	if !ok {
		return false, nil
	}
	remoteID, ok := parent.Metadata.RemoteIssueID()
	if !ok {
		return false, nil
	}

	snap, err := r.fetchGraph(ctx)
	if err != nil {
		return false, err
	}
	issues, err := r.Tracker.ListIssues(ctx)
	if err != nil {
		return false, fmt.Errorf("reconcile: list issues: %w", err)
	}
	snap.loadIssues(issues)

	issue, ok := snap.byNum[parseIssueNumber(remoteID)]
	if !ok {
		return false, nil
	}

	view := snap.view(parent)
	newBlock := render.RenderIssueBody(view)
	if !render.NeedsUpdate(issue.Body, newBlock) {
		return false, nil
	}

	human := render.HumanContent(issue.Body)
	newBody := render.ComposeBody(human, newBlock)

	if r.DryRun {
		r.logf("[dry-run] would refresh parent #%d (%s)", issue.Number, parent.ID)
		return true, nil
	}
	if err := r.Tracker.UpdateBody(ctx, issue.Number, newBody); err != nil {
		return false, fmt.Errorf("reconcile: refresh parent #%d: %w", issue.Number, err)
	}
	return true, nil
}

// Event is a single-node lifecycle transition Notify applies outside a
// full reconciliation pass.
type Event string

const (
	EventWork  Event = "work"
	EventDone  Event = "done"
	EventBlock Event = "block"
)

// eventStatus maps a notify event to the graph status it drives the node to.
var eventStatus = map[Event]graphstore.Status{
	EventWork:  graphstore.StatusActive,
	EventDone:  graphstore.StatusDone,
	EventBlock: graphstore.StatusBlocked,
}

// Notify applies a single-node lifecycle transition and mirrors it to the
// node's paired remote issue, if any, without running a full three-phase
// sync: every event updates status (and, for block, adds a `blocks` edge
// from blocker); work additionally reopens a closed paired issue, and done
// closes an open one with the same close-comment convention phase 1 uses.
func Notify(ctx context.Context, r *Reconciler, nodeID string, event Event, learning, blocker string) error {
	if err := idvalidate.RequireNodeID(nodeID); err != nil {
		return err
	}
	status, ok := eventStatus[event]
	if !ok {
		return fmt.Errorf("reconcile: unknown notify event %q", event)
	}
	if event == EventBlock && blocker != "" {
		if err := idvalidate.RequireNodeID(blocker); err != nil {
			return err
		}
	}

	nodes, err := r.Graph.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: list nodes: %w", err)
	}
	var node graphstore.Node
	found := false
	for _, n := range nodes {
		if n.ID == nodeID {
			node, found = n, true
			break
		}
	}
	if !found {
		return fmt.Errorf("reconcile: node %s not found", nodeID)
	}

	if learning != "" {
		merged := make(graphstore.Metadata, len(node.Metadata)+1)
		for k, v := range node.Metadata {
			merged[k] = v
		}
		merged["learning"] = learning
		if r.DryRun {
			r.logf("[dry-run] would record learning on %s", nodeID)
		} else if err := r.Graph.UpdateMetadata(ctx, nodeID, merged); err != nil {
			return fmt.Errorf("reconcile: record learning on %s: %w", nodeID, err)
		} else {
			node.Metadata = merged
		}
	}

	if event == EventBlock && blocker != "" {
		if r.DryRun {
			r.logf("[dry-run] would link blocker %s to %s", blocker, nodeID)
		} else if err := r.Graph.AddEdge(ctx, blocker, nodeID, graphstore.EdgeBlocks); err != nil {
			return fmt.Errorf("reconcile: link blocker %s to %s: %w", blocker, nodeID, err)
		}
	}

	if r.DryRun {
		r.logf("[dry-run] would set %s to status %s", nodeID, status)
	} else if err := r.Graph.SetStatus(ctx, nodeID, status); err != nil {
		return fmt.Errorf("reconcile: set status on %s: %w", nodeID, err)
	}
	node.Status = status

	remoteID, paired := node.Metadata.RemoteIssueID()
	if !paired {
		return nil
	}
	issues, err := r.Tracker.ListIssues(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: list issues: %w", err)
	}
	number := parseIssueNumber(remoteID)
	var issue tracker.Issue
	issueFound := false
	for _, iss := range issues {
		if iss.Number == number {
			issue, issueFound = iss, true
			break
		}
	}
	if !issueFound {
		return nil
	}

	switch event {
	case EventDone:
		if issue.State != tracker.StateOpen {
			return nil
		}
		comment := render.BuildCloseComment(node, r.Repo, r.now())
		if r.DryRun {
			r.logf("[dry-run] would close #%d", issue.Number)
			return nil
		}
		return r.Tracker.Close(ctx, issue.Number, comment)
	case EventWork:
		if issue.State == tracker.StateOpen {
			return nil
		}
		if r.DryRun {
			r.logf("[dry-run] would reopen #%d", issue.Number)
			return nil
		}
		return r.Tracker.Reopen(ctx, issue.Number, fmt.Sprintf(reopenComment, nodeID))
	default:
		return nil
	}
}
