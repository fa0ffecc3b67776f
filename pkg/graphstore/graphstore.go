// Package graphstore is the local knowledge-graph collaborator
// interface the reconciler and promote command drive: nodes, edges, and
// the handful of mutations the three-phase protocol needs. The graph
// itself lives in brain.db, owned by a separate graph-store process;
// this package only ever talks to it through the Client boundary.
package graphstore

import "context"

// Status is a graph node's lifecycle state.
type Status string

const (
	StatusTodo    Status = "todo"
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
	StatusDone    Status = "done"
)

// NodeType enumerates the recognized node type metadata values.
type NodeType string

const (
	TypeTask     NodeType = "task"
	TypeFeature  NodeType = "feature"
	TypeEpic     NodeType = "epic"
	TypeBug      NodeType = "bug"
	TypeFix      NodeType = "fix"
	TypeAudit    NodeType = "audit"
	TypeLearning NodeType = "learning"
	TypeTest     NodeType = "test"
)

// EdgeType enumerates the recognized edge relationships.
type EdgeType string

const (
	EdgeImplements EdgeType = "implements" // source implements target (source is child)
	EdgeBlocks     EdgeType = "blocks"     // source blocks target
	EdgeReferences EdgeType = "references"
)

// Metadata is a graph node's string-keyed attribute map. Known keys are
// accessed through the typed helpers below; unknown keys pass through
// untouched on round trips.
type Metadata map[string]string

const (
	metaRemoteIssueID = "remote_issue_id"
	metaPriority      = "priority"
	metaType          = "type"
	metaDescription   = "description"
	metaNoSync        = "no_sync"
	metaSource        = "source"
	metaDecision      = "decision"
	metaPattern       = "pattern"
	metaPitfall       = "pitfall"
	metaLearning      = "learning"
	metaAlias         = "alias"
)

// RemoteIssueID returns the paired remote issue id and whether it is set.
func (m Metadata) RemoteIssueID() (string, bool) {
	v, ok := m[metaRemoteIssueID]
	return v, ok && v != ""
}

// NoSync reports whether the node opts out of reconciliation.
func (m Metadata) NoSync() bool { return m[metaNoSync] == "true" }

// IsFromRemote reports whether the node was created from a remote issue.
func (m Metadata) IsFromRemote() bool { return m[metaSource] == "remote" }

// Type returns the node's type metadata, defaulting to task.
func (m Metadata) Type() NodeType {
	if v, ok := m[metaType]; ok && v != "" {
		return NodeType(v)
	}
	return TypeTask
}

// Priority returns the node's priority (0-4), defaulting to 0.
func (m Metadata) Priority() int {
	switch m[metaPriority] {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	default:
		return 0
	}
}

// Description returns the node's freeform description.
func (m Metadata) Description() string { return m[metaDescription] }

// Learning metadata accessors, used when composing a close comment.
func (m Metadata) Decision() string { return m[metaDecision] }
func (m Metadata) Pattern() string  { return m[metaPattern] }
func (m Metadata) Pitfall() string  { return m[metaPitfall] }
func (m Metadata) Learning() string { return m[metaLearning] }
func (m Metadata) Alias() string    { return m[metaAlias] }

// WithRemoteIssueID returns a copy of m with remote_issue_id set.
func (m Metadata) WithRemoteIssueID(id string) Metadata {
	out := m.clone()
	out[metaRemoteIssueID] = id
	return out
}

func (m Metadata) clone() Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Node is a graph node as the reconciler and promote command need it.
type Node struct {
	ID       string
	Text     string
	Status   Status
	Metadata Metadata
	Alias    string
}

// Edge is a directed, typed, weighted relationship between two nodes.
type Edge struct {
	Source string
	Target string
	Type   EdgeType
	Weight float64
}

// Client is the full surface the reconciler and the scanner's promote
// command need from the local graph store.
type Client interface {
	ListNodes(ctx context.Context) ([]Node, error)
	CreateNode(ctx context.Context, text string, status Status, metadata Metadata) (Node, error)
	UpdateMetadata(ctx context.Context, id string, metadata Metadata) error
	SetStatus(ctx context.Context, id string, status Status) error
	ListEdges(ctx context.Context) ([]Edge, error)
	AddEdge(ctx context.Context, source, target string, edgeType EdgeType) error
	// Children returns nodes with an `implements` edge targeting parent.
	Children(ctx context.Context, parent string) ([]Node, error)
	// Parent returns the node parent implements, if any.
	Parent(ctx context.Context, child string) (Node, bool, error)
}
