package fake

import (
	"context"
	"testing"

	"github.com/weave-dev/weave-quality/pkg/graphstore"
)

func TestCreateNodeAssignsIDAndRoundTrips(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := New()
	n, err := c.CreateNode(ctx, "Fix the thing", graphstore.StatusTodo, graphstore.Metadata{"type": "task"})
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if n.ID != "lx-0001" {
		t.Fatalf("ID = %q, want lx-0001", n.ID)
	}

	nodes, err := c.ListNodes(ctx)
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != n.ID {
		t.Fatalf("ListNodes = %+v, want single node %q", nodes, n.ID)
	}

	if err := c.SetStatus(ctx, n.ID, graphstore.StatusActive); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := c.UpdateMetadata(ctx, n.ID, graphstore.Metadata{"priority": "1"}); err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}

	nodes, _ = c.ListNodes(ctx)
	if nodes[0].Status != graphstore.StatusActive {
		t.Fatalf("status = %v, want active", nodes[0].Status)
	}
	if nodes[0].Metadata.Priority() != 1 {
		t.Fatalf("priority = %d, want 1", nodes[0].Metadata.Priority())
	}
}

func TestChildrenAndParentViaImplementsEdge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := New()
	c.Seed(graphstore.Node{ID: "ep-0001", Status: graphstore.StatusActive})
	c.Seed(graphstore.Node{ID: "ta-0001", Status: graphstore.StatusTodo})
	c.Seed(graphstore.Node{ID: "ta-0002", Status: graphstore.StatusDone})

	if err := c.AddEdge(ctx, "ta-0001", "ep-0001", graphstore.EdgeImplements); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := c.AddEdge(ctx, "ta-0002", "ep-0001", graphstore.EdgeImplements); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	children, err := c.Children(ctx, "ep-0001")
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("len(children) = %d, want 2", len(children))
	}

	parent, ok, err := c.Parent(ctx, "ta-0001")
	if err != nil {
		t.Fatalf("Parent: %v", err)
	}
	if !ok || parent.ID != "ep-0001" {
		t.Fatalf("Parent = %+v, ok=%v, want ep-0001", parent, ok)
	}

	_, ok, err = c.Parent(ctx, "ep-0001")
	if err != nil {
		t.Fatalf("Parent: %v", err)
	}
	if ok {
		t.Fatal("expected no parent for ep-0001")
	}
}

func TestUnknownNodeOperationsFail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := New()
	if err := c.SetStatus(ctx, "ta-dead0", graphstore.StatusDone); err == nil {
		t.Error("expected error setting status of unknown node")
	}
	if err := c.UpdateMetadata(ctx, "ta-dead0", nil); err == nil {
		t.Error("expected error updating metadata of unknown node")
	}
}
