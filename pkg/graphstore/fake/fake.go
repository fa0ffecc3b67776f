// Package fake is an in-memory graphstore.Client for tests, the
// graph-store counterpart to pkg/tracker/fake.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/weave-dev/weave-quality/pkg/graphstore"
)

// Client is a thread-safe in-memory graphstore.Client.
type Client struct {
	mu    sync.Mutex
	nodes map[string]graphstore.Node
	edges []graphstore.Edge
	seq   int
}

// New returns an empty fake graph-store client.
func New() *Client {
	return &Client{nodes: make(map[string]graphstore.Node)}
}

// Seed inserts a node directly, for test setup.
func (c *Client) Seed(n graphstore.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[n.ID] = n
}

// SeedEdge inserts an edge directly, for test setup.
func (c *Client) SeedEdge(e graphstore.Edge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edges = append(c.edges, e)
}

func (c *Client) ListNodes(_ context.Context) ([]graphstore.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]graphstore.Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		out = append(out, n)
	}
	return out, nil
}

func (c *Client) CreateNode(_ context.Context, text string, status graphstore.Status, metadata graphstore.Metadata) (graphstore.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	id := fmt.Sprintf("lx-%04d", c.seq)
	n := graphstore.Node{ID: id, Text: text, Status: status, Metadata: metadata}
	c.nodes[id] = n
	return n, nil
}

func (c *Client) UpdateMetadata(_ context.Context, id string, metadata graphstore.Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	if !ok {
		return fmt.Errorf("fake graphstore: node %s not found", id)
	}
	n.Metadata = metadata
	c.nodes[id] = n
	return nil
}

func (c *Client) SetStatus(_ context.Context, id string, status graphstore.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	if !ok {
		return fmt.Errorf("fake graphstore: node %s not found", id)
	}
	n.Status = status
	c.nodes[id] = n
	return nil
}

func (c *Client) ListEdges(_ context.Context) ([]graphstore.Edge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]graphstore.Edge(nil), c.edges...), nil
}

func (c *Client) AddEdge(_ context.Context, source, target string, edgeType graphstore.EdgeType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edges = append(c.edges, graphstore.Edge{Source: source, Target: target, Type: edgeType})
	return nil
}

func (c *Client) Children(_ context.Context, parent string) ([]graphstore.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []graphstore.Node
	for _, e := range c.edges {
		if e.Type == graphstore.EdgeImplements && e.Target == parent {
			if n, ok := c.nodes[e.Source]; ok {
				out = append(out, n)
			}
		}
	}
	return out, nil
}

func (c *Client) Parent(_ context.Context, child string) (graphstore.Node, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.edges {
		if e.Type == graphstore.EdgeImplements && e.Source == child {
			if n, ok := c.nodes[e.Target]; ok {
				return n, true, nil
			}
		}
	}
	return graphstore.Node{}, false, nil
}
