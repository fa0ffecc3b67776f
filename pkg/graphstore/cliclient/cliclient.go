// Package cliclient implements graphstore.Client by shelling out to the
// graph CLI binary, one JSON object per invocation, mirroring
// pkg/tracker/cliclient's calling convention. Read-only queries such as
// Children also go through the CLI and filter its output in-process;
// every node-id string crossing that boundary is validated first —
// per the data model's rule that ids are otherwise opaque.
package cliclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/weave-dev/weave-quality/pkg/graphstore"
	"github.com/weave-dev/weave-quality/pkg/idvalidate"
	"github.com/weave-dev/weave-quality/pkg/retry"
)

// InvocationTimeout bounds every subprocess call.
const InvocationTimeout = 30 * time.Second

// Client shells out to Command with a fixed `graph <verb> [args...]`
// calling convention.
type Client struct {
	Command string
	Args    []string
}

// New returns a cliclient.Client invoking command with baseArgs
// prepended to every subcommand.
func New(command string, baseArgs ...string) *Client {
	return &Client{Command: command, Args: baseArgs}
}

type nodeWire struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
	Alias    string            `json:"alias"`
}

func (w nodeWire) toNode() graphstore.Node {
	return graphstore.Node{ID: w.ID, Text: w.Text, Status: graphstore.Status(w.Status), Metadata: w.Metadata, Alias: w.Alias}
}

type edgeWire struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

func (c *Client) run(ctx context.Context, out any, args ...string) error {
	return retry.Do(ctx, func(ctx context.Context) error {
		runCtx, cancel := context.WithTimeout(ctx, InvocationTimeout)
		defer cancel()

		fullArgs := append(append([]string{}, c.Args...), args...)
		cmd := exec.CommandContext(runCtx, c.Command, fullArgs...)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return fmt.Errorf("graph cli %s: %w: %s", args, err, stderr.String())
		}
		if out == nil || stdout.Len() == 0 {
			return nil
		}
		if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
			return fmt.Errorf("graph cli %s: decode output: %w", args, err)
		}
		return nil
	})
}

func (c *Client) ListNodes(ctx context.Context) ([]graphstore.Node, error) {
	var wire []nodeWire
	if err := c.run(ctx, &wire, "nodes", "list"); err != nil {
		return nil, err
	}
	out := make([]graphstore.Node, len(wire))
	for i, w := range wire {
		out[i] = w.toNode()
	}
	return out, nil
}

func (c *Client) CreateNode(ctx context.Context, text string, status graphstore.Status, metadata graphstore.Metadata) (graphstore.Node, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return graphstore.Node{}, fmt.Errorf("graph cli: encode metadata: %w", err)
	}
	var wire nodeWire
	if err := c.run(ctx, &wire, "nodes", "create", "--text", text, "--status", string(status), "--metadata", string(metaJSON)); err != nil {
		return graphstore.Node{}, err
	}
	return wire.toNode(), nil
}

func (c *Client) UpdateMetadata(ctx context.Context, id string, metadata graphstore.Metadata) error {
	if err := idvalidate.RequireNodeID(id); err != nil {
		return err
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("graph cli: encode metadata: %w", err)
	}
	return c.run(ctx, nil, "nodes", "update-metadata", id, "--metadata", string(metaJSON))
}

func (c *Client) SetStatus(ctx context.Context, id string, status graphstore.Status) error {
	if err := idvalidate.RequireNodeID(id); err != nil {
		return err
	}
	return c.run(ctx, nil, "nodes", "set-status", id, "--status", string(status))
}

func (c *Client) ListEdges(ctx context.Context) ([]graphstore.Edge, error) {
	var wire []edgeWire
	if err := c.run(ctx, &wire, "edges", "list"); err != nil {
		return nil, err
	}
	out := make([]graphstore.Edge, len(wire))
	for i, w := range wire {
		out[i] = graphstore.Edge{Source: w.Source, Target: w.Target, Type: graphstore.EdgeType(w.Type), Weight: w.Weight}
	}
	return out, nil
}

func (c *Client) AddEdge(ctx context.Context, source, target string, edgeType graphstore.EdgeType) error {
	if err := idvalidate.RequireNodeID(source); err != nil {
		return err
	}
	if err := idvalidate.RequireNodeID(target); err != nil {
		return err
	}
	return c.run(ctx, nil, "edges", "add", "--source", source, "--target", target, "--type", string(edgeType))
}

// Children is a read-only query: it lists edges and nodes through the CLI
// and filters them in-process, validating the parent id before anything
// runs.
func (c *Client) Children(ctx context.Context, parent string) ([]graphstore.Node, error) {
	if err := idvalidate.RequireNodeID(parent); err != nil {
		return nil, err
	}
	edges, err := c.ListEdges(ctx)
	if err != nil {
		return nil, err
	}
	nodes, err := c.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]graphstore.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	var out []graphstore.Node
	for _, e := range edges {
		if e.Type == graphstore.EdgeImplements && e.Target == parent {
			if n, ok := byID[e.Source]; ok {
				out = append(out, n)
			}
		}
	}
	return out, nil
}

func (c *Client) Parent(ctx context.Context, child string) (graphstore.Node, bool, error) {
	if err := idvalidate.RequireNodeID(child); err != nil {
		return graphstore.Node{}, false, err
	}
	edges, err := c.ListEdges(ctx)
	if err != nil {
		return graphstore.Node{}, false, err
	}
	nodes, err := c.ListNodes(ctx)
	if err != nil {
		return graphstore.Node{}, false, err
	}
	byID := make(map[string]graphstore.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	for _, e := range edges {
		if e.Type == graphstore.EdgeImplements && e.Source == child {
			if n, ok := byID[e.Target]; ok {
				return n, true, nil
			}
		}
	}
	return graphstore.Node{}, false, nil
}
