// Package cliclient implements tracker.Client by shelling out to a
// configured tracker CLI binary, one JSON object per invocation. The
// tracker itself is treated as an opaque external collaborator: this
// package knows only a fixed subcommand/JSON contract, never a
// particular tracker's native API.
package cliclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/weave-dev/weave-quality/pkg/retry"
	"github.com/weave-dev/weave-quality/pkg/tracker"
)

// InvocationTimeout bounds every subprocess call.
const InvocationTimeout = 30 * time.Second

// Client shells out to Command (e.g. a vendor-specific wrapper script)
// with a fixed `issues <verb> [args...]` calling convention, reading one
// JSON object from stdout per call.
type Client struct {
	Command string
	Args    []string // leading args applied to every invocation (e.g. --repo owner/name)
}

// New returns a cliclient.Client invoking command with baseArgs
// prepended to every subcommand.
func New(command string, baseArgs ...string) *Client {
	return &Client{Command: command, Args: baseArgs}
}

type issueWire struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	State  string   `json:"state"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
}

func (w issueWire) toIssue() tracker.Issue {
	return tracker.Issue{Number: w.Number, Title: w.Title, State: tracker.State(w.State), Body: w.Body, Labels: w.Labels}
}

type commentWire struct {
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
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
			// The error text alone (including stderr) decides retryability
			// inside retry.Do via IsRateLimited; a decode failure below
			// never contains rate-limit language, so it always propagates
			// on the first attempt.
			return fmt.Errorf("tracker cli %s: %w: %s", args, err, stderr.String())
		}
		if out == nil || stdout.Len() == 0 {
			return nil
		}
		if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
			return fmt.Errorf("tracker cli %s: decode output: %w", args, err)
		}
		return nil
	})
}

func (c *Client) ListIssues(ctx context.Context) ([]tracker.Issue, error) {
	var wire []issueWire
	if err := c.run(ctx, &wire, "issues", "list", "--limit", fmt.Sprintf("%d", tracker.DefaultPageLimit), "--state", "all"); err != nil {
		return nil, err
	}
	out := make([]tracker.Issue, len(wire))
	for i, w := range wire {
		out[i] = w.toIssue()
	}
	return out, nil
}

func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (tracker.Issue, error) {
	var wire issueWire
	args := []string{"issues", "create", "--title", title, "--body", body}
	for _, l := range labels {
		args = append(args, "--label", l)
	}
	if err := c.run(ctx, &wire, args...); err != nil {
		return tracker.Issue{}, err
	}
	return wire.toIssue(), nil
}

func (c *Client) UpdateBody(ctx context.Context, number int, body string) error {
	return c.run(ctx, nil, "issues", "update", fmt.Sprintf("%d", number), "--body", body)
}

func (c *Client) SetLabels(ctx context.Context, number int, labels []string) error {
	args := []string{"issues", "relabel", fmt.Sprintf("%d", number)}
	for _, l := range labels {
		args = append(args, "--label", l)
	}
	return c.run(ctx, nil, args...)
}

func (c *Client) Close(ctx context.Context, number int, comment string) error {
	return c.run(ctx, nil, "issues", "close", fmt.Sprintf("%d", number), "--comment", comment)
}

func (c *Client) Reopen(ctx context.Context, number int, comment string) error {
	return c.run(ctx, nil, "issues", "reopen", fmt.Sprintf("%d", number), "--comment", comment)
}

func (c *Client) RecentComments(ctx context.Context, number int) ([]tracker.Comment, error) {
	var wire []commentWire
	if err := c.run(ctx, &wire, "issues", "comments", fmt.Sprintf("%d", number)); err != nil {
		return nil, err
	}
	out := make([]tracker.Comment, len(wire))
	for i, w := range wire {
		out[i] = tracker.Comment{Body: w.Body, CreatedAt: w.CreatedAt}
	}
	return out, nil
}
