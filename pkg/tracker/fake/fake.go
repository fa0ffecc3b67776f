// Package fake is an in-memory tracker.Client for tests: a scripted
// fixture used wherever the reconciler's tests need a remote tracker
// without a subprocess.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/weave-dev/weave-quality/pkg/tracker"
)

// Client is a thread-safe in-memory tracker.Client.
type Client struct {
	mu       sync.Mutex
	issues   map[int]tracker.Issue
	comments map[int][]tracker.Comment
	nextNum  int
}

// New returns an empty fake tracker client.
func New() *Client {
	return &Client{issues: make(map[int]tracker.Issue), comments: make(map[int][]tracker.Comment), nextNum: 1}
}

// Seed inserts an issue with a caller-chosen number, for test setup.
func (c *Client) Seed(issue tracker.Issue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issues[issue.Number] = issue
	if issue.Number >= c.nextNum {
		c.nextNum = issue.Number + 1
	}
}

func (c *Client) ListIssues(_ context.Context) ([]tracker.Issue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]tracker.Issue, 0, len(c.issues))
	for _, i := range c.issues {
		out = append(out, i)
	}
	return out, nil
}

func (c *Client) CreateIssue(_ context.Context, title, body string, labels []string) (tracker.Issue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	issue := tracker.Issue{Number: c.nextNum, Title: title, State: tracker.StateOpen, Body: body, Labels: labels}
	c.issues[issue.Number] = issue
	c.nextNum++
	return issue, nil
}

func (c *Client) UpdateBody(_ context.Context, number int, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	issue, ok := c.issues[number]
	if !ok {
		return fmt.Errorf("fake tracker: issue %d not found", number)
	}
	issue.Body = body
	c.issues[number] = issue
	return nil
}

func (c *Client) SetLabels(_ context.Context, number int, labels []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	issue, ok := c.issues[number]
	if !ok {
		return fmt.Errorf("fake tracker: issue %d not found", number)
	}
	issue.Labels = labels
	c.issues[number] = issue
	return nil
}

func (c *Client) Close(_ context.Context, number int, comment string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	issue, ok := c.issues[number]
	if !ok {
		return fmt.Errorf("fake tracker: issue %d not found", number)
	}
	issue.State = tracker.StateClosed
	c.issues[number] = issue
	c.comments[number] = append(c.comments[number], tracker.Comment{Body: comment})
	return nil
}

func (c *Client) Reopen(_ context.Context, number int, comment string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	issue, ok := c.issues[number]
	if !ok {
		return fmt.Errorf("fake tracker: issue %d not found", number)
	}
	issue.State = tracker.StateOpen
	c.issues[number] = issue
	c.comments[number] = append(c.comments[number], tracker.Comment{Body: comment})
	return nil
}

func (c *Client) RecentComments(_ context.Context, number int) ([]tracker.Comment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tracker.Comment(nil), c.comments[number]...), nil
}
