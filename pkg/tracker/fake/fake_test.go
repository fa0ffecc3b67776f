package fake

import (
	"context"
	"testing"

	"github.com/weave-dev/weave-quality/pkg/tracker"
)

func TestCreateCloseReopenRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := New()
	issue, err := c.CreateIssue(ctx, "Fix the thing", "body", []string{"synced"})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if issue.State != tracker.StateOpen {
		t.Fatalf("new issue state = %v, want open", issue.State)
	}

	if err := c.Close(ctx, issue.Number, "Completed. Local node `lx-abcd` closed."); err != nil {
		t.Fatalf("Close: %v", err)
	}

	issues, err := c.ListIssues(ctx)
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if issues[0].State != tracker.StateClosed {
		t.Fatalf("state after close = %v, want closed", issues[0].State)
	}

	comments, err := c.RecentComments(ctx, issue.Number)
	if err != nil {
		t.Fatalf("RecentComments: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(comments))
	}

	if err := c.Reopen(ctx, issue.Number, "reopened"); err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	issues, _ = c.ListIssues(ctx)
	if issues[0].State != tracker.StateOpen {
		t.Fatalf("state after reopen = %v, want open", issues[0].State)
	}
}

func TestUnknownIssueOperationsFail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := New()
	if err := c.UpdateBody(ctx, 999, "x"); err == nil {
		t.Error("expected error updating unknown issue")
	}
	if err := c.Close(ctx, 999, "x"); err == nil {
		t.Error("expected error closing unknown issue")
	}
}
