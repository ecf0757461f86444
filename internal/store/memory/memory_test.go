package memory

import (
	"context"
	"testing"
	"time"

	"github.com/aramirez087/tuitbot/internal/core"
)

func TestAccountRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	acct := core.Account{ID: "acct-1", Handle: "alice", AccessToken: "tok"}
	if err := s.PutAccount(ctx, acct); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}

	got, err := s.GetAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Handle != "alice" || got.AccessToken != "tok" {
		t.Fatalf("unexpected account: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be stamped, got %+v", got)
	}

	if _, err := s.GetAccount(ctx, "missing"); err == nil {
		t.Fatal("expected not-found error for missing account")
	}

	createdAt := got.CreatedAt
	acct.Handle = "alice2"
	if err := s.PutAccount(ctx, acct); err != nil {
		t.Fatalf("PutAccount (update): %v", err)
	}
	got, err = s.GetAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetAccount after update: %v", err)
	}
	if got.Handle != "alice2" {
		t.Fatalf("expected updated handle, got %q", got.Handle)
	}
	if !got.CreatedAt.Equal(createdAt) {
		t.Fatalf("expected CreatedAt to be preserved across updates: got %v, want %v", got.CreatedAt, createdAt)
	}
}

func TestListAccountsSorted(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		if err := s.PutAccount(ctx, core.Account{ID: id}); err != nil {
			t.Fatalf("PutAccount(%q): %v", id, err)
		}
	}
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(accounts))
	}
	for i, want := range []string{"a", "b", "c"} {
		if accounts[i].ID != want {
			t.Fatalf("expected sorted ids [a b c], got %v", accounts)
		}
	}
}

func TestApprovalQueueTransitions(t *testing.T) {
	s := New()
	ctx := context.Background()

	item := core.ApprovalQueueItem{ID: "app-1", AccountID: "acct-1", Status: core.ApprovalPending}
	if err := s.PutApproval(ctx, item); err != nil {
		t.Fatalf("PutApproval: %v", err)
	}

	pending, err := s.ListApprovals(ctx, core.ApprovalPending)
	if err != nil {
		t.Fatalf("ListApprovals: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending item, got %d", len(pending))
	}

	got, err := s.GetApproval(ctx, "app-1")
	if err != nil {
		t.Fatalf("GetApproval: %v", err)
	}
	got.Status = core.ApprovalApproved
	if err := s.PutApproval(ctx, got); err != nil {
		t.Fatalf("PutApproval (approve): %v", err)
	}

	pending, err = s.ListApprovals(ctx, core.ApprovalPending)
	if err != nil {
		t.Fatalf("ListApprovals after approve: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected 0 pending items after approve, got %d", len(pending))
	}

	oldest, found, err := s.OldestApproved(ctx, "acct-1")
	if err != nil {
		t.Fatalf("OldestApproved: %v", err)
	}
	if !found || oldest.ID != "app-1" {
		t.Fatalf("expected to find app-1 as oldest approved, got %+v found=%v", oldest, found)
	}
}

func TestContentNodeUpsertDedup(t *testing.T) {
	s := New()
	ctx := context.Background()

	n := core.ContentNode{SourceID: "src-1", RelativePath: "posts/a.md", ContentHash: "h1"}
	created, err := s.UpsertContentNode(ctx, n)
	if err != nil {
		t.Fatalf("UpsertContentNode: %v", err)
	}
	if !created {
		t.Fatal("expected first upsert to report created=true")
	}

	created, err = s.UpsertContentNode(ctx, n)
	if err != nil {
		t.Fatalf("UpsertContentNode (dup): %v", err)
	}
	if created {
		t.Fatal("expected identical content hash to not be treated as a new node")
	}

	n.ContentHash = "h2"
	created, err = s.UpsertContentNode(ctx, n)
	if err != nil {
		t.Fatalf("UpsertContentNode (changed hash): %v", err)
	}
	if created {
		t.Fatal("expected changed content hash to update the existing node, not create a second one")
	}

	nodes, err := s.ListNodesByStatus(ctx, core.NodePending)
	if err != nil {
		t.Fatalf("ListNodesByStatus: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected exactly one node after dedup, got %d", len(nodes))
	}
	if nodes[0].ContentHash != "h2" {
		t.Fatalf("expected node to carry the updated hash, got %q", nodes[0].ContentHash)
	}
}

func TestProcessLockSingleOwner(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.AcquireProcessLock(ctx, "owner-a"); err != nil {
		t.Fatalf("AcquireProcessLock(owner-a): %v", err)
	}
	if err := s.AcquireProcessLock(ctx, "owner-b"); err == nil {
		t.Fatal("expected a second owner to be rejected while the lock is fresh")
	}
	if err := s.Heartbeat(ctx, "owner-a"); err != nil {
		t.Fatalf("Heartbeat(owner-a): %v", err)
	}
	if err := s.ReleaseProcessLock(ctx, "owner-a"); err != nil {
		t.Fatalf("ReleaseProcessLock: %v", err)
	}
	if err := s.AcquireProcessLock(ctx, "owner-b"); err != nil {
		t.Fatalf("expected owner-b to acquire after release: %v", err)
	}
}

func TestPruneTelemetryOlderThan(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.PutTelemetry(ctx, core.McpTelemetryRecord{ID: "old", CreatedAt: now.Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("PutTelemetry(old): %v", err)
	}
	if err := s.PutTelemetry(ctx, core.McpTelemetryRecord{ID: "new", CreatedAt: now}); err != nil {
		t.Fatalf("PutTelemetry(new): %v", err)
	}

	pruned, err := s.PruneTelemetryOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneTelemetryOlderThan: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned row, got %d", pruned)
	}
}

func TestDeleteExpiredSessions(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.PutSession(ctx, core.Session{ID: "expired", ExpiresAt: now.Add(-time.Minute)}); err != nil {
		t.Fatalf("PutSession(expired): %v", err)
	}
	if err := s.PutSession(ctx, core.Session{ID: "live", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("PutSession(live): %v", err)
	}

	deleted, err := s.DeleteExpiredSessions(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted session, got %d", deleted)
	}
	if _, err := s.GetSession(ctx, "live"); err != nil {
		t.Fatalf("expected live session to survive: %v", err)
	}
}

func TestRateLimitIncrement(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.IncrementRateLimit(ctx, "acct-1", "2026-07-30", "tweet"); err != nil {
			t.Fatalf("IncrementRateLimit: %v", err)
		}
	}
	count, err := s.GetRateLimit(ctx, "acct-1", "2026-07-30", "tweet")
	if err != nil {
		t.Fatalf("GetRateLimit: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}

func TestWithTxRunsDirectly(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context, tx core.Storer) error {
		return tx.PutAccount(ctx, core.Account{ID: "in-tx"})
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if _, err := s.GetAccount(ctx, "in-tx"); err != nil {
		t.Fatalf("expected account written inside WithTx to be visible: %v", err)
	}
}
