package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/worldline-go/types"

	"github.com/aramirez087/tuitbot/internal/config"
	"github.com/aramirez087/tuitbot/internal/core"
)

// These tests exercise the Postgres backend against a real server. They
// require TUITBOT_TEST_POSTGRES_DSN to point at a scratch database the test
// is free to create tables in, and are skipped otherwise.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TUITBOT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TUITBOT_TEST_POSTGRES_DSN not set, skipping postgres integration test")
	}

	prefix := "tuitbot_test_"
	cfg := &config.StorePostgres{
		TablePrefix: &prefix,
		Datasource:  dsn,
	}
	s, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresAccountRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	acct := core.Account{ID: "acct-pg-1", Handle: "alice", AccessToken: "tok"}
	if err := s.PutAccount(ctx, acct); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}

	got, err := s.GetAccount(ctx, "acct-pg-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Handle != "alice" || got.AccessToken != "tok" {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestPostgresProcessLockSingleOwner(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.AcquireProcessLock(ctx, "owner-a"); err != nil {
		t.Fatalf("AcquireProcessLock(owner-a): %v", err)
	}
	if err := s.AcquireProcessLock(ctx, "owner-b"); err == nil {
		t.Fatal("expected a second owner to be rejected while the lock is fresh")
	}
	if err := s.ReleaseProcessLock(ctx, "owner-a"); err != nil {
		t.Fatalf("ReleaseProcessLock: %v", err)
	}
}

func TestPostgresWithTxRollsBackOnError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	txErr := s.WithTx(ctx, func(ctx context.Context, tx core.Storer) error {
		if err := tx.PutAccount(ctx, core.Account{ID: "acct-pg-tx"}); err != nil {
			return err
		}
		return core.NewError(core.CodeDBError, "force rollback")
	})
	if txErr == nil {
		t.Fatal("expected WithTx to propagate the inner error")
	}

	if _, err := s.GetAccount(ctx, "acct-pg-tx"); err == nil {
		t.Fatal("expected the account write to have rolled back")
	}
}

func TestPostgresAuditSafetyGateQueries(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := core.MutationAuditRecord{
		ID: "audit-pg-1", CorrelationID: "corr-pg-1", AccountID: "acct-pg-audit", ToolName: "reply_to_tweet",
		Category: core.CategoryEngage, RequestFamily: core.FamilyPublicAPI,
		ParamsJSON: `{"text":"Great point!","tweet_id":"tweet-pg-a"}`, Outcome: "executed",
		IdempotencyHash: "hash-pg-1", CreatedAt: now,
		AuthorID:       types.NewNull("author-pg-1"),
		TargetID:       types.NewNull("tweet-pg-a"),
		NormalizedText: types.NewNull("great point!"),
	}
	if err := s.PutAudit(ctx, rec); err != nil {
		t.Fatalf("PutAudit: %v", err)
	}

	count, err := s.CountRepliesToAuthorToday(ctx, "acct-pg-audit", "author-pg-1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountRepliesToAuthorToday: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one reply matched to author-pg-1, got %d", count)
	}

	last, found, err := s.LastMutationToTarget(ctx, "acct-pg-audit", "tweet-pg-a")
	if err != nil {
		t.Fatalf("LastMutationToTarget: %v", err)
	}
	if !found || last.IsZero() {
		t.Fatal("expected a mutation recorded against tweet-pg-a")
	}

	dup, err := s.FindDuplicateText(ctx, "acct-pg-audit", "author-pg-1", "great point!", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("FindDuplicateText: %v", err)
	}
	if !dup {
		t.Fatal("expected the normalized text to match as a duplicate for author-pg-1")
	}

	noDup, err := s.FindDuplicateText(ctx, "acct-pg-audit", "author-pg-2", "great point!", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("FindDuplicateText(other author): %v", err)
	}
	if noDup {
		t.Fatal("expected no duplicate match for a different author")
	}
}

func TestPostgresRateLimitIncrement(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	day := time.Now().UTC().Format("2006-01-02")
	for i := 0; i < 3; i++ {
		if _, err := s.IncrementRateLimit(ctx, "acct-pg-rl", day, "tweet"); err != nil {
			t.Fatalf("IncrementRateLimit: %v", err)
		}
	}
	count, err := s.GetRateLimit(ctx, "acct-pg-rl", day, "tweet")
	if err != nil {
		t.Fatalf("GetRateLimit: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}
