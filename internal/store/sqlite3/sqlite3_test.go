package sqlite3

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/worldline-go/types"

	"github.com/aramirez087/tuitbot/internal/config"
	"github.com/aramirez087/tuitbot/internal/core"
)

func newTestStore(t *testing.T, encKey []byte) *Store {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.StoreSQLite{Datasource: filepath.Join(dir, "test.db")}
	s, err := New(context.Background(), cfg, encKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAccountRoundTripPlaintext(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	acct := core.Account{
		ID:          "acct-1",
		Handle:      "alice",
		AccessToken: "access-tok",
		RefreshToken: "refresh-tok",
	}
	if err := s.PutAccount(ctx, acct); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}

	got, err := s.GetAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.AccessToken != "access-tok" || got.RefreshToken != "refresh-tok" {
		t.Fatalf("expected round-tripped plaintext tokens, got %+v", got)
	}
}

func TestAccountRoundTripEncrypted(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	s := newTestStore(t, key)
	ctx := context.Background()

	acct := core.Account{ID: "acct-1", Handle: "alice", AccessToken: "access-tok", RefreshToken: "refresh-tok"}
	if err := s.PutAccount(ctx, acct); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}

	got, err := s.GetAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.AccessToken != "access-tok" || got.RefreshToken != "refresh-tok" {
		t.Fatalf("expected GetAccount to transparently decrypt, got %+v", got)
	}

	row := s.conn.QueryRowContext(ctx, "SELECT access_token FROM "+s.tables.accounts+" WHERE account_id = ?", acct.ID)
	var raw string
	if err := row.Scan(&raw); err != nil {
		t.Fatalf("scan raw access_token: %v", err)
	}
	if raw == "access-tok" {
		t.Fatal("expected access_token to be stored ciphertext, not plaintext")
	}
}

func TestRotateEncryptionKey(t *testing.T) {
	oldKey := make([]byte, 32)
	for i := range oldKey {
		oldKey[i] = byte(i)
	}
	newKey := make([]byte, 32)
	for i := range newKey {
		newKey[i] = byte(i + 1)
	}

	s := newTestStore(t, oldKey)
	ctx := context.Background()

	if err := s.PutAccount(ctx, core.Account{ID: "acct-1", AccessToken: "tok-a"}); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}
	if err := s.PutAccount(ctx, core.Account{ID: "acct-2", AccessToken: "tok-b"}); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}

	if err := s.RotateEncryptionKey(ctx, oldKey, newKey); err != nil {
		t.Fatalf("RotateEncryptionKey: %v", err)
	}
	s.encKey = newKey

	got, err := s.GetAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetAccount after rotation: %v", err)
	}
	if got.AccessToken != "tok-a" {
		t.Fatalf("expected token to decrypt correctly under the new key, got %q", got.AccessToken)
	}
}

func TestProcessLockStaleTakeover(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	if err := s.AcquireProcessLock(ctx, "owner-a"); err != nil {
		t.Fatalf("AcquireProcessLock: %v", err)
	}
	if err := s.AcquireProcessLock(ctx, "owner-b"); err == nil {
		t.Fatal("expected a fresh lock held by owner-a to reject owner-b")
	}

	// Force the heartbeat stale by reaching in and rewriting it directly.
	stale := time.Now().UTC().Add(-time.Hour)
	if _, err := s.conn.ExecContext(ctx, "UPDATE "+s.tables.processLock+" SET heartbeat_at = ?", stale.Format(time.RFC3339)); err != nil {
		t.Fatalf("force-stale heartbeat: %v", err)
	}

	if err := s.AcquireProcessLock(ctx, "owner-b"); err != nil {
		t.Fatalf("expected owner-b to take over a stale lock: %v", err)
	}
}

func TestApprovalQueueOldestApproved(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	now := time.Now().UTC()
	older := core.ApprovalQueueItem{ID: "app-1", AccountID: "acct-1", ActionKind: "post_tweet", Status: core.ApprovalApproved}
	newer := core.ApprovalQueueItem{ID: "app-2", AccountID: "acct-1", ActionKind: "post_tweet", Status: core.ApprovalApproved}

	if err := s.PutApproval(ctx, older); err != nil {
		t.Fatalf("PutApproval(older): %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := s.PutApproval(ctx, newer); err != nil {
		t.Fatalf("PutApproval(newer): %v", err)
	}

	oldest, found, err := s.OldestApproved(ctx, "acct-1")
	if err != nil {
		t.Fatalf("OldestApproved: %v", err)
	}
	if !found {
		t.Fatal("expected an approved item to be found")
	}
	if oldest.ID != "app-1" {
		t.Fatalf("expected app-1 (created first) to be the oldest approved, got %q", oldest.ID)
	}
	_ = now
}

func TestBackupAndRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	datasource := filepath.Join(dir, "live.db")
	cfg := &config.StoreSQLite{Datasource: datasource}
	s, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := s.PutAccount(ctx, core.Account{ID: "acct-1", Handle: "alice"}); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}

	backupPath := filepath.Join(dir, "backup.tar.gz")
	if err := s.Backup(ctx, datasource, backupPath); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Simulate data loss, then restore from the archive.
	restoreDatasource := filepath.Join(dir, "restored.db")
	if err := Restore(ctx, backupPath, restoreDatasource); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	restored, err := New(ctx, &config.StoreSQLite{Datasource: restoreDatasource}, nil)
	if err != nil {
		t.Fatalf("New(restored): %v", err)
	}
	defer restored.Close()

	got, err := restored.GetAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetAccount(restored): %v", err)
	}
	if got.Handle != "alice" {
		t.Fatalf("expected restored account to carry over, got %+v", got)
	}
}

func TestAuditSafetyGateQueries(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := core.MutationAuditRecord{
		ID: "audit-1", CorrelationID: "corr-1", AccountID: "acct-1", ToolName: "reply_to_tweet",
		Category: core.CategoryEngage, RequestFamily: core.FamilyPublicAPI,
		ParamsJSON: `{"text":"Great point!","tweet_id":"tweet-a"}`, Outcome: "executed",
		IdempotencyHash: "hash-1", CreatedAt: now,
		AuthorID:       types.NewNull("author-1"),
		TargetID:       types.NewNull("tweet-a"),
		NormalizedText: types.NewNull("great point!"),
	}
	if err := s.PutAudit(ctx, rec); err != nil {
		t.Fatalf("PutAudit: %v", err)
	}

	count, err := s.CountRepliesToAuthorToday(ctx, "acct-1", "author-1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountRepliesToAuthorToday: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one reply matched to author-1, got %d", count)
	}

	last, found, err := s.LastMutationToTarget(ctx, "acct-1", "tweet-a")
	if err != nil {
		t.Fatalf("LastMutationToTarget: %v", err)
	}
	if !found {
		t.Fatal("expected a mutation recorded against tweet-a")
	}
	if last.IsZero() {
		t.Fatal("expected a non-zero last-mutation timestamp")
	}

	dup, err := s.FindDuplicateText(ctx, "acct-1", "author-1", "great point!", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("FindDuplicateText: %v", err)
	}
	if !dup {
		t.Fatal("expected the normalized text to match as a duplicate for author-1")
	}

	noDup, err := s.FindDuplicateText(ctx, "acct-1", "author-2", "great point!", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("FindDuplicateText(other author): %v", err)
	}
	if noDup {
		t.Fatal("expected no duplicate match for a different author")
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	txErr := s.WithTx(ctx, func(ctx context.Context, tx core.Storer) error {
		if err := tx.PutAccount(ctx, core.Account{ID: "acct-1"}); err != nil {
			return err
		}
		return core.NewError(core.CodeDBError, "force rollback")
	})
	if txErr == nil {
		t.Fatal("expected WithTx to propagate the inner error")
	}

	if _, err := s.GetAccount(ctx, "acct-1"); err == nil {
		t.Fatal("expected the account write to have rolled back")
	}
}
