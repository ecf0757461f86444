// Package memory is an in-memory implementation of core.Storer. Data does
// not survive process restarts — it exists for tests. A single RWMutex
// guards plain Go maps, with ulid-generated ids.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aramirez087/tuitbot/internal/core"
)

// Store is an in-memory Storer. The zero value is not usable — build one
// with New.
type Store struct {
	mu sync.RWMutex

	accounts  map[string]core.Account
	tweets    map[string]core.OriginalTweet
	drafts    map[string]core.Draft
	approvals map[string]core.ApprovalQueueItem
	audits    map[string]core.MutationAuditRecord
	telemetry map[string]core.McpTelemetryRecord
	rateLimit map[string]core.RateLimitUsage // key: accountID|date|kind
	nodes     map[string]core.ContentNode
	seeds     map[string]core.DraftSeed
	sources   map[string]core.SourceContext
	sessions  map[string]core.Session
	lock      *core.ProcessLock
}

// New builds an empty in-memory store.
func New() *Store {
	slog.Info("using in-memory store (data will not persist across restarts)")
	return &Store{
		accounts:  make(map[string]core.Account),
		tweets:    make(map[string]core.OriginalTweet),
		drafts:    make(map[string]core.Draft),
		approvals: make(map[string]core.ApprovalQueueItem),
		audits:    make(map[string]core.MutationAuditRecord),
		telemetry: make(map[string]core.McpTelemetryRecord),
		rateLimit: make(map[string]core.RateLimitUsage),
		nodes:     make(map[string]core.ContentNode),
		seeds:     make(map[string]core.DraftSeed),
		sources:   make(map[string]core.SourceContext),
		sessions:  make(map[string]core.Session),
	}
}

func (s *Store) Close() error { return nil }

// WithTx has no real transaction semantics in memory — fn runs directly
// against s under the same lock discipline every other method uses. A fn
// error is surfaced to the caller; there is nothing to roll back since each
// individual map mutation below is already atomic under mu.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx core.Storer) error) error {
	return fn(ctx, s)
}

// ─── Accounts ───

func (s *Store) GetAccount(_ context.Context, id string) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[id]
	if !ok {
		return core.Account{}, core.NewError(core.CodeNotFound, fmt.Sprintf("account %q not found", id))
	}
	return acct, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) PutAccount(_ context.Context, acct core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.accounts[acct.ID]; ok {
		acct.CreatedAt = existing.CreatedAt
	} else {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now
	s.accounts[acct.ID] = acct
	return nil
}

func (s *Store) RotateEncryptionKey(_ context.Context, _, _ []byte) error {
	// The in-memory store never encrypts tokens at rest, so rotation is a no-op.
	return nil
}

// ─── Tweets ───

func (s *Store) PutOriginalTweet(_ context.Context, t core.OriginalTweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.tweets[t.TweetID]; ok {
		t.ObservedAt = existing.ObservedAt
	} else {
		t.ObservedAt = time.Now().UTC()
	}
	s.tweets[t.TweetID] = t
	return nil
}

func (s *Store) GetOriginalTweet(_ context.Context, tweetID string) (core.OriginalTweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tweets[tweetID]
	if !ok {
		return core.OriginalTweet{}, core.NewError(core.CodeNotFound, fmt.Sprintf("tweet %q not found", tweetID))
	}
	return t, nil
}

func (s *Store) ListTopScoredTweets(_ context.Context, category core.TweetCategory, limit int) ([]core.OriginalTweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]core.OriginalTweet, 0)
	for _, t := range s.tweets {
		if t.Category == category {
			matched = append(matched, t)
		}
	}
	slices.SortFunc(matched, func(a, b core.OriginalTweet) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// ─── Drafts ───

func (s *Store) PutDraft(_ context.Context, d core.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.drafts[d.ID]; ok {
		d.CreatedAt = existing.CreatedAt
	} else {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	s.drafts[d.ID] = d
	return nil
}

func (s *Store) GetDraft(_ context.Context, id string) (core.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok {
		return core.Draft{}, core.NewError(core.CodeNotFound, fmt.Sprintf("draft %q not found", id))
	}
	return d, nil
}

func (s *Store) ListDraftsDue(_ context.Context, accountID string, now time.Time) ([]core.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Draft, 0)
	for _, d := range s.drafts {
		if d.AccountID != accountID || d.Status != core.DraftStatusScheduled {
			continue
		}
		if d.ScheduledFor.Valid && d.ScheduledFor.V.Time.After(now) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteDraft(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, id)
	return nil
}

// ─── Approvals ───

func (s *Store) PutApproval(_ context.Context, item core.ApprovalQueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.approvals[item.ID]; ok {
		item.CreatedAt = existing.CreatedAt
	} else {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	s.approvals[item.ID] = item
	return nil
}

func (s *Store) GetApproval(_ context.Context, id string) (core.ApprovalQueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.approvals[id]
	if !ok {
		return core.ApprovalQueueItem{}, core.NewError(core.CodeNotFound, fmt.Sprintf("approval %q not found", id))
	}
	return item, nil
}

func (s *Store) ListApprovals(_ context.Context, status core.ApprovalStatus) ([]core.ApprovalQueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.ApprovalQueueItem, 0)
	for _, item := range s.approvals {
		if item.Status == status {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) OldestApproved(_ context.Context, accountID string) (core.ApprovalQueueItem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var oldest core.ApprovalQueueItem
	found := false
	for _, item := range s.approvals {
		if item.AccountID != accountID || item.Status != core.ApprovalApproved {
			continue
		}
		if !found || item.CreatedAt.Before(oldest.CreatedAt) {
			oldest = item
			found = true
		}
	}
	return oldest, found, nil
}

// ─── Audit ───

func (s *Store) PutAudit(_ context.Context, rec core.MutationAuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.audits[rec.ID] = rec
	return nil
}

func (s *Store) FindAuditByHash(_ context.Context, hash string, since time.Time) (core.MutationAuditRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.audits {
		if rec.IdempotencyHash == hash && !rec.CreatedAt.Before(since) {
			return rec, true, nil
		}
	}
	return core.MutationAuditRecord{}, false, nil
}

func (s *Store) CountExecutedSince(_ context.Context, accountID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.audits {
		if rec.AccountID == accountID && rec.Outcome == "executed" && !rec.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) FindDuplicateText(_ context.Context, accountID, authorID, normalizedText string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.audits {
		if rec.AccountID != accountID || rec.Outcome != "executed" || rec.CreatedAt.Before(since) {
			continue
		}
		if !rec.AuthorID.Valid || rec.AuthorID.V != authorID {
			continue
		}
		if rec.NormalizedText.Valid && rec.NormalizedText.V == normalizedText {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CountRepliesToAuthorToday(_ context.Context, accountID, authorID string, dayStart time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.audits {
		if rec.AccountID != accountID || rec.Outcome != "executed" || rec.CreatedAt.Before(dayStart) {
			continue
		}
		if rec.AuthorID.Valid && rec.AuthorID.V == authorID {
			n++
		}
	}
	return n, nil
}

func (s *Store) LastMutationToTarget(_ context.Context, accountID, targetID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last time.Time
	found := false
	for _, rec := range s.audits {
		if rec.AccountID != accountID || rec.Outcome != "executed" {
			continue
		}
		if !rec.TargetID.Valid || rec.TargetID.V != targetID {
			continue
		}
		if !found || rec.CreatedAt.After(last) {
			last = rec.CreatedAt
			found = true
		}
	}
	return last, found, nil
}

// ─── Telemetry ───

func (s *Store) PutTelemetry(_ context.Context, rec core.McpTelemetryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.telemetry[rec.ID] = rec
	return nil
}

func (s *Store) PruneTelemetryOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.telemetry {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.telemetry, id)
			n++
		}
	}
	return n, nil
}

// ─── Rate limit ───

func rateLimitKey(accountID, date, kind string) string {
	return accountID + "|" + date + "|" + kind
}

func (s *Store) IncrementRateLimit(_ context.Context, accountID, date, kind string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rateLimitKey(accountID, date, kind)
	usage := s.rateLimit[key]
	usage.AccountID, usage.Date, usage.Kind = accountID, date, kind
	usage.Count++
	s.rateLimit[key] = usage
	return usage.Count, nil
}

func (s *Store) GetRateLimit(_ context.Context, accountID, date, kind string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rateLimit[rateLimitKey(accountID, date, kind)].Count, nil
}

// ─── Content ───

func (s *Store) UpsertContentNode(_ context.Context, n core.ContentNode) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.nodes {
		if existing.SourceID == n.SourceID && existing.RelativePath == n.RelativePath {
			if existing.ContentHash == n.ContentHash {
				return false, nil
			}
			n.ID = id
			n.CreatedAt = existing.CreatedAt
			n.UpdatedAt = time.Now().UTC()
			n.Status = core.NodePending
			s.nodes[id] = n
			return false, nil
		}
	}
	n.ID = ulid.Make().String()
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	n.Status = core.NodePending
	s.nodes[n.ID] = n
	return true, nil
}

func (s *Store) ListNodesByStatus(_ context.Context, status core.NodeStatus) ([]core.ContentNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.ContentNode, 0)
	for _, n := range s.nodes {
		if n.Status == status {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MarkNodeProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return core.NewError(core.CodeNotFound, fmt.Sprintf("content node %q not found", id))
	}
	n.Status = core.NodeProcessed
	n.UpdatedAt = time.Now().UTC()
	s.nodes[id] = n
	return nil
}

func (s *Store) PutDraftSeed(_ context.Context, seed core.DraftSeed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seed.ID == "" {
		seed.ID = ulid.Make().String()
	}
	if seed.CreatedAt.IsZero() {
		seed.CreatedAt = time.Now().UTC()
	}
	s.seeds[seed.ID] = seed
	return nil
}

func (s *Store) ListSeeds(_ context.Context, nodeID string) ([]core.DraftSeed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.DraftSeed, 0)
	for _, seed := range s.seeds {
		if seed.NodeID == nodeID {
			out = append(out, seed)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// ─── Sources ───

func (s *Store) PutSource(_ context.Context, src core.SourceContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.sources[src.ID]; ok {
		src.CreatedAt = existing.CreatedAt
	} else {
		src.CreatedAt = now
	}
	src.UpdatedAt = now
	s.sources[src.ID] = src
	return nil
}

func (s *Store) ListSources(_ context.Context) ([]core.SourceContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.SourceContext, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ─── Sessions ───

func (s *Store) PutSession(_ context.Context, sess core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	s.sessions[sess.ID] = sess
	return nil
}

func (s *Store) GetSession(_ context.Context, hash string) (core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[hash]
	if !ok {
		return core.Session{}, core.NewError(core.CodeNotFound, "session not found")
	}
	return sess, nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// ─── Process lock ───

func (s *Store) AcquireProcessLock(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if s.lock != nil && s.lock.Owner != owner && now.Sub(s.lock.HeartbeatAt) < 30*time.Second {
		return core.NewError(core.CodeConflict, fmt.Sprintf("process lock held by %q", s.lock.Owner))
	}
	s.lock = &core.ProcessLock{ID: 1, Owner: owner, AcquiredAt: now, HeartbeatAt: now}
	return nil
}

func (s *Store) ReleaseProcessLock(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lock != nil && s.lock.Owner == owner {
		s.lock = nil
	}
	return nil
}

func (s *Store) Heartbeat(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lock == nil || s.lock.Owner != owner {
		return core.NewError(core.CodeConflict, "process lock not held by this owner")
	}
	s.lock.HeartbeatAt = time.Now().UTC()
	return nil
}

var _ core.Storer = (*Store)(nil)
