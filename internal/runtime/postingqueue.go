package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/gateway"
)

// postingQueue is the single-consumer serialized queue over every account's
// post/reply/thread actions. It is signal-driven (Signal
// wakes it immediately when a draft is queued or an item is approved) with
// a short fallback poll so a missed signal never stalls indefinitely.
type postingQueue struct {
	deps Deps

	signalCh chan struct{}

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	pausedTo map[string]time.Time // account_id -> rate-limit pause deadline
}

func newPostingQueue(deps Deps) *postingQueue {
	return &postingQueue{
		deps:     deps,
		signalCh: make(chan struct{}, 1),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		pausedTo: make(map[string]time.Time),
	}
}

func (pq *postingQueue) signal() {
	select {
	case pq.signalCh <- struct{}{}:
	default:
	}
}

// run drains the queue whenever signalled, plus a 2s fallback poll.
func (pq *postingQueue) run(ctx context.Context, rt *Runtime) {
	poll := time.NewTicker(2 * time.Second)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-pq.signalCh:
		case <-poll.C:
		}
		started := time.Now()
		pq.drain(ctx, rt)
		rt.recordTaskRun("posting_queue", started, nil)
	}
}

func (pq *postingQueue) drain(ctx context.Context, rt *Runtime) {
	accounts, err := pq.deps.Store.ListAccounts(ctx)
	if err != nil {
		slog.Error("runtime: posting queue list accounts failed", "error", err)
		return
	}

	for _, acct := range accounts {
		if ctx.Err() != nil {
			return
		}
		if until, paused := pq.rateLimitPaused(acct.ID); paused {
			if time.Now().Before(until) {
				continue
			}
			pq.clearPause(acct.ID)
		}

		drafts, err := pq.deps.Store.ListDraftsDue(ctx, acct.ID, time.Now().UTC())
		if err != nil {
			slog.Error("runtime: list due drafts failed", "account_id", acct.ID, "error", err)
			continue
		}
		for _, d := range drafts {
			if ctx.Err() != nil {
				return
			}
			if err := pq.executeDraft(ctx, rt, acct, d); err != nil {
				slog.Error("runtime: posting queue draft execution failed", "account_id", acct.ID, "draft_id", d.ID, "error", err)
			}
		}
	}
}

// executeApproval runs the oldest-approved item for an account through the
// gateway with SkipApproval=true.
func (pq *postingQueue) executeApproval(ctx context.Context, rt *Runtime, acct core.Account, item core.ApprovalQueueItem) error {
	var (
		toolName = item.ActionKind
		params   gateway.Params
	)

	if item.DraftID.Valid {
		// Most approval items originate from workflow.Queue, which links a
		// Draft rather than marshaling raw tool params — rebuild params the
		// same way the direct (non-approval) posting path does.
		d, err := pq.deps.Store.GetDraft(ctx, item.DraftID.V)
		if err != nil {
			return fmt.Errorf("load draft %q for approval %q: %w", item.DraftID.V, item.ID, err)
		}
		toolName, params, err = paramsForDraft(ctx, pq.deps, d)
		if err != nil {
			return fmt.Errorf("build params for approval %q: %w", item.ID, err)
		}
	} else {
		var err error
		params, err = paramsForApprovalItem(item)
		if err != nil {
			return fmt.Errorf("build params for approval %q: %w", item.ID, err)
		}
	}

	req := gateway.Request{
		ToolName:      toolName,
		Params:        params,
		AccountID:     acct.ID,
		OperatingMode: rt.deps.Mode,
		SkipApproval:  true,
	}
	if item.DraftID.Valid {
		req.DraftID = item.DraftID.V
	}
	if targetID, ok := params["tweet_id"].(string); ok && targetID != "" {
		req.AuthorID = pq.resolveAuthorID(ctx, targetID)
	} else if len(item.TargetRefs) > 0 {
		req.AuthorID = pq.resolveAuthorID(ctx, item.TargetRefs[0])
	}

	outcome, err := pq.dispatchWithRetry(ctx, rt, acct, req)
	if err != nil {
		return pq.handleDispatchFailure(ctx, rt, acct, err)
	}

	if outcome.Status == gateway.Executed {
		item.Status = core.ApprovalExecuted
		item.UpdatedAt = time.Now().UTC()
		if err := pq.deps.Store.PutApproval(ctx, item); err != nil {
			return fmt.Errorf("mark approval executed: %w", err)
		}
		if item.DraftID.Valid {
			if d, err := pq.deps.Store.GetDraft(ctx, item.DraftID.V); err == nil {
				d.Status = core.DraftStatusPosted
				d.UpdatedAt = time.Now().UTC()
				_ = pq.deps.Store.PutDraft(ctx, d)
			}
		}
		rt.recordPosted(acct.ID, time.Now().UTC())
		rt.recordAccountAuthSuccess(acct.ID)
	}
	pq.handleRateLimit(rt, acct.ID, outcome)
	return nil
}

// executeDraft builds a gateway request from a due Draft and dispatches it.
func (pq *postingQueue) executeDraft(ctx context.Context, rt *Runtime, acct core.Account, d core.Draft) error {
	toolName, params, err := paramsForDraft(ctx, pq.deps, d)
	if err != nil {
		return fmt.Errorf("build params for draft %q: %w", d.ID, err)
	}

	req := gateway.Request{
		ToolName:      toolName,
		Params:        params,
		AccountID:     acct.ID,
		DraftID:       d.ID,
		OperatingMode: rt.deps.Mode,
		SkipApproval:  true,
	}
	if d.InReplyToTweetID.Valid && d.InReplyToTweetID.V != "" {
		req.AuthorID = pq.resolveAuthorID(ctx, d.InReplyToTweetID.V)
	}

	outcome, err := pq.dispatchWithRetry(ctx, rt, acct, req)
	if err != nil {
		return pq.handleDispatchFailure(ctx, rt, acct, err)
	}

	if outcome.Status == gateway.Executed {
		d.Status = core.DraftStatusPosted
		d.UpdatedAt = time.Now().UTC()
		if err := pq.deps.Store.PutDraft(ctx, d); err != nil {
			return fmt.Errorf("mark draft posted: %w", err)
		}
		rt.recordPosted(acct.ID, time.Now().UTC())
		rt.recordAccountAuthSuccess(acct.ID)
	}
	pq.handleRateLimit(rt, acct.ID, outcome)
	return nil
}

// dispatchWithRetry runs one gateway.Dispatch call through the account's
// circuit breaker, retrying transient failures up to 3 times with
// exponential backoff (1s, 4s, 16s) and ±25% jitter. An
// x_auth_expired failure triggers one token refresh then an immediate retry
// in place of the normal backoff wait; a second consecutive auth failure
// degrades the account instead of continuing to retry.
func (pq *postingQueue) dispatchWithRetry(ctx context.Context, rt *Runtime, acct core.Account, req gateway.Request) (gateway.Outcome, error) {
	backoffs := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	authRetried := false

	var outcome gateway.Outcome
	var lastErr error

	for attempt := 0; attempt <= len(backoffs); attempt++ {
		result, err := pq.breakerFor(rt, acct.ID).Execute(func() (any, error) {
			return rt.deps.Gateway.Dispatch(ctx, req)
		})
		if err == nil {
			outcome = result.(gateway.Outcome)
			return outcome, nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return gateway.Outcome{}, err
		}

		var coreErr *core.Error
		if errors.As(err, &coreErr) && coreErr.Code == core.CodeXAuthExpired {
			if !authRetried {
				authRetried = true
				if pq.deps.RefreshToken != nil {
					if refreshErr := pq.deps.RefreshToken(ctx, acct.ID); refreshErr == nil {
						continue // retry once immediately, outside the backoff budget
					}
				}
			}
			// Either the refresh itself failed, or the retry after a
			// successful refresh failed again with x_auth_expired — two
			// consecutive auth failures.
			rt.recordAccountAuthFailure(acct.ID, true)
			return gateway.Outcome{}, err
		}

		if !isRetryable(err) || attempt == len(backoffs) {
			return gateway.Outcome{}, err
		}

		select {
		case <-ctx.Done():
			return gateway.Outcome{}, ctx.Err()
		case <-time.After(jitteredBackoff(backoffs[attempt])):
		}
	}

	return gateway.Outcome{}, lastErr
}

func (pq *postingQueue) handleDispatchFailure(ctx context.Context, rt *Runtime, acct core.Account, err error) error {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		switch coreErr.Code {
		case core.CodeXRateLimited:
			reset := coreErr.RateLimitReset
			if reset.IsZero() {
				reset = time.Now().Add(15 * time.Minute)
			}
			pq.pause(acct.ID, reset)
			return nil
		case core.CodeXAuthExpired:
			acct.Degraded = true
			acct.NeedsReauth = true
			_ = pq.deps.Store.PutAccount(ctx, acct)
			return fmt.Errorf("account %q degraded: two consecutive auth failures", acct.ID)
		}
	}
	return err
}

func (pq *postingQueue) handleRateLimit(rt *Runtime, accountID string, outcome gateway.Outcome) {
	if outcome.Status == gateway.Denied && outcome.DeniedCode == core.CodePolicyDeniedRateLimited && !outcome.RateLimitReset.IsZero() {
		pq.pause(accountID, outcome.RateLimitReset)
	}
}

func (pq *postingQueue) pause(accountID string, until time.Time) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	pq.pausedTo[accountID] = until
}

func (pq *postingQueue) clearPause(accountID string) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	delete(pq.pausedTo, accountID)
}

func (pq *postingQueue) rateLimitPaused(accountID string) (time.Time, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	until, ok := pq.pausedTo[accountID]
	return until, ok
}

// breakerFor returns the per-account circuit breaker, creating it on first
// use. Grounded on jordigilh-kubernaut's gobreaker.Settings wiring (that
// repo's own use is test-only — this is production use of the same library).
func (pq *postingQueue) breakerFor(rt *Runtime, accountID string) *gobreaker.CircuitBreaker {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if cb, ok := pq.breakers[accountID]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "posting-queue-" + accountID,
		MaxRequests: 1,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			rt.recordBreakerState(accountID, to == gobreaker.StateOpen)
		},
	})
	pq.breakers[accountID] = cb
	return cb
}

func isRetryable(err error) bool {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return coreErr.Retryable
	}
	return false
}

func jitteredBackoff(base time.Duration) time.Duration {
	spread := float64(base) * 0.25
	delta := (rand.Float64()*2 - 1) * spread
	return base + time.Duration(delta)
}

// toolNameForContentType maps a Draft's content type to its registry tool name.
func toolNameForContentType(ct core.ContentType) string {
	switch ct {
	case core.ContentThread:
		return "post_thread"
	case core.ContentReply:
		return "reply_to_tweet"
	default:
		return "post_tweet"
	}
}

// paramsForDraft builds the gateway.Params for a Draft, uploading any media
// first since the registry's tool specs take media_ids, not raw paths.
func paramsForDraft(ctx context.Context, deps Deps, d core.Draft) (string, gateway.Params, error) {
	mediaIDs, err := uploadDraftMedia(ctx, deps, []string(d.MediaPaths))
	if err != nil {
		return "", nil, err
	}

	toolName := toolNameForContentType(d.ContentType)
	params := gateway.Params{}
	switch d.ContentType {
	case core.ContentThread:
		params["blocks"] = []string(d.ThreadBlocks)
	case core.ContentReply:
		params["text"] = d.Content
		params["tweet_id"] = d.InReplyToTweetID.V
		if len(mediaIDs) > 0 {
			params["media_ids"] = mediaIDs
		}
	default:
		params["text"] = d.Content
		if len(mediaIDs) > 0 {
			params["media_ids"] = mediaIDs
		}
	}
	return toolName, params, nil
}

// paramsForApprovalItem rebuilds gateway.Params from an ApprovalQueueItem's
// stored payload snapshot (the gateway or workflow.Queue's json.Marshal'd
// draft at routing time).
func paramsForApprovalItem(item core.ApprovalQueueItem) (gateway.Params, error) {
	var params gateway.Params
	if item.PayloadSnapshot == "" {
		return gateway.Params{}, nil
	}
	if err := json.Unmarshal([]byte(item.PayloadSnapshot), &params); err != nil {
		return nil, err
	}
	return params, nil
}

// resolveAuthorID looks up the author of the tweet a mutation targets, so the
// gateway's per-author safety gates have something to key on. A lookup miss
// (the original tweet was never observed, or was purged) leaves AuthorID
// empty rather than failing the dispatch.
func (pq *postingQueue) resolveAuthorID(ctx context.Context, targetTweetID string) string {
	tweet, err := pq.deps.Store.GetOriginalTweet(ctx, targetTweetID)
	if err != nil {
		return ""
	}
	return tweet.AuthorID
}

func uploadDraftMedia(ctx context.Context, deps Deps, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read media file %q: %w", path, err)
		}
		id, err := deps.Workflow.Toolkit.UploadMedia(ctx, path, data)
		if err != nil {
			return nil, core.Wrap(core.CodeXAPIError, "upload media "+path, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
