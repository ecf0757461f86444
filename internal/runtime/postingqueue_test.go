package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/gateway"
	"github.com/aramirez087/tuitbot/internal/policy"
	"github.com/aramirez087/tuitbot/internal/store/memory"
	"github.com/aramirez087/tuitbot/internal/workflow"
)

// fakePoster is a minimal core.XApiClient fake whose PostTweet plays back a
// scripted sequence of errors before succeeding, so dispatchWithRetry's
// retry/backoff/auth-refresh branches can be exercised deterministically.
type fakePoster struct {
	errs  []error
	calls int
}

func (f *fakePoster) PostTweet(context.Context, string, []string) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) {
		return "", f.errs[i]
	}
	return "tweet-1", nil
}

func (f *fakePoster) SearchTweets(context.Context, string, int) ([]core.OriginalTweet, error) {
	return nil, nil
}
func (f *fakePoster) GetTweet(context.Context, string) (core.OriginalTweet, error) {
	return core.OriginalTweet{}, nil
}
func (f *fakePoster) GetUserByID(context.Context, string) (core.User, error) { return core.User{}, nil }
func (f *fakePoster) GetUserByUsername(context.Context, string) (core.User, error) {
	return core.User{}, nil
}
func (f *fakePoster) GetUsersByIDs(context.Context, []string) ([]core.User, error) { return nil, nil }
func (f *fakePoster) GetUserMentions(context.Context, string, string) ([]core.OriginalTweet, error) {
	return nil, nil
}
func (f *fakePoster) GetUserTweets(context.Context, string, int) ([]core.OriginalTweet, error) {
	return nil, nil
}
func (f *fakePoster) GetHomeTimeline(context.Context, int) ([]core.OriginalTweet, error) { return nil, nil }
func (f *fakePoster) GetFollowers(context.Context, string) ([]core.User, error)          { return nil, nil }
func (f *fakePoster) GetFollowing(context.Context, string) ([]core.User, error)          { return nil, nil }
func (f *fakePoster) GetLikedTweets(context.Context, string) ([]core.OriginalTweet, error) {
	return nil, nil
}
func (f *fakePoster) GetBookmarks(context.Context) ([]core.OriginalTweet, error)        { return nil, nil }
func (f *fakePoster) GetTweetLikingUsers(context.Context, string) ([]core.User, error) { return nil, nil }
func (f *fakePoster) GetMe(context.Context) (core.User, error)                         { return core.User{}, nil }
func (f *fakePoster) ReplyToTweet(context.Context, string, string, []string) (string, error) {
	return "reply-1", nil
}
func (f *fakePoster) QuoteTweet(context.Context, string, string) (string, error) { return "", nil }
func (f *fakePoster) DeleteTweet(context.Context, string) error                  { return nil }
func (f *fakePoster) PostThread(context.Context, []string) ([]string, error)     { return nil, nil }
func (f *fakePoster) Like(context.Context, string) error                         { return nil }
func (f *fakePoster) Unlike(context.Context, string) error                       { return nil }
func (f *fakePoster) Follow(context.Context, string) error                       { return nil }
func (f *fakePoster) Unfollow(context.Context, string) error                     { return nil }
func (f *fakePoster) Retweet(context.Context, string) error                      { return nil }
func (f *fakePoster) Unretweet(context.Context, string) error                    { return nil }
func (f *fakePoster) Bookmark(context.Context, string) error                     { return nil }
func (f *fakePoster) Unbookmark(context.Context, string) error                   { return nil }
func (f *fakePoster) UploadMedia(context.Context, string, []byte) (string, error) {
	return "media-1", nil
}

var _ core.XApiClient = (*fakePoster)(nil)

func testGatewayDeps(client *fakePoster, store core.Storer, maxPerHour int) gateway.Deps {
	return gateway.Deps{
		Toolkit:  client,
		Store:    store,
		Registry: gateway.DefaultRegistry(),
		Policy:   gateway.Policy{MaxMutationsPerHour: maxPerHour},
		Safety:   gateway.SafetyTunables{PerAuthorPerDay: 10, CooldownMinutes: 0},
	}
}

func testRuntime(client *fakePoster, store core.Storer, maxPerHour int, refresh TokenRefresher) *Runtime {
	gw := gateway.New(testGatewayDeps(client, store, maxPerHour))
	deps := Deps{
		Store:   store,
		Gateway: gw,
		Mode:    policy.Autopilot,
		Workflow: workflow.Deps{
			Toolkit: client,
			Store:   store,
			Mode:    policy.Autopilot,
		},
		RefreshToken: refresh,
	}
	return New(deps, "test-owner")
}

func TestDispatchWithRetryRetriesRetryableFailure(t *testing.T) {
	client := &fakePoster{errs: []error{core.NewError(core.CodeXNetworkError, "boom")}}
	store := memory.New()
	rt := testRuntime(client, store, 100, nil)
	acct := core.Account{ID: "acct-1"}

	req := gateway.Request{ToolName: "post_tweet", Params: gateway.Params{"text": "hello"}, AccountID: acct.ID, OperatingMode: policy.Autopilot}
	out, err := rt.pq.dispatchWithRetry(t.Context(), rt, acct, req)
	if err != nil {
		t.Fatalf("dispatchWithRetry: %v", err)
	}
	if out.Status != gateway.Executed {
		t.Fatalf("status = %v, want Executed", out.Status)
	}
	if client.calls != 2 {
		t.Fatalf("expected one retry (2 calls), got %d", client.calls)
	}
}

func TestDispatchWithRetryStopsOnNonRetryableFailure(t *testing.T) {
	client := &fakePoster{errs: []error{core.NewError(core.CodeXForbidden, "nope")}}
	store := memory.New()
	rt := testRuntime(client, store, 100, nil)
	acct := core.Account{ID: "acct-1"}

	req := gateway.Request{ToolName: "post_tweet", Params: gateway.Params{"text": "hello"}, AccountID: acct.ID, OperatingMode: policy.Autopilot}
	_, err := rt.pq.dispatchWithRetry(t.Context(), rt, acct, req)
	if err == nil {
		t.Fatal("expected an error for a non-retryable failure")
	}
	if client.calls != 1 {
		t.Fatalf("expected no retries for a non-retryable failure, got %d calls", client.calls)
	}
}

func TestDispatchWithRetryDegradesAccountOnSecondConsecutiveAuthFailure(t *testing.T) {
	client := &fakePoster{errs: []error{
		core.NewError(core.CodeXAuthExpired, "expired"),
		core.NewError(core.CodeXAuthExpired, "expired again"),
	}}
	store := memory.New()
	refreshCalls := 0
	refresh := func(ctx context.Context, accountID string) error {
		refreshCalls++
		return nil
	}
	rt := testRuntime(client, store, 100, refresh)
	acct := core.Account{ID: "acct-1"}

	req := gateway.Request{ToolName: "post_tweet", Params: gateway.Params{"text": "hello"}, AccountID: acct.ID, OperatingMode: policy.Autopilot}
	_, err := rt.pq.dispatchWithRetry(t.Context(), rt, acct, req)
	if err == nil {
		t.Fatal("expected an error after two consecutive auth failures")
	}
	if refreshCalls != 1 {
		t.Fatalf("expected exactly one refresh attempt, got %d", refreshCalls)
	}
	if client.calls != 2 {
		t.Fatalf("expected exactly two dispatch attempts, got %d", client.calls)
	}

	health := rt.Health()
	ah := health.Accounts[acct.ID]
	if !ah.Degraded || ah.ConsecutiveAuthFails != 1 {
		t.Fatalf("account health = %+v, want degraded with 1 consecutive failure", ah)
	}
}

func TestDispatchWithRetryRecoversAfterSuccessfulRefresh(t *testing.T) {
	client := &fakePoster{errs: []error{core.NewError(core.CodeXAuthExpired, "expired")}}
	store := memory.New()
	refresh := func(ctx context.Context, accountID string) error { return nil }
	rt := testRuntime(client, store, 100, refresh)
	acct := core.Account{ID: "acct-1"}

	req := gateway.Request{ToolName: "post_tweet", Params: gateway.Params{"text": "hello"}, AccountID: acct.ID, OperatingMode: policy.Autopilot}
	out, err := rt.pq.dispatchWithRetry(t.Context(), rt, acct, req)
	if err != nil {
		t.Fatalf("dispatchWithRetry: %v", err)
	}
	if out.Status != gateway.Executed {
		t.Fatalf("status = %v, want Executed", out.Status)
	}
}

func TestExecuteDraftPausesOnPolicyRateLimit(t *testing.T) {
	client := &fakePoster{}
	store := memory.New()
	rt := testRuntime(client, store, 1, nil) // one mutation/hour allowed
	acct := core.Account{ID: "acct-1"}
	if err := store.PutAccount(t.Context(), acct); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}

	d1 := core.Draft{ID: "draft-1", AccountID: acct.ID, ContentType: core.ContentTweet, Content: "first", Status: core.DraftStatusScheduled}
	d2 := core.Draft{ID: "draft-2", AccountID: acct.ID, ContentType: core.ContentTweet, Content: "second", Status: core.DraftStatusScheduled}
	if err := store.PutDraft(t.Context(), d1); err != nil {
		t.Fatalf("PutDraft(d1): %v", err)
	}
	if err := store.PutDraft(t.Context(), d2); err != nil {
		t.Fatalf("PutDraft(d2): %v", err)
	}

	if err := rt.pq.executeDraft(t.Context(), rt, acct, d1); err != nil {
		t.Fatalf("executeDraft(d1): %v", err)
	}
	if err := rt.pq.executeDraft(t.Context(), rt, acct, d2); err != nil {
		t.Fatalf("executeDraft(d2): %v", err)
	}

	if until, paused := rt.pq.rateLimitPaused(acct.ID); !paused || until.IsZero() {
		t.Fatalf("expected account to be rate-limit paused, got paused=%v until=%v", paused, until)
	}

	got, err := store.GetDraft(t.Context(), d2.ID)
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got.Status == core.DraftStatusPosted {
		t.Fatal("second draft should not have been marked posted once rate-limited")
	}
}

func TestExecuteDraftMarksPostedOnSuccess(t *testing.T) {
	client := &fakePoster{}
	store := memory.New()
	rt := testRuntime(client, store, 100, nil)
	acct := core.Account{ID: "acct-1"}

	d := core.Draft{ID: "draft-1", AccountID: acct.ID, ContentType: core.ContentTweet, Content: "hello", Status: core.DraftStatusScheduled}
	if err := rt.pq.executeDraft(t.Context(), rt, acct, d); err != nil {
		t.Fatalf("executeDraft: %v", err)
	}

	got, err := store.GetDraft(t.Context(), d.ID)
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got.Status != core.DraftStatusPosted {
		t.Fatalf("status = %v, want posted", got.Status)
	}

	health := rt.Health()
	if health.Accounts[acct.ID].LastPostedAt.IsZero() {
		t.Fatal("expected LastPostedAt to be recorded")
	}
}

func TestDrainSkipsRateLimitPausedAccountUntilDeadlinePasses(t *testing.T) {
	client := &fakePoster{}
	store := memory.New()
	rt := testRuntime(client, store, 100, nil)
	acct := core.Account{ID: "acct-1"}
	if err := store.PutAccount(t.Context(), acct); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}
	d := core.Draft{ID: "draft-1", AccountID: acct.ID, ContentType: core.ContentTweet, Content: "hello", Status: core.DraftStatusScheduled}
	if err := store.PutDraft(t.Context(), d); err != nil {
		t.Fatalf("PutDraft: %v", err)
	}

	rt.pq.pause(acct.ID, time.Now().Add(time.Hour))
	rt.pq.drain(t.Context(), rt)
	if client.calls != 0 {
		t.Fatalf("expected no dispatch while paused, got %d calls", client.calls)
	}

	rt.pq.pause(acct.ID, time.Now().Add(-time.Minute))
	rt.pq.drain(t.Context(), rt)
	if client.calls != 1 {
		t.Fatalf("expected exactly one dispatch once the pause expired, got %d calls", client.calls)
	}
}
