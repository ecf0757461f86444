package workflow

import (
	"context"
	"testing"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/policy"
	"github.com/aramirez087/tuitbot/internal/scoring"
	"github.com/aramirez087/tuitbot/internal/store/memory"
)

// fakeClient is a minimal core.XApiClient fake: every read/write not
// explicitly configured returns a zero value.
type fakeClient struct {
	searchResults []core.OriginalTweet
	tweetsByID    map[string]core.OriginalTweet
	postedText    []string
	postedThreads [][]string
}

func (f *fakeClient) SearchTweets(context.Context, string, int) ([]core.OriginalTweet, error) {
	return f.searchResults, nil
}
func (f *fakeClient) GetTweet(_ context.Context, id string) (core.OriginalTweet, error) {
	if f.tweetsByID != nil {
		if t, ok := f.tweetsByID[id]; ok {
			return t, nil
		}
	}
	return core.OriginalTweet{}, core.NewError(core.CodeNotFound, "tweet not found")
}
func (f *fakeClient) GetUserByID(context.Context, string) (core.User, error)       { return core.User{}, nil }
func (f *fakeClient) GetUserByUsername(context.Context, string) (core.User, error) { return core.User{}, nil }
func (f *fakeClient) GetUsersByIDs(context.Context, []string) ([]core.User, error) { return nil, nil }
func (f *fakeClient) GetUserMentions(context.Context, string, string) ([]core.OriginalTweet, error) {
	return nil, nil
}
func (f *fakeClient) GetUserTweets(context.Context, string, int) ([]core.OriginalTweet, error) { return nil, nil }
func (f *fakeClient) GetHomeTimeline(context.Context, int) ([]core.OriginalTweet, error)        { return nil, nil }
func (f *fakeClient) GetFollowers(context.Context, string) ([]core.User, error)                 { return nil, nil }
func (f *fakeClient) GetFollowing(context.Context, string) ([]core.User, error)                 { return nil, nil }
func (f *fakeClient) GetLikedTweets(context.Context, string) ([]core.OriginalTweet, error)      { return nil, nil }
func (f *fakeClient) GetBookmarks(context.Context) ([]core.OriginalTweet, error)                { return nil, nil }
func (f *fakeClient) GetTweetLikingUsers(context.Context, string) ([]core.User, error)           { return nil, nil }
func (f *fakeClient) GetMe(context.Context) (core.User, error)                                  { return core.User{}, nil }

func (f *fakeClient) PostTweet(_ context.Context, text string, _ []string) (string, error) {
	f.postedText = append(f.postedText, text)
	return "tweet-1", nil
}
func (f *fakeClient) ReplyToTweet(_ context.Context, _ string, text string, _ []string) (string, error) {
	f.postedText = append(f.postedText, text)
	return "reply-1", nil
}
func (f *fakeClient) QuoteTweet(context.Context, string, string) (string, error) { return "", nil }
func (f *fakeClient) DeleteTweet(context.Context, string) error                  { return nil }
func (f *fakeClient) PostThread(_ context.Context, blocks []string) ([]string, error) {
	f.postedThreads = append(f.postedThreads, blocks)
	ids := make([]string, len(blocks))
	for i := range blocks {
		ids[i] = "thread-tweet-" + string(rune('0'+i))
	}
	return ids, nil
}

func (f *fakeClient) Like(context.Context, string) error       { return nil }
func (f *fakeClient) Unlike(context.Context, string) error     { return nil }
func (f *fakeClient) Follow(context.Context, string) error     { return nil }
func (f *fakeClient) Unfollow(context.Context, string) error   { return nil }
func (f *fakeClient) Retweet(context.Context, string) error    { return nil }
func (f *fakeClient) Unretweet(context.Context, string) error  { return nil }
func (f *fakeClient) Bookmark(context.Context, string) error   { return nil }
func (f *fakeClient) Unbookmark(context.Context, string) error { return nil }

func (f *fakeClient) UploadMedia(context.Context, string, []byte) (string, error) { return "media-1", nil }

var _ core.XApiClient = (*fakeClient)(nil)

// fakeLLM returns a fixed response regardless of prompt.
type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Generate(context.Context, string, core.GenerateParams) (string, error) {
	return f.response, f.err
}
func (f *fakeLLM) HealthCheck(context.Context) error { return nil }

var _ core.LLMProvider = (*fakeLLM)(nil)

func baseDeps(client *fakeClient, llm *fakeLLM) Deps {
	return Deps{
		Toolkit:          client,
		LLM:              llm,
		Store:            memory.New(),
		Weights:          scoring.DefaultWeights,
		BusinessKeywords: []string{"database"},
		TargetAccountIDs: map[string]bool{},
		Mode:             policy.Autopilot,
		Persona:          "You run a developer tools account.",
		Safety:           SafetyTunables{PerAuthorPerDay: 3, CooldownMinutes: 10},
	}
}

func TestDiscoverScoresAndPersistsCandidates(t *testing.T) {
	client := &fakeClient{
		searchResults: []core.OriginalTweet{
			{TweetID: "t1", AuthorID: "a1", Text: "anyone using a database for this?", LikeCount: 5},
			{TweetID: "t2", AuthorID: "a2", Text: "unrelated chatter", LikeCount: 500},
		},
	}
	deps := baseDeps(client, &fakeLLM{})

	out, err := Discover(t.Context(), deps, DiscoverInput{AccountID: "acct-1", Query: "database", Category: core.CategoryDiscovery, MaxResults: 10})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(out))
	}

	stored, err := deps.Store.GetOriginalTweet(t.Context(), "t1")
	if err != nil {
		t.Fatalf("GetOriginalTweet: %v", err)
	}
	if stored.Category != core.CategoryDiscovery {
		t.Fatalf("category = %v, want discovery", stored.Category)
	}
}

func TestDraftPersistsSafeText(t *testing.T) {
	client := &fakeClient{}
	llm := &fakeLLM{response: "Great question about databases!"}
	deps := baseDeps(client, llm)

	d, err := Draft(t.Context(), deps, DraftInput{
		AccountID:   "acct-1",
		Candidate:   core.OriginalTweet{TweetID: "t1", AuthorID: "a1", Text: "anyone using a database?"},
		ContentType: core.ContentReply,
	})
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if d.Content != llm.response {
		t.Fatalf("content = %q", d.Content)
	}
	if d.Status != core.DraftStatusDraft {
		t.Fatalf("status = %v, want draft", d.Status)
	}
	if !d.InReplyToTweetID.Valid || d.InReplyToTweetID.V != "t1" {
		t.Fatalf("InReplyToTweetID = %+v", d.InReplyToTweetID)
	}
}

func TestDraftRejectsBannedPhrase(t *testing.T) {
	client := &fakeClient{}
	llm := &fakeLLM{response: "huge GIVEAWAY today, click now"}
	deps := baseDeps(client, llm)
	deps.Safety.BannedPhrases = []string{"giveaway"}

	_, err := Draft(t.Context(), deps, DraftInput{
		AccountID:   "acct-1",
		Candidate:   core.OriginalTweet{TweetID: "t1", AuthorID: "a1", Text: "anyone using a database?"},
		ContentType: core.ContentReply,
	})
	if err == nil {
		t.Fatal("expected safety rejection")
	}
	cerr, ok := err.(*core.Error)
	if !ok {
		t.Fatalf("expected *core.Error, got %T", err)
	}
	if cerr.PolicyDecision != "banned_phrase" {
		t.Fatalf("policy decision = %q", cerr.PolicyDecision)
	}
}

func TestQueueRoutesComposerModeToApproval(t *testing.T) {
	deps := baseDeps(&fakeClient{}, &fakeLLM{})
	deps.Mode = policy.Composer

	draft := core.Draft{ID: "d1", AccountID: "acct-1", ContentType: core.ContentTweet, Content: "hi"}
	result, err := Queue(t.Context(), deps, QueueInput{Draft: draft, ActionKind: "post_tweet"})
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if result.Status != QueueApproval || result.ApprovalID == "" {
		t.Fatalf("got %+v", result)
	}
}

func TestQueueSchedulesDirectlyInAutopilot(t *testing.T) {
	deps := baseDeps(&fakeClient{}, &fakeLLM{})

	draft := core.Draft{ID: "d1", AccountID: "acct-1", ContentType: core.ContentTweet, Content: "hi"}
	result, err := Queue(t.Context(), deps, QueueInput{Draft: draft, ActionKind: "post_tweet"})
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if result.Status != QueueQueued {
		t.Fatalf("got %+v", result)
	}

	stored, err := deps.Store.GetDraft(t.Context(), "d1")
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if stored.Status != core.DraftStatusScheduled || !stored.ScheduledFor.Valid {
		t.Fatalf("stored draft = %+v", stored)
	}
}

func TestQueueRejectsBlockedTool(t *testing.T) {
	deps := baseDeps(&fakeClient{}, &fakeLLM{})
	draft := core.Draft{ID: "d1", AccountID: "acct-1"}
	result, err := Queue(t.Context(), deps, QueueInput{Draft: draft, Blocked: true})
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if result.Status != QueueRejected {
		t.Fatalf("got %+v", result)
	}
}

func TestPublishDispatchesByContentType(t *testing.T) {
	client := &fakeClient{}
	deps := baseDeps(client, &fakeLLM{})

	draft := core.Draft{ID: "d1", AccountID: "acct-1", ContentType: core.ContentTweet, Content: "hello"}
	ids, err := Publish(t.Context(), deps, draft)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(ids) != 1 || len(client.postedText) != 1 {
		t.Fatalf("ids=%v postedText=%v", ids, client.postedText)
	}

	stored, err := deps.Store.GetDraft(t.Context(), "d1")
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if stored.Status != core.DraftStatusPosted {
		t.Fatalf("status = %v, want posted", stored.Status)
	}
}

func TestThreadPlanRejectsTooFewBlocks(t *testing.T) {
	client := &fakeClient{}
	llm := &fakeLLM{response: `["just one block"]`}
	deps := baseDeps(client, llm)

	_, err := ThreadPlan(t.Context(), deps, ThreadPlanInput{AccountID: "acct-1", Topic: "databases", Blocks: 3})
	if err == nil {
		t.Fatal("expected rejection for too few blocks")
	}
}

func TestThreadPlanPersistsValidOutline(t *testing.T) {
	client := &fakeClient{}
	llm := &fakeLLM{response: `["Why do 90% of B-tree indexes get this wrong?", "Here's the fix.", "Try it yourself."]`}
	deps := baseDeps(client, llm)

	d, err := ThreadPlan(t.Context(), deps, ThreadPlanInput{AccountID: "acct-1", Topic: "databases", Blocks: 3})
	if err != nil {
		t.Fatalf("ThreadPlan: %v", err)
	}
	if len(d.ThreadBlocks) != 3 {
		t.Fatalf("got %d blocks", len(d.ThreadBlocks))
	}
	if d.ContentType != core.ContentThread {
		t.Fatalf("content type = %v", d.ContentType)
	}
}

func TestOrchestrateChainsDiscoverDraftQueue(t *testing.T) {
	client := &fakeClient{
		searchResults: []core.OriginalTweet{
			{TweetID: "t1", AuthorID: "a1", Text: "database question"},
		},
	}
	llm := &fakeLLM{response: "Here's my take on databases."}
	deps := baseDeps(client, llm)

	outcomes, err := Orchestrate(t.Context(), deps, OrchestrateInput{
		AccountID:   "acct-1",
		Query:       "database",
		Category:    core.CategoryDiscovery,
		MaxResults:  10,
		TopN:        1,
		ContentType: core.ContentReply,
		ActionKind:  "reply_to_tweet",
	})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if outcomes[0].Queue.Status != QueueQueued {
		t.Fatalf("got %+v", outcomes[0])
	}
}
