package gateway

import (
	"context"
	"sync"

	"github.com/aramirez087/tuitbot/internal/core"
)

// Params is the decoded argument bag for a single tool invocation.
type Params map[string]any

// Executor performs the actual side-effecting call against the toolkit, once
// the gateway has cleared classification, idempotency, policy, and safety.
type Executor func(ctx context.Context, client core.XApiClient, p Params) (any, error)

// ToolSpec is one registered mutation tool: its classification for audit and
// policy grouping, whether it carries free text that must pass the safety
// gates, and the function that actually calls the toolkit.
type ToolSpec struct {
	Name         string
	Category     core.ToolCategory
	Family       core.RequestFamily
	TextParam    string // name of the Params key holding free text, "" if none
	TargetParam  string // name of the Params key holding the mutation's target id, "" if none
	Execute      Executor
}

// Registry holds the fixed set of mutation tools the gateway can dispatch:
// a name-keyed handler map behind a RWMutex, built once at startup and read
// concurrently by every account's goroutine thereafter.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]ToolSpec
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]ToolSpec)}
}

// Register adds or replaces a tool spec.
func (r *Registry) Register(spec ToolSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Name] = spec
}

// Lookup returns the spec for a tool name, if registered.
func (r *Registry) Lookup(name string) (ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	return spec, ok
}

// Names returns every registered tool name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	return names
}

// DefaultRegistry registers the full set of mutation tools the X API toolkit
// exposes, classified into core.RequestFamily/core.ToolCategory buckets.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(ToolSpec{
		Name: "post_tweet", Category: core.CategoryWrite, Family: core.FamilyPublicAPI,
		TextParam: "text",
		Execute: func(ctx context.Context, c core.XApiClient, p Params) (any, error) {
			text, _ := p["text"].(string)
			mediaIDs, _ := p["media_ids"].([]string)
			return c.PostTweet(ctx, text, mediaIDs)
		},
	})
	r.Register(ToolSpec{
		Name: "reply_to_tweet", Category: core.CategoryEngage, Family: core.FamilyPublicAPI,
		TextParam: "text", TargetParam: "tweet_id",
		Execute: func(ctx context.Context, c core.XApiClient, p Params) (any, error) {
			tweetID, _ := p["tweet_id"].(string)
			text, _ := p["text"].(string)
			mediaIDs, _ := p["media_ids"].([]string)
			return c.ReplyToTweet(ctx, tweetID, text, mediaIDs)
		},
	})
	r.Register(ToolSpec{
		Name: "quote_tweet", Category: core.CategoryWrite, Family: core.FamilyPublicAPI,
		TextParam: "text", TargetParam: "tweet_id",
		Execute: func(ctx context.Context, c core.XApiClient, p Params) (any, error) {
			tweetID, _ := p["tweet_id"].(string)
			text, _ := p["text"].(string)
			return c.QuoteTweet(ctx, tweetID, text)
		},
	})
	r.Register(ToolSpec{
		Name: "delete_tweet", Category: core.CategoryDelete, Family: core.FamilyPublicAPI,
		TargetParam: "tweet_id",
		Execute: func(ctx context.Context, c core.XApiClient, p Params) (any, error) {
			tweetID, _ := p["tweet_id"].(string)
			return nil, c.DeleteTweet(ctx, tweetID)
		},
	})
	r.Register(ToolSpec{
		Name: "post_thread", Category: core.CategoryThread, Family: core.FamilyPublicAPI,
		Execute: func(ctx context.Context, c core.XApiClient, p Params) (any, error) {
			blocks, _ := p["blocks"].([]string)
			return c.PostThread(ctx, blocks)
		},
	})
	r.Register(ToolSpec{
		Name: "like", Category: core.CategoryEngage, Family: core.FamilyPublicAPI,
		TargetParam: "tweet_id",
		Execute: func(ctx context.Context, c core.XApiClient, p Params) (any, error) {
			tweetID, _ := p["tweet_id"].(string)
			return nil, c.Like(ctx, tweetID)
		},
	})
	r.Register(ToolSpec{
		Name: "unlike", Category: core.CategoryEngage, Family: core.FamilyPublicAPI,
		TargetParam: "tweet_id",
		Execute: func(ctx context.Context, c core.XApiClient, p Params) (any, error) {
			tweetID, _ := p["tweet_id"].(string)
			return nil, c.Unlike(ctx, tweetID)
		},
	})
	r.Register(ToolSpec{
		Name: "retweet", Category: core.CategoryEngage, Family: core.FamilyPublicAPI,
		TargetParam: "tweet_id",
		Execute: func(ctx context.Context, c core.XApiClient, p Params) (any, error) {
			tweetID, _ := p["tweet_id"].(string)
			return nil, c.Retweet(ctx, tweetID)
		},
	})
	r.Register(ToolSpec{
		Name: "unretweet", Category: core.CategoryEngage, Family: core.FamilyPublicAPI,
		TargetParam: "tweet_id",
		Execute: func(ctx context.Context, c core.XApiClient, p Params) (any, error) {
			tweetID, _ := p["tweet_id"].(string)
			return nil, c.Unretweet(ctx, tweetID)
		},
	})
	r.Register(ToolSpec{
		Name: "follow", Category: core.CategoryEngage, Family: core.FamilyPublicAPI,
		TargetParam: "user_id",
		Execute: func(ctx context.Context, c core.XApiClient, p Params) (any, error) {
			userID, _ := p["user_id"].(string)
			return nil, c.Follow(ctx, userID)
		},
	})
	r.Register(ToolSpec{
		Name: "unfollow", Category: core.CategoryEngage, Family: core.FamilyPublicAPI,
		TargetParam: "user_id",
		Execute: func(ctx context.Context, c core.XApiClient, p Params) (any, error) {
			userID, _ := p["user_id"].(string)
			return nil, c.Unfollow(ctx, userID)
		},
	})
	r.Register(ToolSpec{
		Name: "bookmark", Category: core.CategoryEngage, Family: core.FamilyPublicAPI,
		TargetParam: "tweet_id",
		Execute: func(ctx context.Context, c core.XApiClient, p Params) (any, error) {
			tweetID, _ := p["tweet_id"].(string)
			return nil, c.Bookmark(ctx, tweetID)
		},
	})
	r.Register(ToolSpec{
		Name: "unbookmark", Category: core.CategoryEngage, Family: core.FamilyPublicAPI,
		TargetParam: "tweet_id",
		Execute: func(ctx context.Context, c core.XApiClient, p Params) (any, error) {
			tweetID, _ := p["tweet_id"].(string)
			return nil, c.Unbookmark(ctx, tweetID)
		},
	})
	r.Register(ToolSpec{
		Name: "upload_media", Category: core.CategoryMedia, Family: core.FamilyMediaUpload,
		Execute: func(ctx context.Context, c core.XApiClient, p Params) (any, error) {
			path, _ := p["path"].(string)
			data, _ := p["data"].([]byte)
			return c.UploadMedia(ctx, path, data)
		},
	})

	return r
}
