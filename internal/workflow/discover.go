package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/scoring"
)

// DiscoverInput parameterizes a single discover call.
type DiscoverInput struct {
	AccountID  string
	Query      string
	Category   core.TweetCategory // CategoryDiscovery, CategoryMention, or CategoryTarget
	MaxResults int
}

// Discover searches for candidate tweets, scores each against BusinessKeywords
// and TargetAccountIDs, persists every candidate, and returns them ranked
// highest score first.
func Discover(ctx context.Context, deps Deps, in DiscoverInput) ([]core.OriginalTweet, error) {
	tweets, err := deps.Toolkit.SearchTweets(ctx, in.Query, in.MaxResults)
	if err != nil {
		return nil, core.Wrap(core.CodeXAPIError, "search tweets for discovery", err)
	}

	now := time.Now().UTC()
	scored := make([]core.OriginalTweet, 0, len(tweets))
	for _, t := range tweets {
		t.Category = in.Category

		convDepth := 0
		if t.ConversationID.Valid && t.ConversationID.V != t.TweetID {
			convDepth = 1
		}

		t.Score = scoring.Score(scoring.Input{
			Tweet:             t,
			BusinessKeywords:  deps.BusinessKeywords,
			IsTargetAccount:   deps.TargetAccountIDs[t.AuthorID],
			ConversationDepth: convDepth,
			Now:               now,
		}, deps.Weights)

		if err := deps.Store.PutOriginalTweet(ctx, t); err != nil {
			return nil, fmt.Errorf("persist discovered tweet %q: %w", t.TweetID, err)
		}
		scored = append(scored, t)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored, nil
}
