package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/scoring"
)

// OrchestrateInput parameterizes a single discover→draft→queue tick.
type OrchestrateInput struct {
	AccountID        string
	Query            string
	Category         core.TweetCategory
	MaxResults       int
	TopN             int // how many ranked candidates to draft; 0 means 1
	ContentType      core.ContentType
	ActionKind       string
	Blocked          bool
	RequireApproval  bool
	ApprovalModeOn   bool
}

// OrchestrateOutcome reports what happened to a single candidate.
type OrchestrateOutcome struct {
	Candidate core.OriginalTweet
	Draft     core.Draft
	Queue     QueueResult
	Skipped   string // reason the candidate never reached queue, if any
}

// Orchestrate runs the deterministic discover→draft→queue pipeline behind
// the runtime's automation loops (`tick` runs each loop once): it discovers and ranks candidates, then drafts and queues
// the top N. A candidate whose draft is deferred (cooldown/dedup) or
// rejected by the safety gates is recorded with Skipped set rather than
// aborting the whole tick — the remaining candidates still get a chance.
func Orchestrate(ctx context.Context, deps Deps, in OrchestrateInput) ([]OrchestrateOutcome, error) {
	candidates, err := Discover(ctx, deps, DiscoverInput{
		AccountID:  in.AccountID,
		Query:      in.Query,
		Category:   in.Category,
		MaxResults: in.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrate discover: %w", err)
	}

	topN := in.TopN
	if topN <= 0 {
		topN = 1
	}
	if topN > len(candidates) {
		topN = len(candidates)
	}

	outcomes := make([]OrchestrateOutcome, 0, topN)
	for _, cand := range candidates[:topN] {
		outcome := OrchestrateOutcome{Candidate: cand}

		d, err := Draft(ctx, deps, DraftInput{
			AccountID:   in.AccountID,
			Candidate:   cand,
			ContentType: in.ContentType,
		})
		if err != nil {
			var deferred *scoring.Deferred
			var coreErr *core.Error
			switch {
			case errors.As(err, &deferred):
				outcome.Skipped = deferred.Error()
			case errors.As(err, &coreErr):
				outcome.Skipped = coreErr.Error()
			default:
				return outcomes, fmt.Errorf("orchestrate draft for %q: %w", cand.TweetID, err)
			}
			outcomes = append(outcomes, outcome)
			continue
		}
		outcome.Draft = d

		result, err := Queue(ctx, deps, QueueInput{
			Draft:           d,
			ActionKind:      in.ActionKind,
			TargetRefs:      []string{cand.TweetID},
			Blocked:         in.Blocked,
			RequireApproval: in.RequireApproval,
			ApprovalModeOn:  in.ApprovalModeOn,
		})
		if err != nil {
			return outcomes, fmt.Errorf("orchestrate queue for %q: %w", cand.TweetID, err)
		}
		outcome.Queue = result
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}
