package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/policy"
	"github.com/aramirez087/tuitbot/internal/workflow"
)

// workflowDeps returns the workflow.Deps every task shares, unchanged from
// r.deps.Workflow; it is not scoped per account.
func (r *Runtime) workflowDeps() workflow.Deps {
	return r.deps.Workflow
}

// taskDiscovery runs the discover→draft→queue pipeline for every account. In
// Composer mode it discovers and scores but never queues — Composer disables
// the mutation-queuing behavior, so read-only tasks still run but nothing is
// written to the posting queue.
func (r *Runtime) taskDiscovery(ctx context.Context) error {
	return r.forEachAccount(ctx, func(ctx context.Context, acct core.Account) error {
		query := ""
		if r.deps.DiscoveryQuery != nil {
			query = r.deps.DiscoveryQuery(acct)
		}

		if r.deps.Mode == policy.Composer {
			_, err := workflow.Discover(ctx, r.workflowDeps(), workflow.DiscoverInput{
				AccountID: acct.ID, Query: query, Category: core.CategoryDiscovery, MaxResults: 20,
			})
			return err
		}

		_, err := workflow.Orchestrate(ctx, r.workflowDeps(), workflow.OrchestrateInput{
			AccountID: acct.ID, Query: query, Category: core.CategoryDiscovery, MaxResults: 20,
			TopN: 3, ContentType: core.ContentTweet, ActionKind: "post_tweet",
		})
		return err
	})
}

// taskMentions engages with mentions; Autopilot only.
func (r *Runtime) taskMentions(ctx context.Context) error {
	if r.deps.Mode != policy.Autopilot {
		return nil
	}
	return r.forEachAccount(ctx, func(ctx context.Context, acct core.Account) error {
		_, err := workflow.Orchestrate(ctx, r.workflowDeps(), workflow.OrchestrateInput{
			AccountID: acct.ID, Query: "", Category: core.CategoryMention, MaxResults: 20,
			TopN: 5, ContentType: core.ContentReply, ActionKind: "reply_to_tweet",
		})
		return err
	})
}

// taskTargetMonitor watches configured target accounts; Autopilot only.
func (r *Runtime) taskTargetMonitor(ctx context.Context) error {
	if r.deps.Mode != policy.Autopilot {
		return nil
	}
	return r.forEachAccount(ctx, func(ctx context.Context, acct core.Account) error {
		queries := []string{""}
		if r.deps.TargetQueries != nil {
			if qs := r.deps.TargetQueries(acct); len(qs) > 0 {
				queries = qs
			}
		}
		for _, q := range queries {
			if _, err := workflow.Orchestrate(ctx, r.workflowDeps(), workflow.OrchestrateInput{
				AccountID: acct.ID, Query: q, Category: core.CategoryTarget, MaxResults: 10,
				TopN: 2, ContentType: core.ContentReply, ActionKind: "reply_to_tweet",
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// taskContentPosting turns the highest-scored pending DraftSeed (from
// watchtower ingestion) into a queued standalone tweet, one per account per
// tick. Autopilot only.
func (r *Runtime) taskContentPosting(ctx context.Context) error {
	if r.deps.Mode != policy.Autopilot {
		return nil
	}
	return r.forEachAccount(ctx, func(ctx context.Context, acct core.Account) error {
		nodes, err := r.deps.Store.ListNodesByStatus(ctx, core.NodeProcessed)
		if err != nil {
			return fmt.Errorf("list processed content nodes: %w", err)
		}

		var best core.DraftSeed
		found := false
		for _, n := range nodes {
			seeds, err := r.deps.Store.ListSeeds(ctx, n.ID)
			if err != nil {
				return fmt.Errorf("list seeds for node %q: %w", n.ID, err)
			}
			for _, s := range seeds {
				if !found || s.Score > best.Score {
					best, found = s, true
				}
			}
		}
		if !found {
			return nil
		}

		candidate := core.OriginalTweet{TweetID: best.ID, Text: best.HookText}
		d, err := workflow.Draft(ctx, r.workflowDeps(), workflow.DraftInput{
			AccountID: acct.ID, Candidate: candidate, ContentType: core.ContentTweet,
		})
		if err != nil {
			return classifySkippable(err)
		}

		_, err = workflow.Queue(ctx, r.workflowDeps(), workflow.QueueInput{
			Draft: d, ActionKind: "post_tweet", ApprovalModeOn: r.deps.Mode.RequiresApproval(),
		})
		if err == nil {
			r.Signal()
		}
		return err
	})
}

// taskThreadPublishing drafts and queues one thread per account per tick
// from the discovery business-keyword query. Autopilot only.
func (r *Runtime) taskThreadPublishing(ctx context.Context) error {
	if r.deps.Mode != policy.Autopilot {
		return nil
	}
	return r.forEachAccount(ctx, func(ctx context.Context, acct core.Account) error {
		topic := ""
		if r.deps.DiscoveryQuery != nil {
			topic = r.deps.DiscoveryQuery(acct)
		}
		d, err := workflow.ThreadPlan(ctx, r.workflowDeps(), workflow.ThreadPlanInput{
			AccountID: acct.ID, Topic: topic, Blocks: 5,
		})
		if err != nil {
			return classifySkippable(err)
		}
		_, err = workflow.Queue(ctx, r.workflowDeps(), workflow.QueueInput{
			Draft: d, ActionKind: "post_thread", ApprovalModeOn: r.deps.Mode.RequiresApproval(),
		})
		if err == nil {
			r.Signal()
		}
		return err
	})
}

// taskAnalytics snapshots per-account engagement telemetry. Runs in both modes.
func (r *Runtime) taskAnalytics(ctx context.Context) error {
	return r.forEachAccount(ctx, func(ctx context.Context, acct core.Account) error {
		tweets, err := r.deps.Workflow.Store.ListTopScoredTweets(ctx, core.CategoryDiscovery, 50)
		if err != nil {
			return fmt.Errorf("analytics snapshot for %q: %w", acct.ID, err)
		}
		rec := core.McpTelemetryRecord{
			ID:        acct.ID + "-" + time.Now().UTC().Format("20060102150405"),
			ToolName:  "analytics_snapshot",
			Category:  core.CategoryUniversalRequest,
			Success:   true,
			Mode:      string(r.deps.Mode),
			CreatedAt: time.Now().UTC(),
		}
		slog.Info("runtime: analytics snapshot", "account_id", acct.ID, "tracked", len(tweets))
		return r.deps.Store.PutTelemetry(ctx, rec)
	})
}

// taskApprovalPoster executes the oldest approved item of each account via
// the gateway with SkipApproval=true.
func (r *Runtime) taskApprovalPoster(ctx context.Context) error {
	return r.forEachAccount(ctx, func(ctx context.Context, acct core.Account) error {
		item, found, err := r.deps.Store.OldestApproved(ctx, acct.ID)
		if err != nil {
			return fmt.Errorf("oldest approved item for %q: %w", acct.ID, err)
		}
		if !found {
			return nil
		}
		return r.pq.executeApproval(ctx, r, acct, item)
	})
}

// taskWatchtowerScan delegates to the injected watchtower scanner.
func (r *Runtime) taskWatchtowerScan(ctx context.Context) error {
	if r.deps.ScanSources == nil {
		return nil
	}
	return r.deps.ScanSources(ctx)
}

// taskSeedWorker delegates to the injected seed-worker runner.
func (r *Runtime) taskSeedWorker(ctx context.Context) error {
	if r.deps.RunSeedWorker == nil {
		return nil
	}
	return r.deps.RunSeedWorker(ctx)
}

// taskTokenRefresh refreshes any account whose token is within 5 minutes of
// expiry. Runs every minute; the 5-minute lookahead makes the actual
// refresh cadence track token expiry minus 5 minutes without needing a
// per-account dynamic timer.
func (r *Runtime) taskTokenRefresh(ctx context.Context) error {
	if r.deps.RefreshToken == nil {
		return nil
	}
	return r.forEachAccount(ctx, func(ctx context.Context, acct core.Account) error {
		if time.Until(acct.TokenExpiry) > 5*time.Minute {
			return nil
		}
		if err := r.deps.RefreshToken(ctx, acct.ID); err != nil {
			slog.Error("runtime: token refresh failed", "account_id", acct.ID, "error", err)
			acct.NeedsReauth = true
			return r.deps.Store.PutAccount(ctx, acct)
		}
		return nil
	})
}

// taskRetentionSweep prunes telemetry rows older than RetentionAfter and
// deletes sessions whose expiry has passed. Runs in both modes.
func (r *Runtime) taskRetentionSweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-retentionWindow(r.deps.RetentionAfter))
	pruned, err := r.deps.Store.PruneTelemetryOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune telemetry: %w", err)
	}
	expired, err := r.deps.Store.DeleteExpiredSessions(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	slog.Info("runtime: retention sweep complete", "telemetry_pruned", pruned, "sessions_expired", expired)
	return nil
}

func retentionWindow(configured time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	return 90 * 24 * time.Hour
}

// forEachAccount runs fn sequentially over every account — work within one
// task is sequential — stopping at the first hard error but continuing past
// classifySkippable's soft ones.
func (r *Runtime) forEachAccount(ctx context.Context, fn func(ctx context.Context, acct core.Account) error) error {
	accounts, err := r.deps.Store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	for _, acct := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, acct); err != nil {
			if err == errSkipped {
				continue
			}
			slog.Error("runtime: task step failed", "account_id", acct.ID, "error", err)
		}
	}
	return nil
}
