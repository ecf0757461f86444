package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/worldline-go/types"

	"github.com/aramirez087/tuitbot/internal/core"
)

// QueueInput parameterizes a single queue call. Blocked/RequireApproval are
// precomputed by the caller against the declarative policy (internal/config's
// Policy.BlockedTools/RequireApprovalFor) — queue itself only combines them
// with the operating mode, per spec.
type QueueInput struct {
	Draft           core.Draft
	ActionKind      string // "post_tweet", "reply_to_tweet", "post_thread", ...
	TargetRefs      []string
	Blocked         bool
	RequireApproval bool
	ApprovalModeOn  bool
}

// QueueStatus is the outcome queue routed the draft to.
type QueueStatus string

const (
	QueueRejected QueueStatus = "rejected"
	QueueApproval QueueStatus = "approval"
	QueueQueued   QueueStatus = "queued"
)

// QueueResult is what the caller (orchestrate, or a CLI command) reports back.
type QueueResult struct {
	Status     QueueStatus
	Reason     string // set when Status == QueueRejected
	ApprovalID string // set when Status == QueueApproval
}

// Queue decides routing for an already-drafted artifact: blocked tools are
// rejected outright, Composer mode / approval_mode / a policy-listed tool
// routes to the approval queue, everything else is scheduled for the posting
// queue to pick up.
func Queue(ctx context.Context, deps Deps, in QueueInput) (QueueResult, error) {
	if in.Blocked {
		return QueueResult{Status: QueueRejected, Reason: "policy_denied_blocked"}, nil
	}

	needsApproval := in.ApprovalModeOn || deps.Mode.RequiresApproval() || in.RequireApproval
	if needsApproval {
		snapshot, err := json.Marshal(in.Draft)
		if err != nil {
			return QueueResult{}, fmt.Errorf("marshal draft snapshot: %w", err)
		}

		now := time.Now().UTC()
		item := core.ApprovalQueueItem{
			ID:              ulid.Make().String(),
			AccountID:       in.Draft.AccountID,
			ActionKind:      in.ActionKind,
			DraftID:         types.NewNull(in.Draft.ID),
			TargetRefs:      types.Slice[string](in.TargetRefs),
			PayloadSnapshot: string(snapshot),
			Status:          core.ApprovalPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := deps.Store.PutApproval(ctx, item); err != nil {
			return QueueResult{}, fmt.Errorf("insert approval queue item: %w", err)
		}

		in.Draft.LastApprovalID = types.NewNull(item.ID)
		in.Draft.UpdatedAt = now
		if err := deps.Store.PutDraft(ctx, in.Draft); err != nil {
			return QueueResult{}, fmt.Errorf("link draft to approval: %w", err)
		}

		return QueueResult{Status: QueueApproval, ApprovalID: item.ID}, nil
	}

	in.Draft.Status = core.DraftStatusScheduled
	in.Draft.ScheduledFor = types.NewNull(types.NewTime(time.Now().UTC()))
	in.Draft.UpdatedAt = time.Now().UTC()
	if err := deps.Store.PutDraft(ctx, in.Draft); err != nil {
		return QueueResult{}, fmt.Errorf("schedule draft for posting queue: %w", err)
	}

	return QueueResult{Status: QueueQueued}, nil
}
