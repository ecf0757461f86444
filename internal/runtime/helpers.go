package runtime

import (
	"errors"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/scoring"
)

// errSkipped is a sentinel forEachAccount treats as "move on to the next
// account without logging a failure" — the candidate was deferred or
// rejected by the safety gates, which is routine, not an error.
var errSkipped = errors.New("runtime: candidate skipped by safety gates")

// classifySkippable turns a *scoring.Deferred or *core.Error from
// workflow.Draft/ThreadPlan into errSkipped so a single candidate's safety
// rejection doesn't fail the whole task tick; anything else is returned
// unchanged so forEachAccount still logs it.
func classifySkippable(err error) error {
	if err == nil {
		return nil
	}
	var deferred *scoring.Deferred
	if errors.As(err, &deferred) {
		return errSkipped
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return errSkipped
	}
	return err
}
