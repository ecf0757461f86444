// Package workflow implements the composite operations that sit between the
// toolkit/LLM/storage capabilities and the mutation gateway: discover, draft,
// queue, publish, thread_plan, and the orchestrate pipeline that chains the
// first three for a single "tick". Every composite is a pure function of
// (Deps, inputs) — it reads/writes Storage but never reaches for a global.
package workflow

import (
	"context"
	"time"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/policy"
	"github.com/aramirez087/tuitbot/internal/scoring"
)

// Deps bundles the capabilities and tunables every composite needs. Built
// once at startup and shared by every automation loop and CLI command that
// calls into this package.
type Deps struct {
	Toolkit core.XApiClient
	LLM     core.LLMProvider
	Store   core.Storer

	Weights          scoring.Weights
	BusinessKeywords []string
	TargetAccountIDs map[string]bool

	Mode policy.OperatingMode

	// Persona is the system framing prepended to every draft/thread prompt.
	Persona string

	Safety SafetyTunables
}

// SafetyTunables mirrors config.Limits + config.Scheduling, kept here so
// workflow doesn't import internal/config (which would invert the dependency
// direction the internal/core package doc describes).
type SafetyTunables struct {
	BannedPhrases    []string
	PerAuthorPerDay  int
	CooldownMinutes  int
	ActiveHoursStart string
	ActiveHoursEnd   string
	Location         *time.Location
}

// safetyContext builds a scoring.SafetyContext wired against deps.Store for
// the given account/target/text, the one place the gateway-bound closures
// are constructed so draft/queue/publish stay consistent.
func (d Deps) safetyContext(accountID, authorID, targetID, normalizedText string, now time.Time) scoring.SafetyContext {
	loc := d.Safety.Location
	if loc == nil {
		loc = time.UTC
	}

	return scoring.SafetyContext{
		AccountID:        accountID,
		AuthorID:         authorID,
		TargetID:         targetID,
		NormalizedText:   normalizedText,
		Now:              now,
		ActiveHoursStart: d.Safety.ActiveHoursStart,
		ActiveHoursEnd:   d.Safety.ActiveHoursEnd,
		Location:         loc,
		OperatingMode:    string(d.Mode),

		BannedPhrases:   d.Safety.BannedPhrases,
		PerAuthorPerDay: d.Safety.PerAuthorPerDay,
		CooldownMinutes: d.Safety.CooldownMinutes,

		RepliesTodayByAuthor: func(ctx context.Context, accountID, authorID string, day time.Time) (int, error) {
			dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
			return d.Store.CountRepliesToAuthorToday(ctx, accountID, authorID, dayStart)
		},
		LastMutationToTarget: d.Store.LastMutationToTarget,
		DuplicateExists:      d.Store.FindDuplicateText,
	}
}
