package scoring

import (
	"context"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/aramirez087/tuitbot/internal/core"
)

// TextLength returns the URL-weighted character count the length gate uses:
// URLs count as 23 characters each, surrogate-pair emoji count as 2.
func TextLength(text string) int {
	// Replace bare http(s):// tokens with a fixed 23-char placeholder before
	// measuring, so the URL's real length doesn't leak through.
	words := strings.Fields(text)
	length := 0
	for i, w := range words {
		if i > 0 {
			length++ // the space separating words
		}
		if strings.HasPrefix(w, "http://") || strings.HasPrefix(w, "https://") {
			length += 23
			continue
		}
		length += utf16RuneLen(w)
	}
	return length
}

func utf16RuneLen(s string) int {
	n := 0
	for _, r := range s {
		n += len(utf16.Encode([]rune{r}))
	}
	return n
}

// SafetyContext bundles the per-account state the gates need.
type SafetyContext struct {
	AccountID        string
	AuthorID         string
	TargetID         string // tweet/user id this mutation targets
	NormalizedText   string
	Now              time.Time
	ActiveHoursStart string // "HH:MM"
	ActiveHoursEnd   string // "HH:MM"
	Location         *time.Location
	OperatingMode    string // "autopilot" or "composer"

	BannedPhrases      []string
	PerAuthorPerDay     int
	CooldownMinutes     int
	RepliesTodayByAuthor func(ctx context.Context, accountID, authorID string, day time.Time) (int, error)
	LastMutationToTarget func(ctx context.Context, accountID, targetID string) (time.Time, bool, error)
	DuplicateExists      func(ctx context.Context, accountID, authorID, normalizedText string, since time.Time) (bool, error)
}

// Deferred signals that a gate was satisfied but the mutation should wait
// (active-hours, Autopilot only) rather than being denied outright.
type Deferred struct {
	Until time.Time
}

func (d *Deferred) Error() string { return "deferred until active hours" }

// Evaluate runs the six safety gates in order. Returns a *core.Error
// with CodeSafetyRejected and a policy-decision subcode on the first veto, a
// *Deferred if the only issue is being outside active hours in Autopilot, or
// nil if every gate passes.
func Evaluate(ctx context.Context, text string, sc SafetyContext) error {
	now := sc.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// 1. Length.
	if TextLength(text) > 280 {
		return rejected("length_exceeded")
	}

	// 2. Banned-phrase set, case-insensitive substring.
	lower := strings.ToLower(text)
	for _, phrase := range sc.BannedPhrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return rejected("banned_phrase")
		}
	}

	// 3. Per-author-per-day cap.
	if sc.RepliesTodayByAuthor != nil {
		authorCap := sc.PerAuthorPerDay
		if authorCap <= 0 {
			authorCap = 1
		}
		count, err := sc.RepliesTodayByAuthor(ctx, sc.AccountID, sc.AuthorID, now)
		if err != nil {
			return core.Wrap(core.CodeDBError, "check per-author cap", err)
		}
		if count >= authorCap {
			return rejected("per_author_cap")
		}
	}

	// 4. Same-target cooldown.
	if sc.LastMutationToTarget != nil {
		last, found, err := sc.LastMutationToTarget(ctx, sc.AccountID, sc.TargetID)
		if err != nil {
			return core.Wrap(core.CodeDBError, "check target cooldown", err)
		}
		cooldown := sc.CooldownMinutes
		if cooldown <= 0 {
			cooldown = 10
		}
		if found && now.Sub(last) < time.Duration(cooldown)*time.Minute {
			return rejected("cooldown")
		}
	}

	// 5. Active-hours window — deferred, not rejected, in Autopilot.
	if sc.ActiveHoursStart != "" && sc.ActiveHoursEnd != "" {
		loc := sc.Location
		if loc == nil {
			loc = time.UTC
		}
		if until, outside := outsideActiveHours(now, sc.ActiveHoursStart, sc.ActiveHoursEnd, *loc); outside {
			if sc.OperatingMode == "composer" {
				return rejected("outside_active_hours")
			}
			return &Deferred{Until: until}
		}
	}

	// 6. Dedup within last 7 days.
	if sc.DuplicateExists != nil {
		dup, err := sc.DuplicateExists(ctx, sc.AccountID, sc.AuthorID, sc.NormalizedText, now.Add(-7*24*time.Hour))
		if err != nil {
			return core.Wrap(core.CodeDBError, "check dedup window", err)
		}
		if dup {
			return rejected("duplicate")
		}
	}

	return nil
}

func rejected(subcode string) *core.Error {
	return core.NewError(core.CodeSafetyRejected, "safety gate rejected the mutation").WithPolicyDecision(subcode)
}

// ActiveHoursWindow reports whether now (in loc) falls outside the
// [start,end) active-hours window and, if so, the next instant the window
// opens. Exported so the automation runtime can sleep schedule-respecting
// tasks until the window reopens, using the same parsing the safety gate
// uses to defer mutations.
func ActiveHoursWindow(now time.Time, start, end string, loc time.Location) (nextOpen time.Time, outside bool) {
	return outsideActiveHours(now, start, end, loc)
}

// outsideActiveHours reports whether now (in loc) falls outside [start,end)
// and, if so, the next instant the window opens.
func outsideActiveHours(now time.Time, start, end string, loc time.Location) (time.Time, bool) {
	local := now.In(&loc)
	startT, sErr := parseHHMM(local, start)
	endT, eErr := parseHHMM(local, end)
	if sErr != nil || eErr != nil {
		return time.Time{}, false
	}

	if !local.Before(startT) && local.Before(endT) {
		return time.Time{}, false
	}

	if local.Before(startT) {
		return startT, true
	}
	// past end today; window reopens tomorrow at start.
	return startT.Add(24 * time.Hour), true
}

func parseHHMM(ref time.Time, hhmm string) (time.Time, error) {
	t, err := time.ParseInLocation("15:04", hhmm, ref.Location())
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour(), t.Minute(), 0, 0, ref.Location()), nil
}
