package workflow

import (
	"context"
	"strings"

	"github.com/worldline-go/types"

	"github.com/aramirez087/tuitbot/internal/scoring"
)

// normalizeText is the canonical form compared against the 7-day dedup
// window: lowercased, whitespace-collapsed.
func normalizeText(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

func nullString(s string) types.Null[string] {
	return types.NewNull(s)
}

// evaluateSafety runs the shared safety gates, returning the *core.Error or
// *scoring.Deferred unchanged so callers can branch on either with errors.As.
func evaluateSafety(ctx context.Context, text string, sc scoring.SafetyContext) error {
	return scoring.Evaluate(ctx, text, sc)
}
