// Package scoring implements the candidate-tweet ranking formula and the
// outgoing-text safety gates. No third-party library models this bespoke
// weighted-signal formula, so this package is plain Go over stdlib
// math/strings/time (documented in DESIGN.md as a justified stdlib choice,
// not a fallback).
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/aramirez087/tuitbot/internal/core"
)

// Weights controls the relative contribution of each of the six signals.
// Defaults sum to 1.0 but callers are free to tune per deployment.
type Weights struct {
	Recency        float64
	Engagement     float64
	KeywordOverlap float64
	TargetBonus    float64
	ConvDepthPenalty float64
	AuthorHistory  float64
}

// DefaultWeights is a reasonable starting point, ordering signals by
// apparent importance.
var DefaultWeights = Weights{
	Recency:          0.25,
	Engagement:       0.25,
	KeywordOverlap:   0.20,
	TargetBonus:      0.15,
	ConvDepthPenalty: 0.10,
	AuthorHistory:    0.05,
}

// Input bundles the per-tweet and per-account context the formula needs.
type Input struct {
	Tweet             core.OriginalTweet
	BusinessKeywords  []string
	IsTargetAccount   bool
	ConversationDepth int     // number of replies already in this conversation
	AuthorHistoryPrior float64 // 0..1, derived from prior interactions with this author
	Now               time.Time
}

// Score combines the six signals into a single numeric rank, stored with the
// OriginalTweet. Ties are expected to be broken by the caller using
// created_at (the function is pure and does not see sibling candidates).
func Score(in Input, w Weights) float64 {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	recency := recencyDecay(in.Tweet.CreatedAt, now)
	engagement := engagementScore(in.Tweet.LikeCount, in.Tweet.RetweetCount)
	keywordOverlap := keywordOverlapScore(in.Tweet.Text, in.BusinessKeywords)
	targetBonus := 0.0
	if in.IsTargetAccount {
		targetBonus = 1.0
	}
	convPenalty := conversationDepthPenalty(in.ConversationDepth)
	authorPrior := clamp01(in.AuthorHistoryPrior)

	return w.Recency*recency +
		w.Engagement*engagement +
		w.KeywordOverlap*keywordOverlap +
		w.TargetBonus*targetBonus -
		w.ConvDepthPenalty*convPenalty +
		w.AuthorHistory*authorPrior
}

// recencyDecay is an exponential decay with a 24h half-life, clamped to [0,1].
func recencyDecay(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	age := now.Sub(createdAt)
	if age < 0 {
		age = 0
	}
	const halfLife = 24 * time.Hour
	return math.Exp(-math.Ln2 * age.Hours() / halfLife.Hours())
}

// engagementScore log-scales likes+retweets so viral outliers don't dominate.
func engagementScore(likes, retweets int) float64 {
	total := float64(likes + retweets)
	if total <= 0 {
		return 0
	}
	// log1p(total) / log1p(10000) normalizes against a generous viral ceiling.
	return math.Log1p(total) / math.Log1p(10000)
}

func keywordOverlapScore(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matches := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

// conversationDepthPenalty grows with thread depth, capped at 1.0 (depth >= 10).
func conversationDepthPenalty(depth int) float64 {
	if depth <= 0 {
		return 0
	}
	if depth >= 10 {
		return 1
	}
	return float64(depth) / 10
}

// HookQuality scores a thread's opening block on three weak signals: a
// question or number grabs attention, brevity reads faster, and an opener
// that's just a URL or mention has nothing to hook with.
func HookQuality(hook string) float64 {
	trimmed := strings.TrimSpace(hook)
	if trimmed == "" {
		return 0
	}

	score := 0.4
	if strings.ContainsAny(trimmed, "?") {
		score += 0.2
	}
	if strings.ContainsAny(trimmed, "0123456789") {
		score += 0.2
	}
	if length := TextLength(trimmed); length > 0 && length <= 120 {
		score += 0.2
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") || strings.HasPrefix(trimmed, "@") {
		score -= 0.3
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
