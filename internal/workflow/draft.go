package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aramirez087/tuitbot/internal/core"
)

// DraftInput parameterizes a single draft call.
type DraftInput struct {
	AccountID string
	Candidate core.OriginalTweet
	// ContentType selects the artifact shape: ContentTweet, ContentThread, or
	// ContentReply. ContentReply requires Candidate to be populated.
	ContentType core.ContentType
}

// Draft fetches conversation context for the candidate, calls the LLM with
// the configured persona, runs the candidate text through the safety gates,
// and returns either a persisted Draft or the *core.Error/*scoring.Deferred
// the gate produced.
func Draft(ctx context.Context, deps Deps, in DraftInput) (core.Draft, error) {
	contextText := in.Candidate.Text
	if in.Candidate.ConversationID.Valid && in.Candidate.ConversationID.V != in.Candidate.TweetID {
		root, err := deps.Toolkit.GetTweet(ctx, in.Candidate.ConversationID.V)
		if err == nil {
			contextText = root.Text + "\n---\n" + in.Candidate.Text
		}
	}

	prompt := buildDraftPrompt(deps.Persona, in.ContentType, contextText)

	text, err := deps.LLM.Generate(ctx, prompt, core.GenerateParams{MaxTokens: 400, Temperature: 0.7})
	if err != nil {
		return core.Draft{}, core.Wrap(core.CodeLLMError, "generate draft text", err)
	}
	text = strings.TrimSpace(text)

	normalized := normalizeText(text)
	now := time.Now().UTC()
	sc := deps.safetyContext(in.AccountID, in.Candidate.AuthorID, in.Candidate.TweetID, normalized, now)

	if err := evaluateSafety(ctx, text, sc); err != nil {
		return core.Draft{}, err
	}

	d := core.Draft{
		ID:          ulid.Make().String(),
		AccountID:   in.AccountID,
		ContentType: in.ContentType,
		Content:     text,
		Status:      core.DraftStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.ContentType == core.ContentReply {
		d.InReplyToTweetID = nullString(in.Candidate.TweetID)
	}
	if in.Candidate.SourceNodeID.Valid {
		d.SourceNodeID = in.Candidate.SourceNodeID
	}

	if err := deps.Store.PutDraft(ctx, d); err != nil {
		return core.Draft{}, fmt.Errorf("persist draft: %w", err)
	}
	return d, nil
}

func buildDraftPrompt(persona string, contentType core.ContentType, contextText string) string {
	var kind string
	switch contentType {
	case core.ContentReply:
		kind = "a reply to the following tweet"
	case core.ContentThread:
		kind = "the opening tweet of a thread about the following topic"
	default:
		kind = "a standalone tweet inspired by the following"
	}

	var b strings.Builder
	if persona != "" {
		b.WriteString(persona)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Write %s. Keep it under 280 characters, no hashtags unless natural.\n\n%s", kind, contextText)
	return b.String()
}
