package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/worldline-go/types"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/scoring"
)

// ThreadPlanInput parameterizes a single thread_plan call.
type ThreadPlanInput struct {
	AccountID string
	Topic     string
	Blocks    int // desired thread length; the LLM may return fewer
}

// minHookQuality is the floor a thread's opening block must clear; below
// this the plan is rejected rather than queued with a weak hook.
const minHookQuality = 0.4

// ThreadPlan asks the LLM for a thread outline of in.Blocks blocks, validates
// every block is within the 280-char limit, the outline has at least two
// blocks, and the opening block's hook quality clears the floor, then
// persists the result as a Draft with ContentThread.
func ThreadPlan(ctx context.Context, deps Deps, in ThreadPlanInput) (core.Draft, error) {
	prompt := buildThreadPrompt(deps.Persona, in.Topic, in.Blocks)

	raw, err := deps.LLM.Generate(ctx, prompt, core.GenerateParams{MaxTokens: 1200, Temperature: 0.7})
	if err != nil {
		return core.Draft{}, core.Wrap(core.CodeLLMError, "generate thread outline", err)
	}

	blocks, err := parseThreadOutline(raw)
	if err != nil {
		return core.Draft{}, core.Wrap(core.CodeSerializationError, "parse thread outline", err)
	}

	if len(blocks) < 2 {
		return core.Draft{}, core.NewError(core.CodeValidationError, "thread outline has fewer than 2 blocks")
	}
	for i, b := range blocks {
		if scoring.TextLength(b) > 280 {
			return core.Draft{}, core.NewError(core.CodeValidationError, fmt.Sprintf("thread block %d exceeds 280 characters", i))
		}
	}
	if quality := scoring.HookQuality(blocks[0]); quality < minHookQuality {
		return core.Draft{}, core.NewError(core.CodeValidationError, "thread hook quality below threshold").
			WithPolicyDecision("weak_hook")
	}

	now := time.Now().UTC()
	d := core.Draft{
		ID:           ulid.Make().String(),
		AccountID:    in.AccountID,
		ContentType:  core.ContentThread,
		Content:      blocks[0],
		ThreadBlocks: types.Slice[string](blocks),
		Status:       core.DraftStatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := deps.Store.PutDraft(ctx, d); err != nil {
		return core.Draft{}, fmt.Errorf("persist thread draft: %w", err)
	}
	return d, nil
}

func buildThreadPrompt(persona, topic string, blocks int) string {
	if blocks <= 0 {
		blocks = 5
	}

	var b strings.Builder
	if persona != "" {
		b.WriteString(persona)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Write a %d-tweet thread about: %s\n"+
		"Return strict JSON: a list of strings, one per tweet, each under 280 characters. "+
		"No markdown, no numbering, no commentary outside the JSON array.", blocks, topic)
	return b.String()
}

// parseThreadOutline accepts a JSON array of strings, tolerating a fenced
// code block around it (some providers wrap JSON in ```json ... ```).
func parseThreadOutline(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var blocks []string
	if err := json.Unmarshal([]byte(trimmed), &blocks); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(blocks))
	for _, blk := range blocks {
		blk = strings.TrimSpace(blk)
		if blk != "" {
			out = append(out, blk)
		}
	}
	return out, nil
}
