package watchtower

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/scoring"
)

// RunSeedWorker processes every pending content node: asks the LLM for up to
// HooksPerNode tweetable hooks, writes a DraftSeed per hook, and marks the
// node processed. A node whose LLM call fails is left pending — no poison
// queue — so the next pass retries it.
func RunSeedWorker(ctx context.Context, deps Deps) error {
	nodes, err := deps.Store.ListNodesByStatus(ctx, core.NodePending)
	if err != nil {
		return fmt.Errorf("list pending content nodes: %w", err)
	}

	for _, n := range nodes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := seedNode(ctx, deps, n); err != nil {
			// Left pending on purpose; log and move to the next node.
			slog.Error("watchtower: seed worker failed for node", "node_id", n.ID, "error", err)
		}
	}
	return nil
}

func seedNode(ctx context.Context, deps Deps, n core.ContentNode) error {
	prompt := buildHookPrompt(n, deps.hooksPerNode())
	text, err := deps.LLM.Generate(ctx, prompt, core.GenerateParams{MaxTokens: 300, Temperature: 0.8})
	if err != nil {
		return core.Wrap(core.CodeLLMError, "generate hooks for node "+n.ID, err)
	}

	hooks := parseHooks(text, deps.hooksPerNode())
	if len(hooks) == 0 {
		return core.NewError(core.CodeLLMError, "no hooks extracted for node "+n.ID)
	}

	for _, hook := range hooks {
		seed := core.DraftSeed{
			NodeID:   n.ID,
			HookText: hook,
			Angle:    firstTag(n.Tags),
			Score:    scoring.HookQuality(hook),
		}
		if err := deps.Store.PutDraftSeed(ctx, seed); err != nil {
			return fmt.Errorf("put draft seed for node %q: %w", n.ID, err)
		}
	}

	return deps.Store.MarkNodeProcessed(ctx, n.ID)
}

func firstTag(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return tags[0]
}

// buildHookPrompt asks the LLM for exactly K standalone, numbered tweetable
// hooks derived from the node's body, one per line.
func buildHookPrompt(n core.ContentNode, k int) string {
	var b strings.Builder
	b.WriteString("Read the following article excerpt and extract exactly ")
	fmt.Fprintf(&b, "%d", k)
	b.WriteString(" distinct tweetable hooks: short, standalone lines that would make someone stop scrolling. ")
	b.WriteString("Reply with one hook per line, numbered 1. through ")
	fmt.Fprintf(&b, "%d", k)
	b.WriteString(", no other commentary.\n\n")
	if n.Title.Valid {
		b.WriteString("Title: " + n.Title.V + "\n\n")
	}
	b.WriteString(n.Body)
	return b.String()
}

// parseHooks strips numbering/bullets from the LLM's line-per-hook reply
// and caps the result at max.
func parseHooks(text string, max int) []string {
	lines := strings.Split(text, "\n")
	hooks := make([]string, 0, max)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = stripListPrefix(line)
		if line == "" {
			continue
		}
		hooks = append(hooks, line)
		if len(hooks) == max {
			break
		}
	}
	return hooks
}

// stripListPrefix removes a leading "1.", "1)", "-", or "*" list marker.
func stripListPrefix(line string) string {
	trimmed := strings.TrimLeft(line, "0123456789")
	trimmed = strings.TrimPrefix(trimmed, ".")
	trimmed = strings.TrimPrefix(trimmed, ")")
	trimmed = strings.TrimPrefix(trimmed, "-")
	trimmed = strings.TrimPrefix(trimmed, "*")
	return strings.TrimSpace(trimmed)
}
