// Package watchtower implements external content ingestion: scanning
// registered content sources, deduplicating and upserting ContentNode rows,
// extracting tweetable hooks from pending nodes via the LLM, and writing
// back a record of what was published from each node. It follows the same
// capability/Deps shape internal/workflow established.
package watchtower

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/worldline-go/types"
	"gopkg.in/yaml.v3"

	"github.com/aramirez087/tuitbot/internal/core"
)

// Deps bundles what ingestion and the seed worker need.
type Deps struct {
	Store core.Storer
	LLM   core.LLMProvider

	// HooksPerNode caps how many DraftSeeds the seed worker asks the LLM
	// for per content node.
	HooksPerNode int
}

func (d Deps) hooksPerNode() int {
	if d.HooksPerNode > 0 {
		return d.HooksPerNode
	}
	return 3
}

func nullString(s string) types.Null[string] {
	return types.NewNull(s)
}

// frontMatter is the optional YAML block a source file may open with,
// delimited by "---" lines, carrying title/tags metadata. Published records
// the loop-back writer's own appended history of what this node produced.
type frontMatter struct {
	Title     string             `yaml:"title"`
	Tags      []string           `yaml:"tags"`
	Published []publishedRecord  `yaml:"published,omitempty"`
}

// publishedRecord is one loop-back writer entry: this node was the source
// of tweetID, posted at PostedAt.
type publishedRecord struct {
	TweetID  string    `yaml:"tweet_id"`
	PostedAt time.Time `yaml:"posted_at"`
}

// splitFrontMatter pulls a leading "---\n...\n---\n" YAML block off raw, if
// present, returning the parsed front matter and the remaining body. A file
// with no front matter is its own body with a zero-value frontMatter.
func splitFrontMatter(raw []byte) (frontMatter, string) {
	text := string(raw)
	if !strings.HasPrefix(text, "---\n") && !strings.HasPrefix(text, "---\r\n") {
		return frontMatter{}, text
	}

	rest := strings.TrimPrefix(strings.TrimPrefix(text, "---\r\n"), "---\n")
	end := strings.Index(rest, "\n---\n")
	if end == -1 {
		end = strings.Index(rest, "\n---\r\n")
	}
	if end == -1 {
		return frontMatter{}, text
	}

	block := rest[:end]
	body := rest[end+len("\n---\n"):]

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		// Malformed front matter: treat the whole file as body rather than
		// dropping content on the floor.
		return frontMatter{}, text
	}
	return fm, strings.TrimPrefix(body, "\n")
}

// IngestFile hashes one source file's bytes, dedups against the existing
// ContentNode for (sourceID, relativePath), parses its optional front
// matter, and upserts the node. Returns whether a new or changed node was
// stored.
func IngestFile(ctx context.Context, deps Deps, sourceID string, provider core.ContentSourceProvider, file core.SourceFile) (bool, error) {
	raw, err := provider.Read(ctx, file.RelativePath)
	if err != nil {
		return false, core.Wrap(core.CodeDBError, "read source file "+file.RelativePath, err)
	}

	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])

	fm, body := splitFrontMatter(raw)

	node := core.ContentNode{
		SourceID:     sourceID,
		RelativePath: file.RelativePath,
		ContentHash:  hash,
		Body:         body,
	}
	if fm.Title != "" {
		node.Title = nullString(fm.Title)
	}
	node.Tags = fm.Tags

	changed, err := deps.Store.UpsertContentNode(ctx, node)
	if err != nil {
		return false, fmt.Errorf("upsert content node %q: %w", file.RelativePath, err)
	}
	return changed, nil
}

// ScanSource runs one full scan of a single source through provider,
// ingesting every file it reports. A per-file failure is logged and
// skipped rather than aborting the whole scan, matching the worker's
// general "keep making forward progress" posture.
func ScanSource(ctx context.Context, deps Deps, sourceID string, provider core.ContentSourceProvider) error {
	files, err := provider.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan source %q: %w", sourceID, err)
	}
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := IngestFile(ctx, deps, sourceID, provider, f); err != nil {
			slog.Error("watchtower: ingest failed", "source_id", sourceID, "path", f.RelativePath, "error", err)
		}
	}
	return nil
}

// ScanAll scans every registered source, resolving each one's provider via
// newProvider (built from its persisted SourceContext). Unknown/unsupported
// source types are logged and skipped.
func ScanAll(ctx context.Context, deps Deps, newProvider func(core.SourceContext) (core.ContentSourceProvider, error)) error {
	sources, err := deps.Store.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	for _, src := range sources {
		provider, err := newProvider(src)
		if err != nil {
			slog.Error("watchtower: unresolvable source", "source_id", src.ID, "type", src.Type, "error", err)
			continue
		}
		if err := ScanSource(ctx, deps, src.ID, provider); err != nil {
			slog.Error("watchtower: scan failed", "source_id", src.ID, "error", err)
		}
	}
	return nil
}
