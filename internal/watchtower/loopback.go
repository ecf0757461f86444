package watchtower

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// WriteBack appends a structured block to relativePath's front matter
// recording the tweet id and timestamp of a published post, idempotently:
// if tweetID is already present it does nothing. touch, if non-nil, is
// called with relativePath afterward so a LocalFS-backed Watcher can
// suppress the fsnotify event this write itself produces.
//
// Only local-filesystem sources are writable this way — RemoteDrive
// implements core.ContentSourceProvider read-only (Scan/Read), since a
// remote drive is polling-only; a node sourced from a remote drive has
// nowhere for the loop-back writer to write, so callers should only invoke
// WriteBack for nodes whose source is a LocalFS.
func WriteBack(root, relativePath, tweetID string, postedAt time.Time, touch func(string)) error {
	fullPath := filepath.Join(root, relativePath)

	raw, err := os.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("read %q for loop-back write: %w", relativePath, err)
	}

	fm, body := splitFrontMatter(raw)
	for _, p := range fm.Published {
		if p.TweetID == tweetID {
			return nil // already recorded, idempotent no-op
		}
	}
	fm.Published = append(fm.Published, publishedRecord{TweetID: tweetID, PostedAt: postedAt.UTC()})

	block, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("marshal front matter for %q: %w", relativePath, err)
	}

	out := "---\n" + string(block) + "---\n" + body
	info, err := os.Stat(fullPath)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(fullPath, []byte(out), mode); err != nil {
		return fmt.Errorf("write %q for loop-back write: %w", relativePath, err)
	}

	if touch != nil {
		touch(relativePath)
	}
	return nil
}
