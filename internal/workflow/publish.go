package workflow

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aramirez087/tuitbot/internal/core"
)

// Publish is a thin wrapper over the toolkit's write operations: media paths,
// if any, are uploaded first, then the draft is posted by content type and
// marked posted. It runs no policy check and performs no audit write; the
// posting queue (internal/runtime) does not call it and dispatches due drafts
// through the gateway instead.
func Publish(ctx context.Context, deps Deps, d core.Draft) ([]string, error) {
	mediaIDs, err := uploadMedia(ctx, deps, d.MediaPaths)
	if err != nil {
		return nil, err
	}

	var ids []string
	switch d.ContentType {
	case core.ContentThread:
		posted, err := deps.Toolkit.PostThread(ctx, d.ThreadBlocks)
		if err != nil {
			return nil, core.Wrap(core.CodeXAPIError, "publish thread", err)
		}
		ids = posted
	case core.ContentReply:
		if !d.InReplyToTweetID.Valid {
			return nil, core.NewError(core.CodeValidationError, "reply draft missing in_reply_to_tweet_id")
		}
		id, err := deps.Toolkit.ReplyToTweet(ctx, d.InReplyToTweetID.V, d.Content, mediaIDs)
		if err != nil {
			return nil, core.Wrap(core.CodeXAPIError, "publish reply", err)
		}
		ids = []string{id}
	default:
		id, err := deps.Toolkit.PostTweet(ctx, d.Content, mediaIDs)
		if err != nil {
			return nil, core.Wrap(core.CodeXAPIError, "publish tweet", err)
		}
		ids = []string{id}
	}

	d.Status = core.DraftStatusPosted
	d.UpdatedAt = time.Now().UTC()
	if err := deps.Store.PutDraft(ctx, d); err != nil {
		return ids, fmt.Errorf("mark draft posted: %w", err)
	}

	return ids, nil
}

func uploadMedia(ctx context.Context, deps Deps, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read media file %q: %w", path, err)
		}
		id, err := deps.Toolkit.UploadMedia(ctx, path, data)
		if err != nil {
			return nil, core.Wrap(core.CodeXAPIError, fmt.Sprintf("upload media %q", path), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
