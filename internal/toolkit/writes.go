package toolkit

import (
	"context"
	"net/http"
)

type postTweetRequest struct {
	Text  string            `json:"text"`
	Reply *replyRef         `json:"reply,omitempty"`
	Quote string            `json:"quote_tweet_id,omitempty"`
	Media *mediaRef         `json:"media,omitempty"`
}

type replyRef struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type mediaRef struct {
	MediaIDs []string `json:"media_ids"`
}

type postTweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (c *Client) PostTweet(ctx context.Context, text string, mediaIDs []string) (string, error) {
	req := postTweetRequest{Text: text}
	if len(mediaIDs) > 0 {
		req.Media = &mediaRef{MediaIDs: mediaIDs}
	}

	var resp postTweetResponse
	if err := doJSON(ctx, c.client, http.MethodPost, "/tweets", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

func (c *Client) ReplyToTweet(ctx context.Context, tweetID, text string, mediaIDs []string) (string, error) {
	req := postTweetRequest{Text: text, Reply: &replyRef{InReplyToTweetID: tweetID}}
	if len(mediaIDs) > 0 {
		req.Media = &mediaRef{MediaIDs: mediaIDs}
	}

	var resp postTweetResponse
	if err := doJSON(ctx, c.client, http.MethodPost, "/tweets", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

func (c *Client) QuoteTweet(ctx context.Context, tweetID, text string) (string, error) {
	req := postTweetRequest{Text: text, Quote: tweetID}

	var resp postTweetResponse
	if err := doJSON(ctx, c.client, http.MethodPost, "/tweets", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

func (c *Client) DeleteTweet(ctx context.Context, tweetID string) error {
	return doJSON(ctx, c.client, http.MethodDelete, "/tweets/"+tweetID, nil, nil, nil)
}

// PostThread posts blocks[0] as the root tweet and each subsequent block as
// a reply to the previous one, returning the posted tweet ids in order.
func (c *Client) PostThread(ctx context.Context, blocks []string) ([]string, error) {
	ids := make([]string, 0, len(blocks))

	var prevID string
	for i, block := range blocks {
		var id string
		var err error
		if i == 0 {
			id, err = c.PostTweet(ctx, block, nil)
		} else {
			id, err = c.ReplyToTweet(ctx, prevID, block, nil)
		}
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
		prevID = id
	}

	return ids, nil
}
