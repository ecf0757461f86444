package toolkit

import (
	"context"
	"fmt"
	"net/http"
)

type tweetIDRequest struct {
	TweetID string `json:"tweet_id"`
}

type targetUserRequest struct {
	TargetUserID string `json:"target_user_id"`
}

func (c *Client) Like(ctx context.Context, tweetID string) error {
	me, err := c.me(ctx)
	if err != nil {
		return err
	}
	return doJSON(ctx, c.client, http.MethodPost, fmt.Sprintf("/users/%s/likes", me.ID), nil, tweetIDRequest{TweetID: tweetID}, nil)
}

func (c *Client) Unlike(ctx context.Context, tweetID string) error {
	me, err := c.me(ctx)
	if err != nil {
		return err
	}
	return doJSON(ctx, c.client, http.MethodDelete, fmt.Sprintf("/users/%s/likes/%s", me.ID, tweetID), nil, nil, nil)
}

func (c *Client) Follow(ctx context.Context, userID string) error {
	me, err := c.me(ctx)
	if err != nil {
		return err
	}
	return doJSON(ctx, c.client, http.MethodPost, fmt.Sprintf("/users/%s/following", me.ID), nil, targetUserRequest{TargetUserID: userID}, nil)
}

func (c *Client) Unfollow(ctx context.Context, userID string) error {
	me, err := c.me(ctx)
	if err != nil {
		return err
	}
	return doJSON(ctx, c.client, http.MethodDelete, fmt.Sprintf("/users/%s/following/%s", me.ID, userID), nil, nil, nil)
}

func (c *Client) Retweet(ctx context.Context, tweetID string) error {
	me, err := c.me(ctx)
	if err != nil {
		return err
	}
	return doJSON(ctx, c.client, http.MethodPost, fmt.Sprintf("/users/%s/retweets", me.ID), nil, tweetIDRequest{TweetID: tweetID}, nil)
}

func (c *Client) Unretweet(ctx context.Context, tweetID string) error {
	me, err := c.me(ctx)
	if err != nil {
		return err
	}
	return doJSON(ctx, c.client, http.MethodDelete, fmt.Sprintf("/users/%s/retweets/%s", me.ID, tweetID), nil, nil, nil)
}

func (c *Client) Bookmark(ctx context.Context, tweetID string) error {
	me, err := c.me(ctx)
	if err != nil {
		return err
	}
	return doJSON(ctx, c.client, http.MethodPost, fmt.Sprintf("/users/%s/bookmarks", me.ID), nil, tweetIDRequest{TweetID: tweetID}, nil)
}

func (c *Client) Unbookmark(ctx context.Context, tweetID string) error {
	me, err := c.me(ctx)
	if err != nil {
		return err
	}
	return doJSON(ctx, c.client, http.MethodDelete, fmt.Sprintf("/users/%s/bookmarks/%s", me.ID, tweetID), nil, nil, nil)
}
