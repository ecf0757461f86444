package toolkit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/worldline-go/types"

	"github.com/aramirez087/tuitbot/internal/core"
)

type tweetFields struct {
	Data []tweetPayload `json:"data"`
}

type tweetPayload struct {
	ID            string          `json:"id"`
	Text          string          `json:"text"`
	AuthorID      string          `json:"author_id"`
	CreatedAt     time.Time       `json:"created_at"`
	ConversationID string         `json:"conversation_id"`
	PublicMetrics publicMetrics   `json:"public_metrics"`
}

type publicMetrics struct {
	LikeCount    int `json:"like_count"`
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
}

func (t tweetPayload) toOriginalTweet(category core.TweetCategory) core.OriginalTweet {
	ot := core.OriginalTweet{
		TweetID:      t.ID,
		AuthorID:     t.AuthorID,
		Text:         t.Text,
		ObservedAt:   time.Now().UTC(),
		CreatedAt:    t.CreatedAt,
		LikeCount:    t.PublicMetrics.LikeCount,
		RetweetCount: t.PublicMetrics.RetweetCount,
		ReplyCount:   t.PublicMetrics.ReplyCount,
		Category:     category,
	}
	if t.ConversationID != "" {
		ot.ConversationID = types.NewNull(t.ConversationID)
	}
	return ot
}

type singleTweet struct {
	Data tweetPayload `json:"data"`
}

type userPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

func (u userPayload) toUser() core.User {
	return core.User{ID: u.ID, Username: u.Username, Name: u.Name}
}

type singleUser struct {
	Data userPayload `json:"data"`
}

type multiUser struct {
	Data []userPayload `json:"data"`
}

const tweetFieldParams = "created_at,author_id,conversation_id,public_metrics"

func (c *Client) SearchTweets(ctx context.Context, query string, maxResults int) ([]core.OriginalTweet, error) {
	q := url.Values{"query": {query}, "tweet.fields": {tweetFieldParams}}
	if maxResults > 0 {
		q.Set("max_results", strconv.Itoa(maxResults))
	}

	var resp tweetFields
	if err := doJSON(ctx, c.client, http.MethodGet, "/tweets/search/recent", q, nil, &resp); err != nil {
		return nil, err
	}
	return toOriginalTweets(resp.Data, core.CategoryDiscovery), nil
}

func (c *Client) GetTweet(ctx context.Context, tweetID string) (core.OriginalTweet, error) {
	q := url.Values{"tweet.fields": {tweetFieldParams}}
	var resp singleTweet
	if err := doJSON(ctx, c.client, http.MethodGet, "/tweets/"+tweetID, q, nil, &resp); err != nil {
		return core.OriginalTweet{}, err
	}
	return resp.Data.toOriginalTweet(core.CategoryDiscovery), nil
}

func (c *Client) GetUserByID(ctx context.Context, userID string) (core.User, error) {
	var resp singleUser
	if err := doJSON(ctx, c.client, http.MethodGet, "/users/"+userID, nil, nil, &resp); err != nil {
		return core.User{}, err
	}
	return resp.Data.toUser(), nil
}

func (c *Client) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	var resp singleUser
	if err := doJSON(ctx, c.client, http.MethodGet, "/users/by/username/"+username, nil, nil, &resp); err != nil {
		return core.User{}, err
	}
	return resp.Data.toUser(), nil
}

func (c *Client) GetUsersByIDs(ctx context.Context, userIDs []string) ([]core.User, error) {
	q := url.Values{"ids": {strings.Join(userIDs, ",")}}
	var resp multiUser
	if err := doJSON(ctx, c.client, http.MethodGet, "/users", q, nil, &resp); err != nil {
		return nil, err
	}
	return toUsers(resp.Data), nil
}

func (c *Client) GetUserMentions(ctx context.Context, userID string, sinceID string) ([]core.OriginalTweet, error) {
	q := url.Values{"tweet.fields": {tweetFieldParams}}
	if sinceID != "" {
		q.Set("since_id", sinceID)
	}
	var resp tweetFields
	if err := doJSON(ctx, c.client, http.MethodGet, fmt.Sprintf("/users/%s/mentions", userID), q, nil, &resp); err != nil {
		return nil, err
	}
	return toOriginalTweets(resp.Data, core.CategoryMention), nil
}

func (c *Client) GetUserTweets(ctx context.Context, userID string, maxResults int) ([]core.OriginalTweet, error) {
	q := url.Values{"tweet.fields": {tweetFieldParams}}
	if maxResults > 0 {
		q.Set("max_results", strconv.Itoa(maxResults))
	}
	var resp tweetFields
	if err := doJSON(ctx, c.client, http.MethodGet, fmt.Sprintf("/users/%s/tweets", userID), q, nil, &resp); err != nil {
		return nil, err
	}
	return toOriginalTweets(resp.Data, core.CategoryTarget), nil
}

func (c *Client) GetHomeTimeline(ctx context.Context, maxResults int) ([]core.OriginalTweet, error) {
	q := url.Values{"tweet.fields": {tweetFieldParams}}
	if maxResults > 0 {
		q.Set("max_results", strconv.Itoa(maxResults))
	}
	var resp tweetFields
	if err := doJSON(ctx, c.client, http.MethodGet, "/users/me/timelines/reverse_chronological", q, nil, &resp); err != nil {
		return nil, err
	}
	return toOriginalTweets(resp.Data, core.CategoryDiscovery), nil
}

func (c *Client) GetFollowers(ctx context.Context, userID string) ([]core.User, error) {
	var resp multiUser
	if err := doJSON(ctx, c.client, http.MethodGet, fmt.Sprintf("/users/%s/followers", userID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return toUsers(resp.Data), nil
}

func (c *Client) GetFollowing(ctx context.Context, userID string) ([]core.User, error) {
	var resp multiUser
	if err := doJSON(ctx, c.client, http.MethodGet, fmt.Sprintf("/users/%s/following", userID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return toUsers(resp.Data), nil
}

func (c *Client) GetLikedTweets(ctx context.Context, userID string) ([]core.OriginalTweet, error) {
	q := url.Values{"tweet.fields": {tweetFieldParams}}
	var resp tweetFields
	if err := doJSON(ctx, c.client, http.MethodGet, fmt.Sprintf("/users/%s/liked_tweets", userID), q, nil, &resp); err != nil {
		return nil, err
	}
	return toOriginalTweets(resp.Data, core.CategoryDiscovery), nil
}

func (c *Client) GetBookmarks(ctx context.Context) ([]core.OriginalTweet, error) {
	q := url.Values{"tweet.fields": {tweetFieldParams}}
	var resp tweetFields
	if err := doJSON(ctx, c.client, http.MethodGet, "/users/me/bookmarks", q, nil, &resp); err != nil {
		return nil, err
	}
	return toOriginalTweets(resp.Data, core.CategoryDiscovery), nil
}

func (c *Client) GetTweetLikingUsers(ctx context.Context, tweetID string) ([]core.User, error) {
	var resp multiUser
	if err := doJSON(ctx, c.client, http.MethodGet, fmt.Sprintf("/tweets/%s/liking_users", tweetID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return toUsers(resp.Data), nil
}

func (c *Client) GetMe(ctx context.Context) (core.User, error) {
	var resp singleUser
	if err := doJSON(ctx, c.client, http.MethodGet, "/users/me", nil, nil, &resp); err != nil {
		return core.User{}, err
	}
	return resp.Data.toUser(), nil
}

func toOriginalTweets(in []tweetPayload, category core.TweetCategory) []core.OriginalTweet {
	out := make([]core.OriginalTweet, 0, len(in))
	for _, t := range in {
		out = append(out, t.toOriginalTweet(category))
	}
	return out
}

func toUsers(in []userPayload) []core.User {
	out := make([]core.User, 0, len(in))
	for _, u := range in {
		out = append(out, u.toUser())
	}
	return out
}
