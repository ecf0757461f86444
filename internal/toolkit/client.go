// Package toolkit implements the stateless X API operation layer (C2):
// typed reads, writes, engagement, and media operations over a raw HTTP
// client. Writes and engagement calls here are deliberately unaudited and
// unpolicied — every user-initiated mutation must go through
// internal/gateway instead.
package toolkit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/worldline-go/klient"

	"github.com/aramirez087/tuitbot/internal/core"
)

var _ core.XApiClient = (*Client)(nil)

const (
	DefaultBaseURL   = "https://api.twitter.com/2"
	DefaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
)

// Client is the klient-backed implementation of core.XApiClient.
type Client struct {
	client *klient.Client
	upload *klient.Client
	bearer string

	meOnce sync.Once
	meErr  error
	me     core.User
}

// me resolves and caches the authenticated user for endpoints that are
// addressed by the caller's own user id (likes, follows, retweets, bookmarks).
func (c *Client) me(ctx context.Context) (core.User, error) {
	c.meOnce.Do(func() {
		c.me, c.meErr = c.GetMe(ctx)
	})
	return c.me, c.meErr
}

// New builds a Client authenticated with a user-context OAuth2 bearer token.
// baseURL/uploadURL default to DefaultBaseURL/DefaultUploadURL when empty;
// tests override them to point at an httptest server.
func New(bearerToken, baseURL, uploadURL, proxy string, insecureSkipVerify bool) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}

	headers := http.Header{
		"Authorization": []string{"Bearer " + bearerToken},
		"Content-Type":  []string{"application/json"},
	}

	klientOpts := []klient.OptionClientFn{
		klient.WithBaseURL(baseURL),
		klient.WithLogger(slog.Default()),
		klient.WithHeaderSet(headers),
	}
	if proxy != "" {
		klientOpts = append(klientOpts, klient.WithProxy(proxy))
	}
	if insecureSkipVerify {
		klientOpts = append(klientOpts, klient.WithInsecureSkipVerify(true))
	}

	apiClient, err := klient.New(klientOpts...)
	if err != nil {
		return nil, fmt.Errorf("build x api client: %w", err)
	}

	uploadOpts := []klient.OptionClientFn{
		klient.WithBaseURL(uploadURL),
		klient.WithLogger(slog.Default()),
		klient.WithHeaderSet(http.Header{"Authorization": []string{"Bearer " + bearerToken}}),
	}
	if proxy != "" {
		uploadOpts = append(uploadOpts, klient.WithProxy(proxy))
	}
	if insecureSkipVerify {
		uploadOpts = append(uploadOpts, klient.WithInsecureSkipVerify(true))
	}

	uploadClient, err := klient.New(uploadOpts...)
	if err != nil {
		return nil, fmt.Errorf("build x media upload client: %w", err)
	}

	return &Client{client: apiClient, upload: uploadClient, bearer: bearerToken}, nil
}
