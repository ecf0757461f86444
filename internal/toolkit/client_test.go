package toolkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aramirez087/tuitbot/internal/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New("test-bearer-token", srv.URL, srv.URL, "", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestGetTweet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tweets/t1" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id":   "t1",
				"text": "We rewrote our KV store in Rust.",
				"public_metrics": map[string]any{
					"like_count": 12,
				},
			},
		})
	})

	tweet, err := c.GetTweet(t.Context(), "t1")
	if err != nil {
		t.Fatalf("GetTweet: %v", err)
	}
	if tweet.TweetID != "t1" || tweet.LikeCount != 12 {
		t.Fatalf("got %+v", tweet)
	}
}

func TestPostTweet(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tweets" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "t2"}})
	})

	id, err := c.PostTweet(t.Context(), "hello world", nil)
	if err != nil {
		t.Fatalf("PostTweet: %v", err)
	}
	if id != "t2" {
		t.Fatalf("got id %q, want t2", id)
	}
	if gotBody["text"] != "hello world" {
		t.Fatalf("request body text = %v", gotBody["text"])
	}
}

func TestMapStatusRateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", "1700000000")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"title": "Too Many Requests"})
	})

	_, err := c.GetTweet(t.Context(), "t1")
	if err == nil {
		t.Fatal("expected error")
	}
	var xerr *core.Error
	if !asError(err, &xerr) {
		t.Fatalf("expected *core.Error, got %T: %v", err, err)
	}
	if xerr.Code != core.CodeXRateLimited {
		t.Fatalf("code = %v, want %v", xerr.Code, core.CodeXRateLimited)
	}
	if !xerr.Retryable {
		t.Fatal("rate limited errors should be retryable")
	}
	if xerr.RateLimitReset.Unix() != 1700000000 {
		t.Fatalf("rate limit reset = %v", xerr.RateLimitReset)
	}
}

func TestMapStatusAuthExpired(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"title": "Unauthorized"})
	})

	_, err := c.GetTweet(t.Context(), "t1")
	var xerr *core.Error
	if !asError(err, &xerr) {
		t.Fatalf("expected *core.Error, got %T", err)
	}
	if xerr.Code != core.CodeXAuthExpired {
		t.Fatalf("code = %v, want %v", xerr.Code, core.CodeXAuthExpired)
	}
}

func asError(err error, target **core.Error) bool {
	e, ok := err.(*core.Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
