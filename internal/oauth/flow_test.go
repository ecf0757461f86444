package oauth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/aramirez087/tuitbot/internal/core"
)

func TestStartAuthorizeBuildsURLWithChallengeAndScopes(t *testing.T) {
	f := NewFlow("client-1", "http://127.0.0.1:8675/oauth/callback", "dm.read")

	auth, err := f.StartAuthorize()
	if err != nil {
		t.Fatalf("StartAuthorize: %v", err)
	}
	if auth.Verifier == "" || auth.State == "" {
		t.Fatalf("expected non-empty verifier/state, got %+v", auth)
	}

	u, err := url.Parse(auth.URL)
	if err != nil {
		t.Fatalf("parse auth URL: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "client-1" {
		t.Fatalf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("code_challenge") == "" || q.Get("code_challenge_method") != "S256" {
		t.Fatalf("expected S256 code_challenge params, got %v", q)
	}
	if q.Get("state") != auth.State {
		t.Fatalf("state param = %q, want %q", q.Get("state"), auth.State)
	}
	if !strings.Contains(q.Get("scope"), "tweet.read") || !strings.Contains(q.Get("scope"), "dm.read") {
		t.Fatalf("scope = %q, missing required/extra scope", q.Get("scope"))
	}
}

func TestExchangeReturnsTokenFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"bearer","expires_in":7200,"scope":"tweet.read tweet.write"}`))
	}))
	defer srv.Close()

	f := &Flow{config: oauth2.Config{
		ClientID:    "client-1",
		RedirectURL: "http://127.0.0.1:8675/oauth/callback",
		Scopes:      []string{"tweet.read", "tweet.write"},
		Endpoint:    oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token"},
	}}

	auth, err := f.StartAuthorize()
	if err != nil {
		t.Fatalf("StartAuthorize: %v", err)
	}

	tok, err := f.Exchange(t.Context(), auth, "code-1")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if tok.AccessToken != "at-1" || tok.RefreshToken != "rt-1" {
		t.Fatalf("tok = %+v", tok)
	}

	granted := GrantedScopes(tok, f.config.Scopes)
	if len(granted) != 2 || granted[0] != "tweet.read" || granted[1] != "tweet.write" {
		t.Fatalf("granted = %v", granted)
	}
}

func TestRefreshWrapsFailureAsAuthExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	f := &Flow{config: oauth2.Config{
		ClientID: "client-1",
		Endpoint: oauth2.Endpoint{TokenURL: srv.URL + "/token"},
	}}

	_, err := f.Refresh(t.Context(), "stale-refresh-token")
	if err == nil {
		t.Fatalf("expected refresh error")
	}
	var cerr *core.Error
	if !errors.As(err, &cerr) || cerr.Code != core.CodeXAuthExpired {
		t.Fatalf("expected %s error, got %v", core.CodeXAuthExpired, err)
	}
}
