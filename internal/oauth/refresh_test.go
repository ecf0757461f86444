package oauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/store/memory"
)

func TestTokenRefresherSkipsAccountNotDueYet(t *testing.T) {
	store := memory.New()
	acct := core.Account{ID: "acct-1", AccessToken: "at-old", TokenExpiry: time.Now().Add(time.Hour)}
	if err := store.PutAccount(t.Context(), acct); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}

	f := &Flow{config: oauth2.Config{}}
	refresh := NewTokenRefresher(store, f)
	if err := refresh(t.Context(), "acct-1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got, err := store.GetAccount(t.Context(), "acct-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.AccessToken != "at-old" {
		t.Fatalf("expected token untouched, got %q", got.AccessToken)
	}
}

func TestTokenRefresherUpdatesAccountOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-new","refresh_token":"rt-new","token_type":"bearer","expires_in":7200,"scope":"tweet.read tweet.write"}`))
	}))
	defer srv.Close()

	store := memory.New()
	acct := core.Account{ID: "acct-1", AccessToken: "at-old", RefreshToken: "rt-old", TokenExpiry: time.Now().Add(time.Minute)}
	if err := store.PutAccount(t.Context(), acct); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}

	f := &Flow{config: oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: srv.URL + "/token"}}}
	refresh := NewTokenRefresher(store, f)
	if err := refresh(t.Context(), "acct-1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got, err := store.GetAccount(t.Context(), "acct-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.AccessToken != "at-new" || got.RefreshToken != "rt-new" {
		t.Fatalf("got = %+v", got)
	}
	if got.Degraded || got.NeedsReauth {
		t.Fatalf("expected account healthy after successful refresh, got %+v", got)
	}
}

func TestTokenRefresherMarksNeedsReauthOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	store := memory.New()
	acct := core.Account{ID: "acct-1", AccessToken: "at-old", RefreshToken: "rt-old", TokenExpiry: time.Now().Add(time.Minute)}
	if err := store.PutAccount(t.Context(), acct); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}

	f := &Flow{config: oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: srv.URL + "/token"}}}
	refresh := NewTokenRefresher(store, f)
	if err := refresh(t.Context(), "acct-1"); err == nil {
		t.Fatalf("expected refresh failure to be returned")
	}

	got, err := store.GetAccount(t.Context(), "acct-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !got.Degraded || !got.NeedsReauth {
		t.Fatalf("expected account marked degraded/needs_reauth, got %+v", got)
	}
}
