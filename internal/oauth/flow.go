// Package oauth implements the PKCE authorization-code flow against the X
// API: generate verifier/challenge, build the authorize URL, accept the
// callback (loopback server or manual paste), exchange the code for a
// token pair, and keep that pair refreshed. Built on golang.org/x/oauth2's
// AuthCodeURL/Exchange/TokenSource.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/policy"
)

const (
	authURL  = "https://twitter.com/i/oauth2/authorize"
	tokenURL = "https://api.twitter.com/2/oauth2/token"
)

// Flow drives one account's PKCE exchange and holds the oauth2.Config
// built from configured client identity.
type Flow struct {
	config oauth2.Config
}

// NewFlow builds a Flow for clientID/callbackURI, requesting
// policy.RequiredScopes plus any optional feature scopes requested.
func NewFlow(clientID, callbackURI string, extraScopes ...string) *Flow {
	scopes := append([]string{}, policy.RequiredScopes...)
	scopes = append(scopes, extraScopes...)

	return &Flow{config: oauth2.Config{
		ClientID:    clientID,
		RedirectURL: callbackURI,
		Scopes:      scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}}
}

// RequestedScopes returns the scopes this Flow asks for, for callers that
// need to fall back to the request when a token response omits "scope"
// (see GrantedScopes).
func (f *Flow) RequestedScopes() []string {
	return f.config.Scopes
}

// Authorization is one in-progress PKCE handshake: the URL to present to
// the user, the verifier to exchange with later, and a random state value
// the callback must echo back.
type Authorization struct {
	URL      string
	Verifier string
	State    string
}

// StartAuthorize generates a fresh verifier/challenge pair and state token,
// returning the URL to present to the user.
func (f *Flow) StartAuthorize() (Authorization, error) {
	verifier := oauth2.GenerateVerifier()

	state, err := randomState()
	if err != nil {
		return Authorization{}, fmt.Errorf("generate oauth state: %w", err)
	}

	url := f.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	return Authorization{URL: url, Verifier: verifier, State: state}, nil
}

// Exchange trades an authorization code for an access/refresh token pair.
func (f *Flow) Exchange(ctx context.Context, auth Authorization, code string) (*oauth2.Token, error) {
	tok, err := f.config.Exchange(ctx, code, oauth2.VerifierOption(auth.Verifier))
	if err != nil {
		return nil, core.Wrap(core.CodeXNetworkError, "exchange oauth code", err)
	}
	return tok, nil
}

// Refresh exchanges a refresh token for a new access/refresh token pair.
func (f *Flow) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := f.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, core.Wrap(core.CodeXAuthExpired, "refresh oauth token", err)
	}
	return tok, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
