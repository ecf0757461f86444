package oauth

import (
	"strings"

	"golang.org/x/oauth2"

	"github.com/aramirez087/tuitbot/internal/core"
)

// GrantedScopes extracts the space-separated "scope" field X's token
// response carries in Extra, falling back to requested when the token
// response omits it.
func GrantedScopes(tok *oauth2.Token, requested []string) []string {
	raw, ok := tok.Extra("scope").(string)
	if !ok || raw == "" {
		return requested
	}
	return strings.Fields(raw)
}

// ApplyToken copies an exchanged/refreshed token pair onto acct, clearing
// the degraded/needs-reauth flags a prior failure may have set.
func ApplyToken(acct core.Account, tok *oauth2.Token, scopes []string) core.Account {
	acct.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		acct.RefreshToken = tok.RefreshToken
	}
	acct.TokenExpiry = tok.Expiry
	acct.Scopes = scopes
	acct.Degraded = false
	acct.NeedsReauth = false
	return acct
}
