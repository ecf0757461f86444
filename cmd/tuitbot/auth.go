package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/oauth"
	"github.com/aramirez087/tuitbot/internal/toolkit"
)

var flagAuthManual bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize an X account via OAuth2 PKCE",
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		a, err := newApp(cmd.Context(), flagConfigPath, false)
		if err != nil {
			return err
		}
		defer a.Close()

		return runAuth(cmd.Context(), a, start)
	},
}

func init() {
	authCmd.Flags().BoolVar(&flagAuthManual, "manual", false, "paste the redirect URL instead of waiting on the local callback server")
}

func runAuth(ctx context.Context, a *app, start time.Time) error {
	auth, err := a.oauthFlow.StartAuthorize()
	if err != nil {
		return emitError(start, core.Wrap(core.CodeXNetworkError, "start authorize", err))
	}

	fmt.Println("Open this URL in a browser to authorize tuitbot:")
	fmt.Println(auth.URL)

	var code string
	if flagAuthManual {
		fmt.Println("Paste the full redirect URL (or just the code) here:")
		code, err = oauth.AwaitManualPaste(ctx, bufio.NewReader(os.Stdin), auth.State)
	} else {
		fmt.Println("Waiting for the callback...")
		code, err = oauth.AwaitCallback(ctx, a.cfg.XApi.CallbackURI, auth.State)
	}
	if err != nil {
		return emitError(start, core.Wrap(core.CodeXAuthExpired, "await oauth callback", err))
	}

	tok, err := a.oauthFlow.Exchange(ctx, auth, code)
	if err != nil {
		return emitError(start, core.Wrap(core.CodeXAuthExpired, "exchange authorization code", err))
	}

	scopes := oauth.GrantedScopes(tok, a.oauthFlow.RequestedScopes())

	client, err := toolkit.New(tok.AccessToken, "", "", "", false)
	if err != nil {
		return emitError(start, core.Wrap(core.CodeXNetworkError, "build client for the new token", err))
	}
	me, err := client.GetMe(ctx)
	if err != nil {
		return emitError(start, core.Wrap(core.CodeXAPIError, "fetch authorized account", err))
	}

	existing, err := a.store.GetAccount(ctx, me.ID)
	now := time.Now()
	acct := core.Account{ID: me.ID, Handle: me.Username, UserID: me.ID, CreatedAt: now}
	if err == nil {
		acct = existing
	}
	acct = oauth.ApplyToken(acct, tok, scopes)
	acct.UpdatedAt = now

	if err := a.store.PutAccount(ctx, acct); err != nil {
		return emitError(start, core.Wrap(core.CodeDBError, "persist authorized account", err))
	}

	oauth.WarnMissingScopes(acct.ID, scopes)
	oauth.DowngradeWarnings(acct.ID, scopes)

	emit(start, map[string]string{"account_id": acct.ID, "handle": acct.Handle}, func() {
		fmt.Printf("authorized @%s (account_id=%s)\n", acct.Handle, acct.ID)
	})
	return nil
}
