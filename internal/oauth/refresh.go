package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/aramirez087/tuitbot/internal/core"
)

// refreshWindow is how far ahead of expiry a token is eligible for refresh:
// refreshed automatically 5 minutes before expiry.
const refreshWindow = 5 * time.Minute

// NewTokenRefresher returns a function matching internal/runtime.TokenRefresher's
// shape: given an account id, refresh its token if it's within refreshWindow
// of expiry, persist the result, and mark the account needs_reauth on
// failure. Token encryption at rest is handled transparently by the store
// implementation (GetAccount/PutAccount), so the plaintext tokens this
// function works with never touch internal/crypto directly.
func NewTokenRefresher(store core.Storer, flow *Flow) func(ctx context.Context, accountID string) error {
	return func(ctx context.Context, accountID string) error {
		acct, err := store.GetAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("load account %q for refresh: %w", accountID, err)
		}

		if time.Until(acct.TokenExpiry) > refreshWindow {
			return nil // not due yet
		}

		tok, err := flow.Refresh(ctx, acct.RefreshToken)
		if err != nil {
			acct.Degraded = true
			acct.NeedsReauth = true
			if putErr := store.PutAccount(ctx, acct); putErr != nil {
				return fmt.Errorf("mark account %q needs_reauth after refresh failure: %w", accountID, putErr)
			}
			return err
		}

		acct = ApplyToken(acct, tok, GrantedScopes(tok, flow.config.Scopes))

		if err := store.PutAccount(ctx, acct); err != nil {
			return fmt.Errorf("persist refreshed account %q: %w", accountID, err)
		}
		return nil
	}
}
