package oauth

import (
	"log/slog"

	"github.com/aramirez087/tuitbot/internal/policy"
)

// WarnMissingScopes logs one structured warning per required scope an
// account's grant is missing, at startup.
func WarnMissingScopes(accountID string, granted []string) {
	for _, scope := range policy.MissingScopes(granted) {
		slog.Warn("oauth: account missing required scope", "account_id", accountID, "scope", scope)
	}
}

// DowngradeWarnings logs one warning per optional feature an account's
// grant can't support, alongside the missing scope that would unlock it.
func DowngradeWarnings(accountID string, granted []string) {
	for feature, scope := range policy.DowngradedFeatures(granted) {
		slog.Warn("oauth: feature downgraded, scope not granted", "account_id", accountID, "feature", feature, "scope", scope)
	}
}
