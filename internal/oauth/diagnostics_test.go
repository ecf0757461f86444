package oauth

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func captureLogs(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)
	fn()
	return buf.String()
}

func TestWarnMissingScopesLogsEachMissingScope(t *testing.T) {
	out := captureLogs(t, func() {
		WarnMissingScopes("acct-1", []string{"tweet.read"})
	})
	if !strings.Contains(out, "tweet.write") {
		t.Fatalf("expected a warning for missing tweet.write, got: %s", out)
	}
}

func TestWarnMissingScopesSilentWhenComplete(t *testing.T) {
	full := []string{"tweet.read", "tweet.write", "users.read", "follows.read", "follows.write", "like.read", "like.write", "offline.access"}
	out := captureLogs(t, func() {
		WarnMissingScopes("acct-1", full)
	})
	if out != "" {
		t.Fatalf("expected no warnings, got: %s", out)
	}
}

func TestDowngradeWarningsLogsMissingFeatureScope(t *testing.T) {
	out := captureLogs(t, func() {
		DowngradeWarnings("acct-1", nil)
	})
	if !strings.Contains(out, "direct_messages") {
		t.Fatalf("expected a downgrade warning for direct_messages, got: %s", out)
	}
}
