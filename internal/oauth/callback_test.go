package oauth

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestAwaitCallbackReturnsCodeOnMatchingState(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	resultCh := make(chan struct {
		code string
		err  error
	}, 1)
	go func() {
		code, err := AwaitCallback(ctx, "http://127.0.0.1:18765/oauth/callback", "state-1")
		resultCh <- struct {
			code string
			err  error
		}{code, err}
	}()

	waitForServer(t, "127.0.0.1:18765")
	resp, err := http.Get("http://127.0.0.1:18765/oauth/callback?state=state-1&code=code-1")
	if err != nil {
		t.Fatalf("GET callback: %v", err)
	}
	resp.Body.Close()

	r := <-resultCh
	if r.err != nil {
		t.Fatalf("AwaitCallback: %v", r.err)
	}
	if r.code != "code-1" {
		t.Fatalf("code = %q, want %q", r.code, "code-1")
	}
}

func TestAwaitCallbackRejectsStateMismatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	resultCh := make(chan error, 1)
	go func() {
		_, err := AwaitCallback(ctx, "http://127.0.0.1:18766/oauth/callback", "expected-state")
		resultCh <- err
	}()

	waitForServer(t, "127.0.0.1:18766")
	resp, err := http.Get("http://127.0.0.1:18766/oauth/callback?state=wrong-state&code=code-1")
	if err != nil {
		t.Fatalf("GET callback: %v", err)
	}
	resp.Body.Close()

	if err := <-resultCh; err == nil {
		t.Fatalf("expected a state-mismatch error")
	}
}

func waitForServer(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if resp, err := http.Get("http://" + addr + "/healthcheck-probe"); err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAwaitManualPasteParsesFullRedirectURL(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("http://127.0.0.1:8675/oauth/callback?state=s1&code=abc123\n"))
	code, err := AwaitManualPaste(t.Context(), in, "s1")
	if err != nil {
		t.Fatalf("AwaitManualPaste: %v", err)
	}
	if code != "abc123" {
		t.Fatalf("code = %q, want %q", code, "abc123")
	}
}

func TestAwaitManualPasteAcceptsBareCode(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("bare-code-xyz\n"))
	code, err := AwaitManualPaste(t.Context(), in, "s1")
	if err != nil {
		t.Fatalf("AwaitManualPaste: %v", err)
	}
	if code != "bare-code-xyz" {
		t.Fatalf("code = %q, want %q", code, "bare-code-xyz")
	}
}

func TestAwaitManualPasteRejectsStateMismatch(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("http://127.0.0.1:8675/oauth/callback?state=wrong&code=abc123\n"))
	_, err := AwaitManualPaste(t.Context(), in, "expected")
	if err == nil {
		t.Fatalf("expected a state-mismatch error")
	}
}
