package oauth

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/aramirez087/tuitbot/internal/core"
)

// AwaitCallback starts a one-shot HTTP server on callbackURI's host:port and
// blocks until it receives a GET with a matching state, or ctx is cancelled.
// It answers with a short confirmation page so the user can close the tab.
func AwaitCallback(ctx context.Context, callbackURI, wantState string) (code string, err error) {
	u, err := url.Parse(callbackURI)
	if err != nil {
		return "", fmt.Errorf("parse callback uri %q: %w", callbackURI, err)
	}

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return "", fmt.Errorf("listen on %q for oauth callback: %w", u.Host, err)
	}

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(u.Path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errMsg := q.Get("error"); errMsg != "" {
			fmt.Fprintln(w, "Authorization denied. You can close this tab.")
			done <- result{err: core.NewError(core.CodeValidationError, "oauth authorize denied: "+errMsg)}
			return
		}
		if q.Get("state") != wantState {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, "State mismatch. You can close this tab and retry.")
			done <- result{err: core.NewError(core.CodeValidationError, "oauth callback state mismatch")}
			return
		}
		fmt.Fprintln(w, "Authorized. You can close this tab.")
		done <- result{code: q.Get("code")}
	})

	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	defer srv.Shutdown(context.Background())

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.code, r.err
	}
}

// AwaitManualPaste reads the full redirect URL (or bare code) the user
// pasted from the browser, for environments with no local loopback — the
// manual-paste half of callback acceptance, alongside AwaitCallback's
// loopback server.
func AwaitManualPaste(ctx context.Context, in *bufio.Reader, wantState string) (code string, err error) {
	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		line, readErr := in.ReadString('\n')
		if readErr != nil && line == "" {
			done <- result{err: readErr}
			return
		}
		line = strings.TrimSpace(line)

		if u, parseErr := url.Parse(line); parseErr == nil && u.Query().Get("code") != "" {
			if state := u.Query().Get("state"); state != "" && state != wantState {
				done <- result{err: core.NewError(core.CodeValidationError, "oauth callback state mismatch")}
				return
			}
			done <- result{code: u.Query().Get("code")}
			return
		}
		done <- result{code: line}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.code, r.err
	}
}
