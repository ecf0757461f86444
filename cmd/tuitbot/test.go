package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aramirez087/tuitbot/internal/config"
	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/policy"
)

type diagnosticCheck struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	Note string `json:"note,omitempty"`
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Diagnose configuration, credentials, and connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		ctx := cmd.Context()

		a, err := newApp(ctx, flagConfigPath, false)
		if err != nil {
			return emitError(start, core.Wrap(core.CodeValidationError, "load configuration", err))
		}
		defer a.Close()

		checks := []diagnosticCheck{checkDatabase(ctx, a)}
		checks = append(checks, checkAccounts(ctx, a)...)
		checks = append(checks, checkLLM(ctx, a))

		allOK := true
		for _, c := range checks {
			if !c.OK {
				allOK = false
			}
		}

		if flagOutput == "json" {
			meta := &core.Meta{ToolVersion: config.Service, ElapsedMS: time.Since(start).Milliseconds()}
			env := core.NewSuccessEnvelope(checks, meta)
			env.Success = allOK
			printEnvelope(env)
		} else {
			for _, c := range checks {
				status := "ok"
				if !c.OK {
					status = "FAIL"
				}
				fmt.Printf("[%s] %s %s\n", status, c.Name, c.Note)
			}
		}

		if !allOK {
			return fmt.Errorf("one or more diagnostic checks failed")
		}
		return nil
	},
}

func checkDatabase(ctx context.Context, a *app) diagnosticCheck {
	if _, err := a.store.ListAccounts(ctx); err != nil {
		return diagnosticCheck{Name: "database", OK: false, Note: err.Error()}
	}
	return diagnosticCheck{Name: "database", OK: true}
}

func checkAccounts(ctx context.Context, a *app) []diagnosticCheck {
	accounts, err := a.store.ListAccounts(ctx)
	if err != nil {
		return []diagnosticCheck{{Name: "accounts", OK: false, Note: err.Error()}}
	}
	if len(accounts) == 0 {
		return []diagnosticCheck{{Name: "accounts", OK: false, Note: "no accounts authorized, run `tuitbot auth`"}}
	}

	var out []diagnosticCheck
	for _, acct := range accounts {
		name := "account:" + acct.Handle
		if acct.AccessToken == "" {
			out = append(out, diagnosticCheck{Name: name, OK: false, Note: "no access token"})
			continue
		}
		if acct.NeedsReauth {
			out = append(out, diagnosticCheck{Name: name, OK: false, Note: "needs reauthorization"})
			continue
		}
		missing := policy.MissingScopes(acct.Scopes)
		if len(missing) > 0 {
			out = append(out, diagnosticCheck{Name: name, OK: false, Note: fmt.Sprintf("missing scopes: %v", missing)})
			continue
		}
		out = append(out, diagnosticCheck{Name: name, OK: true})
	}
	return out
}

func checkLLM(ctx context.Context, a *app) diagnosticCheck {
	if err := a.llm.HealthCheck(ctx); err != nil {
		return diagnosticCheck{Name: "llm", OK: false, Note: err.Error()}
	}
	return diagnosticCheck{Name: "llm", OK: true}
}
