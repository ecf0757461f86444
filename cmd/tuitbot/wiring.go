package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aramirez087/tuitbot/internal/config"
	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/gateway"
	"github.com/aramirez087/tuitbot/internal/llm"
	"github.com/aramirez087/tuitbot/internal/oauth"
	"github.com/aramirez087/tuitbot/internal/policy"
	"github.com/aramirez087/tuitbot/internal/runtime"
	"github.com/aramirez087/tuitbot/internal/scoring"
	"github.com/aramirez087/tuitbot/internal/store/postgres"
	"github.com/aramirez087/tuitbot/internal/store/sqlite3"
	"github.com/aramirez087/tuitbot/internal/toolkit"
	"github.com/aramirez087/tuitbot/internal/watchtower"
	"github.com/aramirez087/tuitbot/internal/workflow"
)

// defaultPersona is the system framing handed to workflow.Deps when no
// richer persona configuration surface exists yet; see DESIGN.md's open
// question on workflow.Deps.Persona/Weights/BusinessKeywords/TargetAccountIDs
// having no config.Config counterpart.
const defaultPersona = "a builder sharing what they're shipping, concise and specific, never salesy"

// app bundles every long-lived dependency a subcommand needs. Built once
// per invocation by newApp and torn down by Close.
type app struct {
	cfg   *config.Config
	store core.Storer

	mode           policy.OperatingMode
	deploymentMode policy.DeploymentMode

	toolkit core.XApiClient
	llm     core.LLMProvider
	gateway *gateway.Gateway

	workflowDeps   workflow.Deps
	watchtowerDeps watchtower.Deps
	oauthFlow      *oauth.Flow

	encryptionKey []byte
}

// newApp loads configuration and wires every subsystem in dependency order:
// config, then downstream clients, then the composite layers built on top
// of them. dryRun forces gateway.Policy.DryRunMutations on regardless of
// what config.Policy.DryRunMutations says, backing `tuitbot tick --dry-run`.
func newApp(ctx context.Context, cfgPath string, dryRun bool) (*app, error) {
	cfg, err := config.Load(ctx, cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	mode, err := policy.ParseOperatingMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	deploymentMode, err := policy.ParseDeploymentMode(cfg.DeploymentMode)
	if err != nil {
		return nil, err
	}

	encKey := encryptionKeyBytes(cfg.Store.EncryptionKey)

	store, err := openStore(ctx, cfg, encKey)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := syncContentSources(ctx, store, cfg.ContentSources, deploymentMode); err != nil {
		store.Close()
		return nil, fmt.Errorf("sync content sources: %w", err)
	}

	llmProvider, err := llm.New(cfg.LLM)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build LLM provider: %w", err)
	}

	xClient, err := primaryToolkitClient(ctx, store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build X API client: %w", err)
	}

	registry := gateway.DefaultRegistry()
	gw := gateway.New(gateway.Deps{
		Toolkit:  xClient,
		Store:    store,
		Registry: registry,
		Policy: gateway.Policy{
			BlockedTools:        cfg.Policy.BlockedTools,
			RequireApprovalFor:  cfg.Policy.RequireApprovalFor,
			DryRunMutations:     cfg.Policy.DryRunMutations || dryRun,
			MaxMutationsPerHour: cfg.Policy.MaxMutationsPerHour,
			ApprovalModeOn:      cfg.ApprovalMode,
		},
		Safety: safetyTunables(cfg),
	})

	workflowDeps := workflow.Deps{
		Toolkit:          xClient,
		LLM:              llmProvider,
		Store:            store,
		Weights:          scoring.DefaultWeights,
		BusinessKeywords: nil,
		TargetAccountIDs: map[string]bool{},
		Mode:             mode,
		Persona:          defaultPersona,
		Safety: workflow.SafetyTunables{
			BannedPhrases:    cfg.Limits.BannedPhrases,
			PerAuthorPerDay:  cfg.Limits.PerAuthorPerDay,
			CooldownMinutes:  cfg.Limits.CooldownMinutes,
			ActiveHoursStart: activeHoursStart(cfg.Scheduling.ActiveHours),
			ActiveHoursEnd:   activeHoursEnd(cfg.Scheduling.ActiveHours),
			Location:         schedulingLocation(cfg.Scheduling.Timezone),
		},
	}

	watchtowerDeps := watchtower.Deps{
		Store: store,
		LLM:   llmProvider,
	}

	flow := oauth.NewFlow(cfg.XApi.ClientID, cfg.XApi.CallbackURI)

	return &app{
		cfg:            cfg,
		store:          store,
		mode:           mode,
		deploymentMode: deploymentMode,
		toolkit:        xClient,
		llm:            llmProvider,
		gateway:        gw,
		workflowDeps:   workflowDeps,
		watchtowerDeps: watchtowerDeps,
		oauthFlow:      flow,
		encryptionKey:  encKey,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func openStore(ctx context.Context, cfg *config.Config, encKey []byte) (core.Storer, error) {
	switch {
	case cfg.Store.SQLite != nil:
		return sqlite3.New(ctx, cfg.Store.SQLite, encKey)
	case cfg.Store.Postgres != nil:
		return postgres.New(ctx, cfg.Store.Postgres, encKey)
	default:
		return nil, fmt.Errorf("store: one of store.sqlite or store.postgres must be configured")
	}
}

func encryptionKeyBytes(raw string) []byte {
	if raw == "" {
		return nil
	}
	key := make([]byte, 32)
	copy(key, raw)
	return key
}

// primaryToolkitClient builds the single X API client the gateway and
// workflow layers share. The runtime architecture operates against one
// bearer token regardless of how many Account rows are registered — see
// DESIGN.md's open question on gateway.Deps/workflow.Deps.Toolkit being a
// single core.XApiClient rather than a per-account map. The "primary"
// account is the first one on file; an installation with zero accounts
// falls back to an unauthenticated client so `tuitbot test`/`tuitbot auth`
// still function before any OAuth flow has completed.
func primaryToolkitClient(ctx context.Context, store core.Storer) (core.XApiClient, error) {
	accounts, err := store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return toolkit.New("", "", "", "", false)
	}
	return toolkit.New(accounts[0].AccessToken, "", "", "", false)
}

// syncContentSources upserts config.ContentSources.Sources into the store
// as SourceContext rows, rejecting any type the deployment mode's
// capability set doesn't allow (e.g. local_fs sources are rejected when
// running in a hosted/cloud deployment mode).
func syncContentSources(ctx context.Context, store core.Storer, sources config.ContentSources, mode policy.DeploymentMode) error {
	caps := policy.CapabilitiesFor(mode)
	existing, err := store.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("list existing sources: %w", err)
	}
	byPath := make(map[string]core.SourceContext, len(existing))
	for _, s := range existing {
		byPath[s.ConfigJSON] = s
	}

	for _, src := range sources.Sources {
		if !caps.SourceTypeAllowed(src.Type) {
			return fmt.Errorf("content source type %q is not allowed under deployment_mode %q", src.Type, mode)
		}

		cfgJSON := sourceConfigJSON(src)
		if _, ok := byPath[cfgJSON]; ok {
			continue
		}

		now := time.Now()
		if err := store.PutSource(ctx, core.SourceContext{
			ID:         newULID(),
			Type:       src.Type,
			ConfigJSON: cfgJSON,
			Status:     core.SourcePending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}); err != nil {
			return fmt.Errorf("register source %q: %w", src.Path, err)
		}
	}
	return nil
}

func sourceConfigJSON(src config.ContentSource) string {
	return fmt.Sprintf(`{"path":%q}`, src.Path)
}

func safetyTunables(cfg *config.Config) gateway.SafetyTunables {
	return gateway.SafetyTunables{
		BannedPhrases:    cfg.Limits.BannedPhrases,
		PerAuthorPerDay:  cfg.Limits.PerAuthorPerDay,
		CooldownMinutes:  cfg.Limits.CooldownMinutes,
		ActiveHoursStart: activeHoursStart(cfg.Scheduling.ActiveHours),
		ActiveHoursEnd:   activeHoursEnd(cfg.Scheduling.ActiveHours),
		Location:         schedulingLocation(cfg.Scheduling.Timezone),
	}
}
