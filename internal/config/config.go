package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/rakunlabs/chu/loader/external/loaderconsul"
	_ "github.com/rakunlabs/chu/loader/external/loadervault"
	"github.com/rakunlabs/chu/loader/loaderenv"
	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/chu"
	"github.com/rakunlabs/tell"
)

var Service = "tuitbot"

// Config is the root configuration tree, loaded via rakunlabs/chu with
// TUITBOT_-prefixed env overrides (TUITBOT_<SECTION>__<KEY>).
type Config struct {
	LogLevel string `cfg:"log_level,no_prefix" default:"info"`

	// Mode is the operating mode: "autopilot" or "composer".
	Mode string `cfg:"mode,no_prefix" default:"autopilot"`

	// DeploymentMode is the deployment mode: "desktop", "self_host", or "cloud".
	DeploymentMode string `cfg:"deployment_mode,no_prefix" default:"desktop"`

	// ApprovalMode, if true, routes every mutation through the approval queue
	// regardless of policy.require_approval_for.
	ApprovalMode bool `cfg:"approval_mode,no_prefix"`

	XApi           XApi           `cfg:"x_api"`
	LLM            LLM            `cfg:"llm"`
	Limits         Limits         `cfg:"limits"`
	Intervals      Intervals      `cfg:"intervals"`
	Scheduling     Scheduling     `cfg:"scheduling"`
	Features       Features       `cfg:"features"`
	Policy         Policy         `cfg:"policy"`
	ContentSources ContentSources `cfg:"content_sources"`
	Store          Store          `cfg:"store"`

	Telemetry tell.Config `cfg:"telemetry,noprefix"`
}

// XApi holds OAuth client identity for the PKCE flow.
type XApi struct {
	ClientID    string `cfg:"client_id" log:"-"`
	CallbackURI string `cfg:"callback_uri" default:"http://127.0.0.1:8675/oauth/callback"`
}

// LLM selects the provider backing the LLM adapter.
type LLM struct {
	// Provider is one of "anthropic", "openaicompat", or "stub".
	Provider string `cfg:"provider" default:"anthropic"`
	Model    string `cfg:"model"`
	APIKey   string `cfg:"api_key" log:"-"`
	BaseURL  string `cfg:"base_url"`
	Timeout  time.Duration `cfg:"timeout" default:"60s"`
}

// Limits are hard per-day caps and safety-gate parameters.
type Limits struct {
	RepliesPerDay    int      `cfg:"replies_per_day" default:"50"`
	TweetsPerDay     int      `cfg:"tweets_per_day" default:"10"`
	ThreadsPerDay    int      `cfg:"threads_per_day" default:"2"`
	PerAuthorPerDay  int      `cfg:"per_author_per_day" default:"1"`
	CooldownMinutes  int      `cfg:"cooldown_minutes" default:"10"`
	BannedPhrases    []string `cfg:"banned_phrases"`
}

// Intervals overrides a loop's default wake interval, keyed by loop name.
type Intervals struct {
	Discovery       time.Duration `cfg:"discovery" default:"15m"`
	Mentions        time.Duration `cfg:"mentions" default:"5m"`
	TargetMonitor   time.Duration `cfg:"target_monitor" default:"10m"`
	ContentPosting  time.Duration `cfg:"content_posting" default:"1h"`
	ThreadPublishing time.Duration `cfg:"thread_publishing" default:"4h"`
	Analytics       time.Duration `cfg:"analytics" default:"6h"`
	ApprovalPoster  time.Duration `cfg:"approval_poster" default:"1m"`
	WatchtowerScan  time.Duration `cfg:"watchtower_scan" default:"5m"`
	SeedWorker      time.Duration `cfg:"seed_worker" default:"5m"`
	Retention       time.Duration `cfg:"retention" default:"24h"`
}

// Scheduling is the active-hours window.
type Scheduling struct {
	ActiveHours string `cfg:"active_hours" default:"00:00-23:59"`
	Timezone    string `cfg:"timezone" default:"UTC"`
}

// Features toggles each automation loop on or off.
type Features struct {
	Discovery       bool `cfg:"discovery" default:"true"`
	Mentions        bool `cfg:"mentions" default:"true"`
	TargetMonitor   bool `cfg:"target_monitor" default:"true"`
	ContentPosting  bool `cfg:"content_posting" default:"true"`
	ThreadPublishing bool `cfg:"thread_publishing" default:"true"`
	Analytics       bool `cfg:"analytics" default:"true"`
	Watchtower      bool `cfg:"watchtower" default:"true"`
}

// Policy is the declarative gateway policy.
type Policy struct {
	BlockedTools        []string `cfg:"blocked_tools"`
	RequireApprovalFor  []string `cfg:"require_approval_for"`
	DryRunMutations     bool     `cfg:"dry_run_mutations"`
	MaxMutationsPerHour int      `cfg:"max_mutations_per_hour" default:"20"`
}

// ContentSources lists registered watchtower sources.
type ContentSources struct {
	Sources []ContentSource `cfg:"sources"`
}

// ContentSource is one registered source entry; Type is validated against
// the deployment mode's capability set at config-validation time.
type ContentSource struct {
	Type string `cfg:"type"`
	Path string `cfg:"path"`
}

// Store configures the persistence backend and optional token encryption key.
type Store struct {
	Postgres *StorePostgres `cfg:"postgres"`
	SQLite   *StoreSQLite   `cfg:"sqlite"`

	// EncryptionKey, if set, enables AES-256-GCM encryption of Account
	// access/refresh tokens (internal/crypto). Zero-padded/truncated to 32
	// bytes internally; empty means tokens are stored as plaintext.
	EncryptionKey string `cfg:"encryption_key" log:"-"`
}

type StorePostgres struct {
	TablePrefix     *string        `cfg:"table_prefix"`
	Datasource      string         `cfg:"datasource" log:"-"`
	Schema          string         `cfg:"schema"`
	ConnMaxLifetime *time.Duration `cfg:"conn_max_lifetime"`
	MaxIdleConns    *int           `cfg:"max_idle_conns"`
	MaxOpenConns    *int           `cfg:"max_open_conns"`

	Migrate Migrate `cfg:"migrate"`
}

type StoreSQLite struct {
	TablePrefix *string `cfg:"table_prefix"`
	Datasource  string  `cfg:"datasource" default:"./data/tuitbot.db"`

	Migrate Migrate `cfg:"migrate"`
}

type Migrate struct {
	Datasource string            `cfg:"datasource" log:"-"`
	Schema     string            `cfg:"schema"`
	Table      string            `cfg:"table"`
	Values     map[string]string `cfg:"values"`
}

func Load(ctx context.Context, path string) (*Config, error) {
	var cfg Config
	if err := chu.Load(ctx, path, &cfg, chu.WithLoaderOption(loaderenv.New(loaderenv.WithPrefix("TUITBOT_")))); err != nil {
		return nil, err
	}

	if err := logi.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("set log level %s: %w", cfg.LogLevel, err)
	}

	slog.Info("loaded configuration", "config", chu.MarshalMap(cfg))

	return &cfg, nil
}
