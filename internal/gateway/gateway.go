// Package gateway implements the single gate every mutation passes through:
// classify, idempotency, policy evaluation, safety gates, execute, audit.
// The gateway is the only writer of MutationAuditRecord rows.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/worldline-go/types"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/policy"
	"github.com/aramirez087/tuitbot/internal/scoring"
)

// idempotencyWindow is how long a prior Executed outcome for the same hash
// suppresses re-execution.
const idempotencyWindow = 10 * time.Minute

// Policy mirrors config.Policy, kept here so gateway doesn't import
// internal/config (the dependency direction the internal/core package doc
// describes runs the other way).
type Policy struct {
	BlockedTools        []string
	RequireApprovalFor  []string
	DryRunMutations     bool
	MaxMutationsPerHour int
	ApprovalModeOn      bool
}

// SafetyTunables mirrors config.Limits + config.Scheduling. The gateway
// re-validates safety independently of the workflow package's draft-time
// check — an approval queue item can sit for hours before a human approves
// it, and an account's active-hours window or per-author count may have
// shifted by the time it executes.
type SafetyTunables struct {
	BannedPhrases    []string
	PerAuthorPerDay  int
	CooldownMinutes  int
	ActiveHoursStart string
	ActiveHoursEnd   string
	Location         *time.Location
}

// Deps bundles what the gateway needs to dispatch a single account's mutations.
type Deps struct {
	Toolkit  core.XApiClient
	Store    core.Storer
	Registry *Registry
	Policy   Policy
	Safety   SafetyTunables
}

// Status is the terminal outcome of a Dispatch call.
type Status string

const (
	Executed         Status = "executed"
	RoutedToApproval Status = "routed_to_approval"
	DryRun           Status = "dry_run"
	Denied           Status = "denied"
)

// Outcome is the gateway's result for a single mutation request.
type Outcome struct {
	Status        Status
	CorrelationID string
	Result        any
	ApprovalID    string
	DeniedCode    core.Code
	Reason        string
	RateLimitReset time.Time
}

// Request is one mutation request passed to Dispatch.
type Request struct {
	ToolName      string
	Params        Params
	AccountID     string
	AuthorID      string // the tweet/user author this mutation concerns, for safety gates
	OperatingMode policy.OperatingMode
	DraftID       string // optional: links the audit row back to a Draft
	SkipApproval  bool   // true only for the approval_poster executing an already-approved item
}

// Gateway serializes mutation dispatch per account — deterministic,
// single-threaded per account — and drives the classify→idempotency→policy→
// safety→execute→audit pipeline.
type Gateway struct {
	deps Deps

	// acctLocks holds one *sync.Mutex per account: a per-key sync.Map with
	// lazily-created *sync.Mutex values, so locking never blocks on a
	// global map mutex.
	acctLocks sync.Map
}

// New builds a Gateway over the given deps.
func New(deps Deps) *Gateway {
	return &Gateway{deps: deps}
}

func (g *Gateway) lockFor(accountID string) *sync.Mutex {
	v, _ := g.acctLocks.LoadOrStore(accountID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Dispatch runs a single mutation request through the full pipeline.
func (g *Gateway) Dispatch(ctx context.Context, req Request) (Outcome, error) {
	mu := g.lockFor(req.AccountID)
	mu.Lock()
	defer mu.Unlock()

	spec, ok := g.deps.Registry.Lookup(req.ToolName)
	if !ok {
		return Outcome{Status: Denied, DeniedCode: core.CodeInvalidInput, Reason: "unknown_tool"}, nil
	}

	correlationID := uuid.NewString()
	now := time.Now().UTC()

	hash, err := idempotencyHash(req.ToolName, req.AccountID, req.Params, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("compute idempotency hash: %w", err)
	}
	if prior, found, err := g.deps.Store.FindAuditByHash(ctx, hash, now.Add(-idempotencyWindow)); err != nil {
		return Outcome{}, fmt.Errorf("idempotency lookup: %w", err)
	} else if found && prior.Outcome == string(Executed) {
		var result any
		if prior.ResultJSON.Valid && prior.ResultJSON.V != "" {
			if err := json.Unmarshal([]byte(prior.ResultJSON.V), &result); err != nil {
				return Outcome{}, fmt.Errorf("decode replayed result: %w", err)
			}
		}
		return Outcome{Status: Executed, CorrelationID: prior.CorrelationID, Result: result}, nil
	}

	paramsJSON, err := json.Marshal(req.Params)
	if err != nil {
		return Outcome{}, fmt.Errorf("marshal params: %w", err)
	}

	audit := core.MutationAuditRecord{
		ID:              ulid.Make().String(),
		CorrelationID:   correlationID,
		AccountID:       req.AccountID,
		ToolName:        req.ToolName,
		Category:        spec.Category,
		RequestFamily:   spec.Family,
		ParamsJSON:      string(paramsJSON),
		IdempotencyHash: hash,
		CreatedAt:       now,
	}
	if req.DraftID != "" {
		audit.DraftID = types.NewNull(req.DraftID)
	}
	if req.AuthorID != "" {
		audit.AuthorID = types.NewNull(req.AuthorID)
	}
	if spec.TargetParam != "" {
		if targetID, _ := req.Params[spec.TargetParam].(string); targetID != "" {
			audit.TargetID = types.NewNull(targetID)
		}
	}
	if spec.TextParam != "" {
		if text, _ := req.Params[spec.TextParam].(string); text != "" {
			audit.NormalizedText = types.NewNull(normalize(text))
		}
	}

	if isBlocked(req.ToolName, g.deps.Policy.BlockedTools) {
		return g.denyAndAudit(ctx, audit, core.CodePolicyDeniedBlocked, "policy_denied_blocked", time.Time{})
	}

	if g.deps.Policy.MaxMutationsPerHour > 0 {
		hourStart := now.Truncate(time.Hour)
		count, err := g.deps.Store.CountExecutedSince(ctx, req.AccountID, hourStart)
		if err != nil {
			return Outcome{}, fmt.Errorf("count hourly mutations: %w", err)
		}
		if count >= g.deps.Policy.MaxMutationsPerHour {
			reset := hourStart.Add(time.Hour)
			return g.denyAndAudit(ctx, audit, core.CodePolicyDeniedRateLimited, "policy_denied_rate_limited", reset)
		}
	}

	needsApproval := !req.SkipApproval && (isBlocked(req.ToolName, g.deps.Policy.RequireApprovalFor) ||
		req.OperatingMode.RequiresApproval() ||
		g.deps.Policy.ApprovalModeOn)
	if needsApproval {
		return g.routeToApproval(ctx, req, audit)
	}

	if g.deps.Policy.DryRunMutations {
		audit.Outcome = string(DryRun)
		if err := g.deps.Store.PutAudit(ctx, audit); err != nil {
			return Outcome{}, fmt.Errorf("audit dry run: %w", err)
		}
		return Outcome{Status: DryRun, CorrelationID: correlationID, Result: req.Params}, nil
	}

	if spec.TextParam != "" || spec.TargetParam != "" {
		text, _ := req.Params[spec.TextParam].(string)
		targetID, _ := req.Params[spec.TargetParam].(string)
		sc := g.safetyContext(req.AccountID, req.AuthorID, targetID, text, now)
		if err := scoring.Evaluate(ctx, text, sc); err != nil {
			var deferred *scoring.Deferred
			if errors.As(err, &deferred) {
				audit.Outcome = string(Denied)
				audit.PolicyDecision = types.NewNull("deferred_active_hours")
				if auditErr := g.deps.Store.PutAudit(ctx, audit); auditErr != nil {
					return Outcome{}, fmt.Errorf("audit deferred: %w", auditErr)
				}
				return Outcome{Status: Denied, CorrelationID: correlationID, DeniedCode: core.CodeSafetyRejected, Reason: "deferred_active_hours"}, nil
			}
			var coreErr *core.Error
			decision := "safety_rejected"
			if errors.As(err, &coreErr) {
				decision = coreErr.PolicyDecision
			}
			return g.denyAndAudit(ctx, audit, core.CodeSafetyRejected, decision, time.Time{})
		}
	}

	start := time.Now()
	result, execErr := spec.Execute(ctx, g.deps.Toolkit, req.Params)
	audit.LatencyMS = time.Since(start).Milliseconds()

	if execErr != nil {
		// Preserve the toolkit's own classification (x_rate_limited,
		// x_auth_expired, ...) when it already returned a typed *core.Error;
		// only unclassified errors get wrapped as x_api_error.
		wrapped, ok := execErr.(*core.Error)
		if !ok {
			wrapped = core.Wrap(core.CodeXAPIError, "execute "+req.ToolName, execErr)
		}
		audit.Outcome = "error"
		audit.ErrorCode = types.NewNull(string(wrapped.Code))
		if auditErr := g.deps.Store.PutAudit(ctx, audit); auditErr != nil {
			return Outcome{}, fmt.Errorf("audit execution error: %w", auditErr)
		}
		return Outcome{Status: Denied, CorrelationID: correlationID, DeniedCode: wrapped.Code, Reason: wrapped.Message, RateLimitReset: wrapped.RateLimitReset}, wrapped
	}

	audit.Outcome = string(Executed)
	if result != nil {
		resultJSON, err := json.Marshal(result)
		if err != nil {
			return Outcome{}, fmt.Errorf("marshal result: %w", err)
		}
		audit.ResultJSON = types.NewNull(string(resultJSON))
	}
	if err := g.deps.Store.PutAudit(ctx, audit); err != nil {
		return Outcome{}, fmt.Errorf("audit success: %w", err)
	}

	return Outcome{Status: Executed, CorrelationID: correlationID, Result: result}, nil
}

func (g *Gateway) routeToApproval(ctx context.Context, req Request, audit core.MutationAuditRecord) (Outcome, error) {
	now := time.Now().UTC()
	item := core.ApprovalQueueItem{
		ID:              ulid.Make().String(),
		AccountID:       req.AccountID,
		ActionKind:      req.ToolName,
		PayloadSnapshot: audit.ParamsJSON,
		Status:          core.ApprovalPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.DraftID != "" {
		item.DraftID = types.NewNull(req.DraftID)
	}

	err := g.deps.Store.WithTx(ctx, func(ctx context.Context, tx core.Storer) error {
		if err := tx.PutApproval(ctx, item); err != nil {
			return err
		}
		audit.Outcome = string(RoutedToApproval)
		return tx.PutAudit(ctx, audit)
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("route to approval: %w", err)
	}

	return Outcome{Status: RoutedToApproval, CorrelationID: audit.CorrelationID, ApprovalID: item.ID}, nil
}

func (g *Gateway) denyAndAudit(ctx context.Context, audit core.MutationAuditRecord, code core.Code, reason string, reset time.Time) (Outcome, error) {
	audit.Outcome = string(Denied)
	audit.PolicyDecision = types.NewNull(reason)
	if err := g.deps.Store.PutAudit(ctx, audit); err != nil {
		return Outcome{}, fmt.Errorf("audit denial: %w", err)
	}
	return Outcome{Status: Denied, CorrelationID: audit.CorrelationID, DeniedCode: code, Reason: reason, RateLimitReset: reset}, nil
}

func (g *Gateway) safetyContext(accountID, authorID, targetID, text string, now time.Time) scoring.SafetyContext {
	loc := g.deps.Safety.Location
	if loc == nil {
		loc = time.UTC
	}
	return scoring.SafetyContext{
		AccountID:        accountID,
		AuthorID:         authorID,
		TargetID:         targetID,
		NormalizedText:   normalize(text),
		Now:              now,
		ActiveHoursStart: g.deps.Safety.ActiveHoursStart,
		ActiveHoursEnd:   g.deps.Safety.ActiveHoursEnd,
		Location:         loc,

		BannedPhrases:   g.deps.Safety.BannedPhrases,
		PerAuthorPerDay: g.deps.Safety.PerAuthorPerDay,
		CooldownMinutes: g.deps.Safety.CooldownMinutes,

		RepliesTodayByAuthor: func(ctx context.Context, accountID, authorID string, day time.Time) (int, error) {
			dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
			return g.deps.Store.CountRepliesToAuthorToday(ctx, accountID, authorID, dayStart)
		},
		LastMutationToTarget: g.deps.Store.LastMutationToTarget,
		DuplicateExists:      g.deps.Store.FindDuplicateText,
	}
}

func isBlocked(name string, list []string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

// idempotencyHash hashes (tool_name, canonicalized params, account_id,
// minute-bucket). json.Marshal on a map[string]any already sorts keys, which
// gives us canonicalization for free.
func idempotencyHash(toolName, accountID string, params Params, now time.Time) (string, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	bucket := now.UTC().Truncate(time.Minute).Format(time.RFC3339)
	sum := sha256.Sum256([]byte(toolName + "|" + string(paramsJSON) + "|" + accountID + "|" + bucket))
	return hex.EncodeToString(sum[:]), nil
}

// normalize is the canonical form compared against the 7-day dedup window:
// lowercased, whitespace-collapsed. Duplicated from the workflow package's
// identical helper since neither package imports the other.
func normalize(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	return strings.Join(fields, " ")
}
