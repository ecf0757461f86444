package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/oklog/ulid/v2"
	"github.com/worldline-go/types"

	"github.com/aramirez087/tuitbot/internal/core"
)

var auditColumns = []any{"audit_id", "correlation_id", "account_id", "tool_name", "category", "request_family",
	"params_json", "policy_decision", "outcome", "error_code", "latency_ms", "idempotency_hash", "draft_id",
	"author_id", "target_id", "normalized_text", "result_json", "created_at"}

func scanAudit(scan func(...any) error) (core.MutationAuditRecord, error) {
	var (
		id, correlationID, accountID, toolName, category, requestFamily string
		paramsJSON                                                      string
		policyDecision, errorCode, draftID                              sql.NullString
		authorID, targetID, normalizedText, resultJSON                  sql.NullString
		outcome                                                         string
		latencyMS                                                       int64
		idempotencyHash                                                 string
		createdAt                                                       time.Time
	)
	if err := scan(&id, &correlationID, &accountID, &toolName, &category, &requestFamily,
		&paramsJSON, &policyDecision, &outcome, &errorCode, &latencyMS, &idempotencyHash, &draftID,
		&authorID, &targetID, &normalizedText, &resultJSON, &createdAt); err != nil {
		return core.MutationAuditRecord{}, err
	}

	rec := core.MutationAuditRecord{
		ID:              id,
		CorrelationID:   correlationID,
		AccountID:       accountID,
		ToolName:        toolName,
		Category:        core.ToolCategory(category),
		RequestFamily:   core.RequestFamily(requestFamily),
		ParamsJSON:      paramsJSON,
		Outcome:         outcome,
		LatencyMS:       latencyMS,
		IdempotencyHash: idempotencyHash,
		CreatedAt:       createdAt,
	}
	if policyDecision.Valid {
		rec.PolicyDecision = types.NewNull(policyDecision.String)
	}
	if errorCode.Valid {
		rec.ErrorCode = types.NewNull(errorCode.String)
	}
	if draftID.Valid {
		rec.DraftID = types.NewNull(draftID.String)
	}
	if authorID.Valid {
		rec.AuthorID = types.NewNull(authorID.String)
	}
	if targetID.Valid {
		rec.TargetID = types.NewNull(targetID.String)
	}
	if normalizedText.Valid {
		rec.NormalizedText = types.NewNull(normalizedText.String)
	}
	if resultJSON.Valid {
		rec.ResultJSON = types.NewNull(resultJSON.String)
	}
	return rec, nil
}

func auditToRecord(rec core.MutationAuditRecord) goqu.Record {
	var policyDecision, errorCode, draftID, authorID, targetID, normalizedText, resultJSON any
	if rec.PolicyDecision.Valid {
		policyDecision = rec.PolicyDecision.V
	}
	if rec.ErrorCode.Valid {
		errorCode = rec.ErrorCode.V
	}
	if rec.DraftID.Valid {
		draftID = rec.DraftID.V
	}
	if rec.AuthorID.Valid {
		authorID = rec.AuthorID.V
	}
	if rec.TargetID.Valid {
		targetID = rec.TargetID.V
	}
	if rec.NormalizedText.Valid {
		normalizedText = rec.NormalizedText.V
	}
	if rec.ResultJSON.Valid {
		resultJSON = rec.ResultJSON.V
	}

	return goqu.Record{
		"audit_id":         rec.ID,
		"correlation_id":   rec.CorrelationID,
		"account_id":       rec.AccountID,
		"tool_name":        rec.ToolName,
		"category":         string(rec.Category),
		"request_family":   string(rec.RequestFamily),
		"params_json":      rec.ParamsJSON,
		"policy_decision":  policyDecision,
		"outcome":          rec.Outcome,
		"error_code":       errorCode,
		"latency_ms":       rec.LatencyMS,
		"idempotency_hash": rec.IdempotencyHash,
		"draft_id":         draftID,
		"author_id":        authorID,
		"target_id":        targetID,
		"normalized_text":  normalizedText,
		"result_json":      resultJSON,
		"created_at":       rec.CreatedAt,
	}
}

// PutAudit inserts exactly once; audit rows are immutable and never updated.
func (s *Store) PutAudit(ctx context.Context, rec core.MutationAuditRecord) error {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}

	query, _, err := s.goqu.Insert(s.tables.mutationAudit).Rows(auditToRecord(rec)).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert audit query: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("insert audit %q: %w", rec.ID, err)
	}
	return nil
}

// FindAuditByHash implements the idempotency check: an identical hash within
// the current wall-clock-minute bucket replays the prior outcome instead of
// re-executing the mutation.
func (s *Store) FindAuditByHash(ctx context.Context, hash string, since time.Time) (core.MutationAuditRecord, bool, error) {
	query, _, err := s.goqu.From(s.tables.mutationAudit).
		Select(auditColumns...).
		Where(
			goqu.I("idempotency_hash").Eq(hash),
			goqu.I("created_at").Gte(since),
		).
		Order(goqu.I("created_at").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return core.MutationAuditRecord{}, false, fmt.Errorf("build find audit query: %w", err)
	}

	rec, err := scanAudit(s.conn.QueryRowContext(ctx, query).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MutationAuditRecord{}, false, nil
	}
	if err != nil {
		return core.MutationAuditRecord{}, false, fmt.Errorf("find audit by hash: %w", err)
	}
	return rec, true, nil
}

// CountExecutedSince powers the hourly mutation cap.
func (s *Store) CountExecutedSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	query, _, err := s.goqu.From(s.tables.mutationAudit).
		Select(goqu.COUNT("audit_id")).
		Where(
			goqu.I("account_id").Eq(accountID),
			goqu.I("outcome").Eq("executed"),
			goqu.I("created_at").Gte(since),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count executed query: %w", err)
	}

	var count int
	if err := s.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count executed since: %w", err)
	}
	return count, nil
}

// FindDuplicateText backs the 7-day dedup gate: same author, same normalized
// outgoing text, both sides lowercased at write time so the comparison is an
// exact match rather than a case-sensitive LIKE.
func (s *Store) FindDuplicateText(ctx context.Context, accountID, authorID, normalizedText string, since time.Time) (bool, error) {
	query, _, err := s.goqu.From(s.tables.mutationAudit).
		Select(goqu.COUNT("audit_id")).
		Where(
			goqu.I("account_id").Eq(accountID),
			goqu.I("author_id").Eq(authorID),
			goqu.I("outcome").Eq("executed"),
			goqu.I("created_at").Gte(since),
			goqu.I("normalized_text").Eq(normalizedText),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build duplicate text query: %w", err)
	}

	var count int
	if err := s.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return false, fmt.Errorf("find duplicate text: %w", err)
	}
	return count > 0, nil
}

// CountRepliesToAuthorToday counts executed mutations aimed at authorID since
// dayStart, matched against the dedicated author_id column.
func (s *Store) CountRepliesToAuthorToday(ctx context.Context, accountID, authorID string, dayStart time.Time) (int, error) {
	query, _, err := s.goqu.From(s.tables.mutationAudit).
		Select(goqu.COUNT("audit_id")).
		Where(
			goqu.I("account_id").Eq(accountID),
			goqu.I("author_id").Eq(authorID),
			goqu.I("outcome").Eq("executed"),
			goqu.I("created_at").Gte(dayStart),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count replies to author query: %w", err)
	}

	var count int
	if err := s.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count replies to author: %w", err)
	}
	return count, nil
}

// LastMutationToTarget returns the most recent executed mutation timestamp
// against targetID, if any, matched against the dedicated target_id column.
func (s *Store) LastMutationToTarget(ctx context.Context, accountID, targetID string) (time.Time, bool, error) {
	query, _, err := s.goqu.From(s.tables.mutationAudit).
		Select("created_at").
		Where(
			goqu.I("account_id").Eq(accountID),
			goqu.I("target_id").Eq(targetID),
			goqu.I("outcome").Eq("executed"),
		).
		Order(goqu.I("created_at").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("build last mutation to target query: %w", err)
	}

	var createdAt time.Time
	err = s.conn.QueryRowContext(ctx, query).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last mutation to target: %w", err)
	}
	return createdAt, true, nil
}
