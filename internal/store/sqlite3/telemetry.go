package sqlite3

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/oklog/ulid/v2"

	"github.com/aramirez087/tuitbot/internal/core"
)

func telemetryToRecord(rec core.McpTelemetryRecord) goqu.Record {
	var errorCode, policyDecision any
	if rec.ErrorCode.Valid {
		errorCode = rec.ErrorCode.V
	}
	if rec.PolicyDecision.Valid {
		policyDecision = rec.PolicyDecision.V
	}

	return goqu.Record{
		"telemetry_id":    rec.ID,
		"tool_name":       rec.ToolName,
		"category":        string(rec.Category),
		"latency_ms":      rec.LatencyMS,
		"success":         rec.Success,
		"error_code":      errorCode,
		"policy_decision": policyDecision,
		"mode":            rec.Mode,
		"created_at":      rec.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Store) PutTelemetry(ctx context.Context, rec core.McpTelemetryRecord) error {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}

	query, _, err := s.goqu.Insert(s.tables.mcpTelemetry).Rows(telemetryToRecord(rec)).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert telemetry query: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("insert telemetry %q: %w", rec.ID, err)
	}
	return nil
}

// PruneTelemetryOlderThan implements the retention sweep loop's telemetry
// deletion; mutation_audit is never touched by this sweep.
func (s *Store) PruneTelemetryOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query, _, err := s.goqu.Delete(s.tables.mcpTelemetry).
		Where(goqu.I("created_at").Lt(cutoff.Format(time.RFC3339))).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build prune telemetry query: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prune telemetry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}
