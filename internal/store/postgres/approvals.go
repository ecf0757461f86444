package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/oklog/ulid/v2"
	"github.com/worldline-go/types"

	"github.com/aramirez087/tuitbot/internal/core"
)

var approvalColumns = []any{"approval_id", "account_id", "action_kind", "draft_id", "target_refs",
	"payload_snapshot", "status", "rejection_reason", "created_at", "updated_at"}

func scanApproval(scan func(...any) error) (core.ApprovalQueueItem, error) {
	var (
		id, accountID, actionKind               string
		draftID, rejectionReason                 sql.NullString
		targetRefsJSON, payloadSnapshot, status string
		createdAt, updatedAt                     time.Time
	)
	if err := scan(&id, &accountID, &actionKind, &draftID, &targetRefsJSON, &payloadSnapshot, &status, &rejectionReason, &createdAt, &updatedAt); err != nil {
		return core.ApprovalQueueItem{}, err
	}

	var targetRefs []string
	if targetRefsJSON != "" {
		if err := json.Unmarshal([]byte(targetRefsJSON), &targetRefs); err != nil {
			return core.ApprovalQueueItem{}, fmt.Errorf("unmarshal target_refs: %w", err)
		}
	}

	item := core.ApprovalQueueItem{
		ID:              id,
		AccountID:       accountID,
		ActionKind:      actionKind,
		TargetRefs:      types.Slice[string](targetRefs),
		PayloadSnapshot: payloadSnapshot,
		Status:          core.ApprovalStatus(status),
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}
	if draftID.Valid {
		item.DraftID = types.NewNull(draftID.String)
	}
	if rejectionReason.Valid {
		item.RejectionReason = types.NewNull(rejectionReason.String)
	}
	return item, nil
}

func approvalToRecord(item core.ApprovalQueueItem) (goqu.Record, error) {
	targetRefsJSON, err := json.Marshal([]string(item.TargetRefs))
	if err != nil {
		return nil, fmt.Errorf("marshal target_refs: %w", err)
	}

	var draftID, rejectionReason any
	if item.DraftID.Valid {
		draftID = item.DraftID.V
	}
	if item.RejectionReason.Valid {
		rejectionReason = item.RejectionReason.V
	}

	return goqu.Record{
		"approval_id":      item.ID,
		"account_id":       item.AccountID,
		"action_kind":      item.ActionKind,
		"draft_id":         draftID,
		"target_refs":      string(targetRefsJSON),
		"payload_snapshot": item.PayloadSnapshot,
		"status":           string(item.Status),
		"rejection_reason": rejectionReason,
		"created_at":       item.CreatedAt,
		"updated_at":       item.UpdatedAt,
	}, nil
}

func (s *Store) PutApproval(ctx context.Context, item core.ApprovalQueueItem) error {
	if item.ID == "" {
		item.ID = ulid.Make().String()
	}

	record, err := approvalToRecord(item)
	if err != nil {
		return err
	}

	query, _, err := s.goqu.Insert(s.tables.approvalQueue).Rows(record).
		OnConflict(goqu.DoUpdate("approval_id", record)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert approval query: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("upsert approval %q: %w", item.ID, err)
	}
	return nil
}

func (s *Store) GetApproval(ctx context.Context, id string) (core.ApprovalQueueItem, error) {
	query, _, err := s.goqu.From(s.tables.approvalQueue).Select(approvalColumns...).Where(goqu.I("approval_id").Eq(id)).ToSQL()
	if err != nil {
		return core.ApprovalQueueItem{}, fmt.Errorf("build get approval query: %w", err)
	}

	item, err := scanApproval(s.conn.QueryRowContext(ctx, query).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ApprovalQueueItem{}, core.NewError(core.CodeNotFound, "approval not found")
	}
	if err != nil {
		return core.ApprovalQueueItem{}, fmt.Errorf("get approval %q: %w", id, err)
	}
	return item, nil
}

func (s *Store) ListApprovals(ctx context.Context, status core.ApprovalStatus) ([]core.ApprovalQueueItem, error) {
	query, _, err := s.goqu.From(s.tables.approvalQueue).
		Select(approvalColumns...).
		Where(goqu.I("status").Eq(string(status))).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list approvals query: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var result []core.ApprovalQueueItem
	for rows.Next() {
		item, err := scanApproval(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan approval row: %w", err)
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// OldestApproved returns the longest-waiting approved item for accountID,
// the FIFO dequeue the approval-poster loop uses.
func (s *Store) OldestApproved(ctx context.Context, accountID string) (core.ApprovalQueueItem, bool, error) {
	query, _, err := s.goqu.From(s.tables.approvalQueue).
		Select(approvalColumns...).
		Where(
			goqu.I("account_id").Eq(accountID),
			goqu.I("status").Eq(string(core.ApprovalApproved)),
		).
		Order(goqu.I("created_at").Asc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return core.ApprovalQueueItem{}, false, fmt.Errorf("build oldest approved query: %w", err)
	}

	item, err := scanApproval(s.conn.QueryRowContext(ctx, query).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ApprovalQueueItem{}, false, nil
	}
	if err != nil {
		return core.ApprovalQueueItem{}, false, fmt.Errorf("get oldest approved: %w", err)
	}
	return item, true, nil
}
