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

var draftColumns = []any{"draft_id", "account_id", "content_type", "content", "thread_blocks", "status",
	"scheduled_for", "in_reply_to_tweet_id", "media_paths", "source_node_id", "last_approval_id", "created_at", "updated_at"}

func scanDraft(scan func(...any) error) (core.Draft, error) {
	var (
		id, accountID, contentType, content, threadBlocksJSON, status string
		scheduledFor                                                  sql.NullTime
		inReplyTo, mediaPathsJSON, sourceNodeID, lastApprovalID        sql.NullString
		createdAt, updatedAt                                          time.Time
	)
	if err := scan(&id, &accountID, &contentType, &content, &threadBlocksJSON, &status,
		&scheduledFor, &inReplyTo, &mediaPathsJSON, &sourceNodeID, &lastApprovalID, &createdAt, &updatedAt); err != nil {
		return core.Draft{}, err
	}

	var threadBlocks, mediaPaths []string
	if threadBlocksJSON != "" {
		if err := json.Unmarshal([]byte(threadBlocksJSON), &threadBlocks); err != nil {
			return core.Draft{}, fmt.Errorf("unmarshal thread_blocks: %w", err)
		}
	}
	if mediaPathsJSON.Valid && mediaPathsJSON.String != "" {
		if err := json.Unmarshal([]byte(mediaPathsJSON.String), &mediaPaths); err != nil {
			return core.Draft{}, fmt.Errorf("unmarshal media_paths: %w", err)
		}
	}

	d := core.Draft{
		ID:           id,
		AccountID:    accountID,
		ContentType:  core.ContentType(contentType),
		Content:      content,
		ThreadBlocks: types.Slice[string](threadBlocks),
		Status:       core.DraftStatus(status),
		MediaPaths:   types.Slice[string](mediaPaths),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
	if scheduledFor.Valid {
		d.ScheduledFor = types.NewNull(types.NewTime(scheduledFor.Time))
	}
	if inReplyTo.Valid {
		d.InReplyToTweetID = types.NewNull(inReplyTo.String)
	}
	if sourceNodeID.Valid {
		d.SourceNodeID = types.NewNull(sourceNodeID.String)
	}
	if lastApprovalID.Valid {
		d.LastApprovalID = types.NewNull(lastApprovalID.String)
	}

	return d, nil
}

func draftToRecord(d core.Draft) (goqu.Record, error) {
	threadBlocksJSON, err := json.Marshal([]string(d.ThreadBlocks))
	if err != nil {
		return nil, fmt.Errorf("marshal thread_blocks: %w", err)
	}
	mediaPathsJSON, err := json.Marshal([]string(d.MediaPaths))
	if err != nil {
		return nil, fmt.Errorf("marshal media_paths: %w", err)
	}

	var scheduledFor, inReplyTo, sourceNodeID, lastApprovalID any
	if d.ScheduledFor.Valid {
		scheduledFor = d.ScheduledFor.V.Time
	}
	if d.InReplyToTweetID.Valid {
		inReplyTo = d.InReplyToTweetID.V
	}
	if d.SourceNodeID.Valid {
		sourceNodeID = d.SourceNodeID.V
	}
	if d.LastApprovalID.Valid {
		lastApprovalID = d.LastApprovalID.V
	}

	return goqu.Record{
		"draft_id":             d.ID,
		"account_id":           d.AccountID,
		"content_type":         string(d.ContentType),
		"content":              d.Content,
		"thread_blocks":        string(threadBlocksJSON),
		"status":               string(d.Status),
		"scheduled_for":        scheduledFor,
		"in_reply_to_tweet_id": inReplyTo,
		"media_paths":          string(mediaPathsJSON),
		"source_node_id":       sourceNodeID,
		"last_approval_id":     lastApprovalID,
		"created_at":           d.CreatedAt,
		"updated_at":           d.UpdatedAt,
	}, nil
}

func (s *Store) PutDraft(ctx context.Context, d core.Draft) error {
	if d.ID == "" {
		d.ID = ulid.Make().String()
	}

	record, err := draftToRecord(d)
	if err != nil {
		return err
	}

	query, _, err := s.goqu.Insert(s.tables.drafts).Rows(record).
		OnConflict(goqu.DoUpdate("draft_id", record)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert draft query: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("upsert draft %q: %w", d.ID, err)
	}
	return nil
}

func (s *Store) GetDraft(ctx context.Context, id string) (core.Draft, error) {
	query, _, err := s.goqu.From(s.tables.drafts).Select(draftColumns...).Where(goqu.I("draft_id").Eq(id)).ToSQL()
	if err != nil {
		return core.Draft{}, fmt.Errorf("build get draft query: %w", err)
	}

	d, err := scanDraft(s.conn.QueryRowContext(ctx, query).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Draft{}, core.NewError(core.CodeNotFound, "draft not found")
	}
	if err != nil {
		return core.Draft{}, fmt.Errorf("get draft %q: %w", id, err)
	}
	return d, nil
}

func (s *Store) ListDraftsDue(ctx context.Context, accountID string, now time.Time) ([]core.Draft, error) {
	query, _, err := s.goqu.From(s.tables.drafts).
		Select(draftColumns...).
		Where(
			goqu.I("account_id").Eq(accountID),
			goqu.I("status").Eq(string(core.DraftStatusScheduled)),
			goqu.I("scheduled_for").Lte(now),
		).
		Order(goqu.I("scheduled_for").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build drafts due query: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list drafts due: %w", err)
	}
	defer rows.Close()

	var result []core.Draft
	for rows.Next() {
		d, err := scanDraft(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan draft row: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) DeleteDraft(ctx context.Context, id string) error {
	query, _, err := s.goqu.Delete(s.tables.drafts).Where(goqu.I("draft_id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete draft query: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete draft %q: %w", id, err)
	}
	return nil
}
