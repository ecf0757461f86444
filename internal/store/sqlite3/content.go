package sqlite3

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

var contentNodeColumns = []any{"node_id", "source_id", "relative_path", "content_hash", "title", "tags", "body", "status", "created_at", "updated_at"}

func scanContentNode(scan func(...any) error) (core.ContentNode, error) {
	var (
		id, sourceID, relativePath, contentHash string
		title                                    sql.NullString
		tagsJSON, body, status                   string
		createdAt, updatedAt                     string
	)
	if err := scan(&id, &sourceID, &relativePath, &contentHash, &title, &tagsJSON, &body, &status, &createdAt, &updatedAt); err != nil {
		return core.ContentNode{}, err
	}

	var tags []string
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			return core.ContentNode{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}

	createdParsed, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return core.ContentNode{}, fmt.Errorf("parse created_at: %w", err)
	}
	updatedParsed, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return core.ContentNode{}, fmt.Errorf("parse updated_at: %w", err)
	}

	n := core.ContentNode{
		ID:           id,
		SourceID:     sourceID,
		RelativePath: relativePath,
		ContentHash:  contentHash,
		Tags:         types.Slice[string](tags),
		Body:         body,
		Status:       core.NodeStatus(status),
		CreatedAt:    createdParsed,
		UpdatedAt:    updatedParsed,
	}
	if title.Valid {
		n.Title = types.NewNull(title.String)
	}
	return n, nil
}

func contentNodeToRecord(n core.ContentNode) (goqu.Record, error) {
	tagsJSON, err := json.Marshal([]string(n.Tags))
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	var title any
	if n.Title.Valid {
		title = n.Title.V
	}

	return goqu.Record{
		"node_id":       n.ID,
		"source_id":     n.SourceID,
		"relative_path": n.RelativePath,
		"content_hash":  n.ContentHash,
		"title":         title,
		"tags":          string(tagsJSON),
		"body":          n.Body,
		"status":        string(n.Status),
		"created_at":    n.CreatedAt.Format(time.RFC3339),
		"updated_at":    n.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// UpsertContentNode is keyed on (source_id, relative_path): a changed
// content_hash overwrites body/tags/title and resets status to pending; an
// unchanged hash is a no-op so the seed worker doesn't reprocess stale content.
func (s *Store) UpsertContentNode(ctx context.Context, n core.ContentNode) (bool, error) {
	existsQuery, _, err := s.goqu.From(s.tables.contentNodes).
		Select("node_id", "content_hash").
		Where(goqu.I("source_id").Eq(n.SourceID), goqu.I("relative_path").Eq(n.RelativePath)).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var existingID, existingHash string
	err = s.conn.QueryRowContext(ctx, existsQuery).Scan(&existingID, &existingHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if n.ID == "" {
			n.ID = ulid.Make().String()
		}
		record, buildErr := contentNodeToRecord(n)
		if buildErr != nil {
			return false, buildErr
		}
		insertQuery, _, buildErr := s.goqu.Insert(s.tables.contentNodes).Rows(record).ToSQL()
		if buildErr != nil {
			return false, fmt.Errorf("build insert content node query: %w", buildErr)
		}
		if _, execErr := s.conn.ExecContext(ctx, insertQuery); execErr != nil {
			return false, fmt.Errorf("insert content node: %w", execErr)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("check content node existence: %w", err)
	case existingHash == n.ContentHash:
		return false, nil
	default:
		n.ID = existingID
		record, buildErr := contentNodeToRecord(n)
		if buildErr != nil {
			return false, buildErr
		}
		record["status"] = string(core.NodePending)
		updateQuery, _, buildErr := s.goqu.Update(s.tables.contentNodes).Set(record).Where(goqu.I("node_id").Eq(existingID)).ToSQL()
		if buildErr != nil {
			return false, fmt.Errorf("build update content node query: %w", buildErr)
		}
		if _, execErr := s.conn.ExecContext(ctx, updateQuery); execErr != nil {
			return false, fmt.Errorf("update content node: %w", execErr)
		}
		return false, nil
	}
}

func (s *Store) ListNodesByStatus(ctx context.Context, status core.NodeStatus) ([]core.ContentNode, error) {
	query, _, err := s.goqu.From(s.tables.contentNodes).
		Select(contentNodeColumns...).
		Where(goqu.I("status").Eq(string(status))).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list nodes query: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list nodes by status: %w", err)
	}
	defer rows.Close()

	var result []core.ContentNode
	for rows.Next() {
		n, err := scanContentNode(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan content node row: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (s *Store) MarkNodeProcessed(ctx context.Context, id string) error {
	query, _, err := s.goqu.Update(s.tables.contentNodes).
		Set(goqu.Record{"status": string(core.NodeProcessed), "updated_at": time.Now().UTC().Format(time.RFC3339)}).
		Where(goqu.I("node_id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build mark node processed query: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("mark node %q processed: %w", id, err)
	}
	return nil
}

func (s *Store) PutDraftSeed(ctx context.Context, seed core.DraftSeed) error {
	if seed.ID == "" {
		seed.ID = ulid.Make().String()
	}

	query, _, err := s.goqu.Insert(s.tables.draftSeeds).Rows(goqu.Record{
		"seed_id":    seed.ID,
		"node_id":    seed.NodeID,
		"hook_text":  seed.HookText,
		"angle":      seed.Angle,
		"archetype":  seed.Archetype,
		"score":      seed.Score,
		"created_at": seed.CreatedAt.Format(time.RFC3339),
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert draft seed query: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("insert draft seed: %w", err)
	}
	return nil
}

func (s *Store) ListSeeds(ctx context.Context, nodeID string) ([]core.DraftSeed, error) {
	query, _, err := s.goqu.From(s.tables.draftSeeds).
		Select("seed_id", "node_id", "hook_text", "angle", "archetype", "score", "created_at").
		Where(goqu.I("node_id").Eq(nodeID)).
		Order(goqu.I("score").Desc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list seeds query: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list seeds: %w", err)
	}
	defer rows.Close()

	var result []core.DraftSeed
	for rows.Next() {
		var seed core.DraftSeed
		var createdAt string
		if err := rows.Scan(&seed.ID, &seed.NodeID, &seed.HookText, &seed.Angle, &seed.Archetype, &seed.Score, &createdAt); err != nil {
			return nil, fmt.Errorf("scan draft seed row: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		seed.CreatedAt = parsed
		result = append(result, seed)
	}
	return result, rows.Err()
}
