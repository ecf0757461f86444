package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/oklog/ulid/v2"
	"github.com/worldline-go/types"

	"github.com/aramirez087/tuitbot/internal/core"
)

func (s *Store) PutSource(ctx context.Context, src core.SourceContext) error {
	if src.ID == "" {
		src.ID = ulid.Make().String()
	}

	var cursor any
	if src.Cursor.Valid {
		cursor = src.Cursor.V
	}

	record := goqu.Record{
		"source_id":   src.ID,
		"type":        src.Type,
		"config_json": src.ConfigJSON,
		"cursor":      cursor,
		"status":      string(src.Status),
		"created_at":  src.CreatedAt,
		"updated_at":  src.UpdatedAt,
	}

	query, _, err := s.goqu.Insert(s.tables.sourceContexts).Rows(record).
		OnConflict(goqu.DoUpdate("source_id", record)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert source query: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("upsert source %q: %w", src.ID, err)
	}
	return nil
}

func (s *Store) ListSources(ctx context.Context) ([]core.SourceContext, error) {
	query, _, err := s.goqu.From(s.tables.sourceContexts).
		Select("source_id", "type", "config_json", "cursor", "status", "created_at", "updated_at").
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list sources query: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var result []core.SourceContext
	for rows.Next() {
		var (
			src                     core.SourceContext
			typ, configJSON, status string
			cursor                  sql.NullString
			createdAt, updatedAt    time.Time
		)
		if err := rows.Scan(&src.ID, &typ, &configJSON, &cursor, &status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		src.Type = typ
		src.ConfigJSON = configJSON
		src.Status = core.SourceStatus(status)
		if cursor.Valid {
			src.Cursor = types.NewNull(cursor.String)
		}
		src.CreatedAt = createdAt
		src.UpdatedAt = updatedAt
		result = append(result, src)
	}
	return result, rows.Err()
}
