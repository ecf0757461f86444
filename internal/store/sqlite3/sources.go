package sqlite3

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
		"created_at":  src.CreatedAt.Format(time.RFC3339),
		"updated_at":  src.UpdatedAt.Format(time.RFC3339),
	}

	existsQuery, _, err := s.goqu.From(s.tables.sourceContexts).Select("source_id").Where(goqu.I("source_id").Eq(src.ID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build exists query: %w", err)
	}

	var existingID string
	err = s.conn.QueryRowContext(ctx, existsQuery).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		insertQuery, _, buildErr := s.goqu.Insert(s.tables.sourceContexts).Rows(record).ToSQL()
		if buildErr != nil {
			return fmt.Errorf("build insert source query: %w", buildErr)
		}
		if _, execErr := s.conn.ExecContext(ctx, insertQuery); execErr != nil {
			return fmt.Errorf("insert source %q: %w", src.ID, execErr)
		}
	case err != nil:
		return fmt.Errorf("check source existence: %w", err)
	default:
		updateQuery, _, buildErr := s.goqu.Update(s.tables.sourceContexts).Set(record).Where(goqu.I("source_id").Eq(src.ID)).ToSQL()
		if buildErr != nil {
			return fmt.Errorf("build update source query: %w", buildErr)
		}
		if _, execErr := s.conn.ExecContext(ctx, updateQuery); execErr != nil {
			return fmt.Errorf("update source %q: %w", src.ID, execErr)
		}
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
			src                   core.SourceContext
			typ, configJSON, status string
			cursor                sql.NullString
			createdAt, updatedAt  string
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
		createdParsed, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		updatedParsed, err := time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		src.CreatedAt = createdParsed
		src.UpdatedAt = updatedParsed
		result = append(result, src)
	}
	return result, rows.Err()
}
