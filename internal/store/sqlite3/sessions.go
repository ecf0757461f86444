package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/aramirez087/tuitbot/internal/core"
)

func (s *Store) PutSession(ctx context.Context, session core.Session) error {
	query, _, err := s.goqu.Insert(s.tables.sessions).Rows(goqu.Record{
		"session_id": session.ID,
		"created_at": session.CreatedAt.Format(time.RFC3339),
		"expires_at": session.ExpiresAt.Format(time.RFC3339),
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert session query: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, hash string) (core.Session, error) {
	query, _, err := s.goqu.From(s.tables.sessions).
		Select("session_id", "created_at", "expires_at").
		Where(goqu.I("session_id").Eq(hash)).
		ToSQL()
	if err != nil {
		return core.Session{}, fmt.Errorf("build get session query: %w", err)
	}

	var id, createdAt, expiresAt string
	err = s.conn.QueryRowContext(ctx, query).Scan(&id, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, core.NewError(core.CodeNotFound, "session not found")
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("get session: %w", err)
	}

	createdParsed, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return core.Session{}, fmt.Errorf("parse created_at: %w", err)
	}
	expiresParsed, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return core.Session{}, fmt.Errorf("parse expires_at: %w", err)
	}

	return core.Session{ID: id, CreatedAt: createdParsed, ExpiresAt: expiresParsed}, nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	query, _, err := s.goqu.Delete(s.tables.sessions).
		Where(goqu.I("expires_at").Lt(now.Format(time.RFC3339))).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build delete expired sessions query: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}
