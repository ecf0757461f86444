package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

// IncrementRateLimit bumps and returns the new per-day counter for
// (accountID, date, kind), inserting the row with count 1 on first use.
func (s *Store) IncrementRateLimit(ctx context.Context, accountID, date, kind string) (int, error) {
	current, err := s.GetRateLimit(ctx, accountID, date, kind)
	if err != nil {
		return 0, err
	}

	next := current + 1
	existsQuery, _, err := s.goqu.From(s.tables.rateLimitUsage).
		Select("count").
		Where(goqu.I("account_id").Eq(accountID), goqu.I("date").Eq(date), goqu.I("kind").Eq(kind)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build exists query: %w", err)
	}

	var existingCount int
	err = s.conn.QueryRowContext(ctx, existsQuery).Scan(&existingCount)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		insertQuery, _, buildErr := s.goqu.Insert(s.tables.rateLimitUsage).Rows(goqu.Record{
			"account_id": accountID, "date": date, "kind": kind, "count": next,
		}).ToSQL()
		if buildErr != nil {
			return 0, fmt.Errorf("build insert rate limit query: %w", buildErr)
		}
		if _, execErr := s.conn.ExecContext(ctx, insertQuery); execErr != nil {
			return 0, fmt.Errorf("insert rate limit row: %w", execErr)
		}
	case err != nil:
		return 0, fmt.Errorf("check rate limit existence: %w", err)
	default:
		updateQuery, _, buildErr := s.goqu.Update(s.tables.rateLimitUsage).Set(goqu.Record{"count": next}).
			Where(goqu.I("account_id").Eq(accountID), goqu.I("date").Eq(date), goqu.I("kind").Eq(kind)).
			ToSQL()
		if buildErr != nil {
			return 0, fmt.Errorf("build update rate limit query: %w", buildErr)
		}
		if _, execErr := s.conn.ExecContext(ctx, updateQuery); execErr != nil {
			return 0, fmt.Errorf("update rate limit row: %w", execErr)
		}
	}

	return next, nil
}

func (s *Store) GetRateLimit(ctx context.Context, accountID, date, kind string) (int, error) {
	query, _, err := s.goqu.From(s.tables.rateLimitUsage).
		Select("count").
		Where(goqu.I("account_id").Eq(accountID), goqu.I("date").Eq(date), goqu.I("kind").Eq(kind)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build get rate limit query: %w", err)
	}

	var count int
	err = s.conn.QueryRowContext(ctx, query).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get rate limit: %w", err)
	}
	return count, nil
}
