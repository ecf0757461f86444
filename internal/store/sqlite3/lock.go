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

// staleLockAfter is how long a process_lock row can go without a heartbeat
// before a different owner is allowed to take over (single-runner lock).
const staleLockAfter = 30 * time.Second

// AcquireProcessLock claims the single process_lock row for owner. It
// succeeds if the row doesn't exist, is already held by owner, or its last
// heartbeat is older than staleLockAfter (the prior runner is presumed dead).
func (s *Store) AcquireProcessLock(ctx context.Context, owner string) error {
	now := time.Now().UTC()

	query, _, err := s.goqu.From(s.tables.processLock).
		Select("owner", "heartbeat_at").
		Where(goqu.I("id").Eq(1)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build lock select query: %w", err)
	}

	var existingOwner, heartbeatAt string
	err = s.conn.QueryRowContext(ctx, query).Scan(&existingOwner, &heartbeatAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		insertQuery, _, buildErr := s.goqu.Insert(s.tables.processLock).Rows(goqu.Record{
			"id": 1, "owner": owner,
			"acquired_at": now.Format(time.RFC3339), "heartbeat_at": now.Format(time.RFC3339),
		}).ToSQL()
		if buildErr != nil {
			return fmt.Errorf("build lock insert query: %w", buildErr)
		}
		if _, execErr := s.conn.ExecContext(ctx, insertQuery); execErr != nil {
			return fmt.Errorf("acquire process lock: %w", execErr)
		}
		return nil
	case err != nil:
		return fmt.Errorf("check process lock: %w", err)
	}

	lastHeartbeat, err := time.Parse(time.RFC3339, heartbeatAt)
	if err != nil {
		return fmt.Errorf("parse heartbeat_at: %w", err)
	}

	if existingOwner != owner && now.Sub(lastHeartbeat) < staleLockAfter {
		return core.NewError(core.CodeConflict, fmt.Sprintf("process lock held by %q", existingOwner))
	}

	updateQuery, _, err := s.goqu.Update(s.tables.processLock).Set(goqu.Record{
		"owner": owner, "acquired_at": now.Format(time.RFC3339), "heartbeat_at": now.Format(time.RFC3339),
	}).Where(goqu.I("id").Eq(1)).ToSQL()
	if err != nil {
		return fmt.Errorf("build lock update query: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, updateQuery); err != nil {
		return fmt.Errorf("take over process lock: %w", err)
	}
	return nil
}

func (s *Store) ReleaseProcessLock(ctx context.Context, owner string) error {
	query, _, err := s.goqu.Delete(s.tables.processLock).
		Where(goqu.I("id").Eq(1), goqu.I("owner").Eq(owner)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build lock release query: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("release process lock: %w", err)
	}
	return nil
}

func (s *Store) Heartbeat(ctx context.Context, owner string) error {
	query, _, err := s.goqu.Update(s.tables.processLock).
		Set(goqu.Record{"heartbeat_at": time.Now().UTC().Format(time.RFC3339)}).
		Where(goqu.I("id").Eq(1), goqu.I("owner").Eq(owner)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build heartbeat query: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("heartbeat process lock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.NewError(core.CodeConflict, "process lock not held by this owner")
	}
	return nil
}
