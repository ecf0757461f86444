// Package sqlite3 is the single-writer SQLite backend for core.Storer,
// the default store for desktop and self-host deployments.
package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aramirez087/tuitbot/internal/config"
	"github.com/aramirez087/tuitbot/internal/core"

	_ "modernc.org/sqlite"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
)

var DefaultTablePrefix = "tuitbot_"

// execer is the subset of *sql.DB / *sql.Tx that query methods need, so the
// same Store code path runs whether or not it's inside WithTx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a core.Storer backed by a single SQLite file. Writes go through a
// single connection (SQLite is single-writer); reads share the same pool
// since a bounded WAL reader pool buys little on top of file-level locking
// at Tuitbot's scale.
type Store struct {
	db     *sql.DB // non-nil only on the root Store; used for Close and BeginTx
	conn   execer
	goqu   *goqu.Database
	tables tableSet
	encKey []byte
}

type tableSet struct {
	accounts        string
	originalTweets  string
	drafts          string
	approvalQueue   string
	mutationAudit   string
	mcpTelemetry    string
	rateLimitUsage  string
	contentNodes    string
	draftSeeds      string
	sourceContexts  string
	sessions        string
	processLock     string
}

func newTableSet(prefix string) tableSet {
	return tableSet{
		accounts:       prefix + "accounts",
		originalTweets: prefix + "original_tweets",
		drafts:         prefix + "drafts",
		approvalQueue:  prefix + "approval_queue",
		mutationAudit:  prefix + "mutation_audit",
		mcpTelemetry:   prefix + "mcp_telemetry",
		rateLimitUsage: prefix + "rate_limit_usage",
		contentNodes:   prefix + "content_nodes",
		draftSeeds:     prefix + "draft_seeds",
		sourceContexts: prefix + "source_contexts",
		sessions:       prefix + "sessions",
		processLock:    prefix + "process_lock",
	}
}

// New opens (creating and migrating if necessary) the SQLite database named
// by cfg.Datasource and returns a ready Store. encKey encrypts Account token
// columns; nil disables encryption.
func New(ctx context.Context, cfg *config.StoreSQLite, encKey []byte) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("sqlite configuration is nil")
	}
	if cfg.Datasource == "" {
		return nil, errors.New("sqlite datasource is required")
	}

	tablePrefix := DefaultTablePrefix
	if cfg.TablePrefix != nil {
		tablePrefix = *cfg.TablePrefix
	}

	migrate := cfg.Migrate
	if migrate.Table == "" {
		migrate.Table = "migrations"
	}
	if migrate.Datasource == "" {
		migrate.Datasource = cfg.Datasource
	}
	migrate.Table = tablePrefix + migrate.Table
	if migrate.Values == nil {
		migrate.Values = make(map[string]string)
	}
	migrate.Values["TABLE_PREFIX"] = tablePrefix

	if err := MigrateDB(ctx, &migrate); err != nil {
		return nil, fmt.Errorf("migrate store sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Datasource)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// SQLite is single-writer; serialize everything through one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	slog.Info("connected to store sqlite", "datasource", cfg.Datasource)

	return &Store{
		db:     db,
		conn:   db,
		goqu:   goqu.New("sqlite3", db),
		tables: newTableSet(tablePrefix),
		encKey: encKey,
	}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithTx runs fn against a Store wrapping a single *sql.Tx, committing on a
// nil return and rolling back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx core.Storer) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txStore := &Store{
		conn:   sqlTx,
		goqu:   goqu.New("sqlite3", sqlTx),
		tables: s.tables,
		encKey: s.encKey,
	}

	if err := fn(ctx, txStore); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			slog.Error("rollback transaction", "error", rbErr)
		}
		return err
	}

	return sqlTx.Commit()
}

var _ core.Storer = (*Store)(nil)
