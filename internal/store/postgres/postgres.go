// Package postgres is the multi-connection Postgres backend for core.Storer,
// used by cloud deployments that need more than a single writer.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aramirez087/tuitbot/internal/config"
	"github.com/aramirez087/tuitbot/internal/core"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

var (
	ConnMaxLifetime = 15 * time.Minute
	MaxIdleConns    = 4
	MaxOpenConns    = 8

	DefaultTablePrefix = "tuitbot_"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db     *sql.DB
	conn   execer
	goqu   *goqu.Database
	tables tableSet
	encKey []byte
}

type tableSet struct {
	accounts       string
	originalTweets string
	drafts         string
	approvalQueue  string
	mutationAudit  string
	mcpTelemetry   string
	rateLimitUsage string
	contentNodes   string
	draftSeeds     string
	sourceContexts string
	sessions       string
	processLock    string
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

func New(ctx context.Context, cfg *config.StorePostgres, encKey []byte) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("postgres configuration is nil")
	}
	if cfg.Datasource == "" {
		return nil, errors.New("postgres datasource is required")
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
	if migrate.Schema == "" {
		migrate.Schema = cfg.Schema
	}
	migrate.Table = tablePrefix + migrate.Table
	if migrate.Values == nil {
		migrate.Values = make(map[string]string)
	}
	migrate.Values["TABLE_PREFIX"] = tablePrefix

	if err := MigrateDB(ctx, &migrate); err != nil {
		return nil, fmt.Errorf("migrate store postgres: %w", err)
	}

	db, err := sql.Open("pgx", cfg.Datasource)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if cfg.Schema != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", cfg.Schema)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set search_path: %w", err)
		}
	}

	connMaxLifetime := ConnMaxLifetime
	maxIdleConns := MaxIdleConns
	maxOpenConns := MaxOpenConns
	if cfg.ConnMaxLifetime != nil {
		connMaxLifetime = *cfg.ConnMaxLifetime
	}
	if cfg.MaxIdleConns != nil {
		maxIdleConns = *cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns != nil {
		maxOpenConns = *cfg.MaxOpenConns
	}

	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetMaxOpenConns(maxOpenConns)

	slog.Info("connected to store postgres", "datasource", cfg.Datasource)

	return &Store{
		db:     db,
		conn:   db,
		goqu:   goqu.New("postgres", db),
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

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx core.Storer) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txStore := &Store{
		conn:   sqlTx,
		goqu:   goqu.New("postgres", sqlTx),
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
