package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/worldline-go/types"

	"github.com/aramirez087/tuitbot/internal/core"
)

var accountColumns = []any{"account_id", "handle", "user_id", "access_token", "refresh_token", "scopes", "token_expiry", "degraded", "needs_reauth", "created_at", "updated_at"}

func scanAccount(scan func(...any) error) (core.Account, error) {
	var (
		id, handle, userID, accessToken, refreshToken, scopesJSON string
		tokenExpiry, createdAt, updatedAt                          time.Time
		degraded, needsReauth                                      bool
	)
	if err := scan(&id, &handle, &userID, &accessToken, &refreshToken, &scopesJSON, &tokenExpiry, &degraded, &needsReauth, &createdAt, &updatedAt); err != nil {
		return core.Account{}, err
	}

	var scopes []string
	if scopesJSON != "" {
		if err := json.Unmarshal([]byte(scopesJSON), &scopes); err != nil {
			return core.Account{}, fmt.Errorf("unmarshal account scopes: %w", err)
		}
	}

	return core.Account{
		ID:           id,
		Handle:       handle,
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Scopes:       types.Slice[string](scopes),
		TokenExpiry:  tokenExpiry,
		Degraded:     degraded,
		NeedsReauth:  needsReauth,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func accountToRecord(acct core.Account) (goqu.Record, error) {
	scopesJSON, err := json.Marshal([]string(acct.Scopes))
	if err != nil {
		return nil, fmt.Errorf("marshal account scopes: %w", err)
	}

	return goqu.Record{
		"account_id":    acct.ID,
		"handle":        acct.Handle,
		"user_id":       acct.UserID,
		"access_token":  acct.AccessToken,
		"refresh_token": acct.RefreshToken,
		"scopes":        string(scopesJSON),
		"token_expiry":  acct.TokenExpiry,
		"degraded":      acct.Degraded,
		"needs_reauth":  acct.NeedsReauth,
		"created_at":    acct.CreatedAt,
		"updated_at":    acct.UpdatedAt,
	}, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (core.Account, error) {
	query, _, err := s.goqu.From(s.tables.accounts).Select(accountColumns...).Where(goqu.I("account_id").Eq(id)).ToSQL()
	if err != nil {
		return core.Account{}, fmt.Errorf("build get account query: %w", err)
	}

	acct, err := scanAccount(s.conn.QueryRowContext(ctx, query).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.NewError(core.CodeNotFound, "account not found")
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %q: %w", id, err)
	}

	return decryptAccount(acct, s.encKey)
}

func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	query, _, err := s.goqu.From(s.tables.accounts).Select(accountColumns...).Order(goqu.I("handle").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list accounts query: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var result []core.Account
	for rows.Next() {
		acct, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		acct, err = decryptAccount(acct, s.encKey)
		if err != nil {
			return nil, err
		}
		result = append(result, acct)
	}
	return result, rows.Err()
}

func (s *Store) PutAccount(ctx context.Context, acct core.Account) error {
	acct, err := encryptAccount(acct, s.encKey)
	if err != nil {
		return err
	}

	record, err := accountToRecord(acct)
	if err != nil {
		return err
	}

	upsertQuery, _, err := s.goqu.Insert(s.tables.accounts).Rows(record).
		OnConflict(goqu.DoUpdate("account_id", record)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert account query: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, upsertQuery); err != nil {
		return fmt.Errorf("upsert account %q: %w", acct.ID, err)
	}
	return nil
}

func (s *Store) RotateEncryptionKey(ctx context.Context, oldKey, newKey []byte) error {
	return s.WithTx(ctx, func(ctx context.Context, tx core.Storer) error {
		txs := tx.(*Store)

		accounts, err := txs.ListAccounts(ctx)
		if err != nil {
			return fmt.Errorf("list accounts for rotation: %w", err)
		}

		for _, acct := range accounts {
			reEncrypted, err := encryptAccount(acct, newKey)
			if err != nil {
				return err
			}
			record, err := accountToRecord(reEncrypted)
			if err != nil {
				return err
			}

			updateQuery, _, err := txs.goqu.Update(txs.tables.accounts).Set(record).Where(goqu.I("account_id").Eq(acct.ID)).ToSQL()
			if err != nil {
				return fmt.Errorf("build rotation update query: %w", err)
			}
			if _, err := txs.conn.ExecContext(ctx, updateQuery); err != nil {
				return fmt.Errorf("rotate account %q: %w", acct.ID, err)
			}
		}

		return nil
	})
}
