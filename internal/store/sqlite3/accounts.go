package sqlite3

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

type accountRow struct {
	ID           string `db:"account_id"`
	Handle       string `db:"handle"`
	UserID       string `db:"user_id"`
	AccessToken  string `db:"access_token"`
	RefreshToken string `db:"refresh_token"`
	Scopes       string `db:"scopes"`
	TokenExpiry  string `db:"token_expiry"`
	Degraded     bool   `db:"degraded"`
	NeedsReauth  bool   `db:"needs_reauth"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

const accountColumns = "account_id, handle, user_id, access_token, refresh_token, scopes, token_expiry, degraded, needs_reauth, created_at, updated_at"

func scanAccount(scan func(...any) error) (core.Account, error) {
	var row accountRow
	if err := scan(&row.ID, &row.Handle, &row.UserID, &row.AccessToken, &row.RefreshToken,
		&row.Scopes, &row.TokenExpiry, &row.Degraded, &row.NeedsReauth, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return core.Account{}, err
	}
	return rowToAccount(row)
}

func rowToAccount(row accountRow) (core.Account, error) {
	var scopes []string
	if row.Scopes != "" {
		if err := json.Unmarshal([]byte(row.Scopes), &scopes); err != nil {
			return core.Account{}, fmt.Errorf("unmarshal account scopes: %w", err)
		}
	}

	tokenExpiry, err := time.Parse(time.RFC3339, row.TokenExpiry)
	if err != nil {
		return core.Account{}, fmt.Errorf("parse token_expiry: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err != nil {
		return core.Account{}, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339, row.UpdatedAt)
	if err != nil {
		return core.Account{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return core.Account{
		ID:           row.ID,
		Handle:       row.Handle,
		UserID:       row.UserID,
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		Scopes:       types.Slice[string](scopes),
		TokenExpiry:  tokenExpiry,
		Degraded:     row.Degraded,
		NeedsReauth:  row.NeedsReauth,
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
		"token_expiry":  acct.TokenExpiry.Format(time.RFC3339),
		"degraded":      acct.Degraded,
		"needs_reauth":  acct.NeedsReauth,
		"created_at":    acct.CreatedAt.Format(time.RFC3339),
		"updated_at":    acct.UpdatedAt.Format(time.RFC3339),
	}, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (core.Account, error) {
	query, _, err := s.goqu.From(s.tables.accounts).
		Select("account_id", "handle", "user_id", "access_token", "refresh_token", "scopes", "token_expiry", "degraded", "needs_reauth", "created_at", "updated_at").
		Where(goqu.I("account_id").Eq(id)).
		ToSQL()
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

	acct, err = decryptAccount(acct, s.encKey)
	if err != nil {
		return core.Account{}, err
	}
	return acct, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	query, _, err := s.goqu.From(s.tables.accounts).
		Select("account_id", "handle", "user_id", "access_token", "refresh_token", "scopes", "token_expiry", "degraded", "needs_reauth", "created_at", "updated_at").
		Order(goqu.I("handle").Asc()).
		ToSQL()
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

// PutAccount upserts by account_id, encrypting the token pair on the way in.
func (s *Store) PutAccount(ctx context.Context, acct core.Account) error {
	acct, err := encryptAccount(acct, s.encKey)
	if err != nil {
		return err
	}

	record, err := accountToRecord(acct)
	if err != nil {
		return err
	}

	existing, err := s.goqu.From(s.tables.accounts).Select("account_id").Where(goqu.I("account_id").Eq(acct.ID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build exists query: %w", err)
	}

	var existingID string
	err = s.conn.QueryRowContext(ctx, existing).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		insertQuery, _, buildErr := s.goqu.Insert(s.tables.accounts).Rows(record).ToSQL()
		if buildErr != nil {
			return fmt.Errorf("build insert account query: %w", buildErr)
		}
		if _, execErr := s.conn.ExecContext(ctx, insertQuery); execErr != nil {
			return fmt.Errorf("insert account %q: %w", acct.ID, execErr)
		}
	case err != nil:
		return fmt.Errorf("check account existence: %w", err)
	default:
		updateQuery, _, buildErr := s.goqu.Update(s.tables.accounts).Set(record).Where(goqu.I("account_id").Eq(acct.ID)).ToSQL()
		if buildErr != nil {
			return fmt.Errorf("build update account query: %w", buildErr)
		}
		if _, execErr := s.conn.ExecContext(ctx, updateQuery); execErr != nil {
			return fmt.Errorf("update account %q: %w", acct.ID, execErr)
		}
	}

	return nil
}

// RotateEncryptionKey re-encrypts every account's token pair with newKey
// inside one transaction.
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
