package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const settingRelayToken = "relay_token"

func newTokenStore(db *sqlx.DB) *tokenStore {
	return &tokenStore{
		db: db,
	}
}

type tokenStore struct {
	db *sqlx.DB
}

func (s *tokenStore) Current(ctx context.Context) (string, error) {
	var value string
	if err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key=$1", settingRelayToken); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", errors.Wrap(err, "failed to read relay token")
	}
	return value, nil
}

func (s *tokenStore) Set(ctx context.Context, token string) error {
	query := "INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3) " +
		"ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at"
	if _, err := s.db.ExecContext(ctx, query, settingRelayToken, token, now()); err != nil {
		return errors.Wrap(err, "failed to store relay token")
	}
	return nil
}
