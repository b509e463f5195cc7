package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type Scope string

const (
	ScopeGuild   Scope = "guild"
	ScopeChannel Scope = "channel"
	ScopeUser    Scope = "user"
)

// Settings is the key-value config store, scoped per guild, channel or user.
type Settings struct {
	db *DB
}

func NewSettings(db *DB) *Settings {
	return &Settings{db: db}
}

func (s *Settings) Get(ctx context.Context, scope Scope, id, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE scope = $1 AND scope_id = $2 AND key = $3`,
		string(scope), id, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "repo: GetSetting")
	}
	return value, true, nil
}

// GetBool returns def when the key is unset.
func (s *Settings) GetBool(ctx context.Context, scope Scope, id, key string, def bool) (bool, error) {
	value, ok, err := s.Get(ctx, scope, id, key)
	if err != nil || !ok {
		return def, err
	}
	return value == "true", nil
}

func (s *Settings) Set(ctx context.Context, scope Scope, id, key, value string) error {
	query := `
		INSERT INTO settings (scope, scope_id, key, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope, scope_id, key) DO UPDATE
		SET value = EXCLUDED.value;
	`
	if _, err := s.db.ExecContext(ctx, query, string(scope), id, key, value); err != nil {
		return errors.Wrap(err, "repo: SetSetting")
	}
	return nil
}

func (s *Settings) SetBool(ctx context.Context, scope Scope, id, key string, value bool) error {
	v := "false"
	if value {
		v = "true"
	}
	return s.Set(ctx, scope, id, key, v)
}

func (s *Settings) Delete(ctx context.Context, scope Scope, id, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM settings WHERE scope = $1 AND scope_id = $2 AND key = $3`,
		string(scope), id, key)
	if err != nil {
		return errors.Wrap(err, "repo: DeleteSetting")
	}
	return nil
}
