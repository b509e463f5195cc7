package ledger

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"cogbot/internal/store"
)

type SQLStore struct {
	db *store.DB
}

func NewSQLStore(db *store.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Add(ctx context.Context, guildID, userID string, delta int64) (int64, error) {
	query := `
		INSERT INTO chodecoin (guild_id, user_id, points)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id, user_id) DO UPDATE
		SET points = chodecoin.points + EXCLUDED.points
		RETURNING points;
	`
	var points int64
	if err := s.db.QueryRowContext(ctx, query, guildID, userID, delta).Scan(&points); err != nil {
		return 0, errors.Wrap(err, "repo: AddPoints")
	}
	return points, nil
}

func (s *SQLStore) Balance(ctx context.Context, guildID, userID string) (int64, error) {
	var points int64
	err := s.db.QueryRowContext(ctx,
		`SELECT points FROM chodecoin WHERE guild_id = $1 AND user_id = $2`,
		guildID, userID).Scan(&points)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "repo: Balance")
	}
	return points, nil
}

func (s *SQLStore) Top(ctx context.Context, guildID string, n int) ([]Entry, error) {
	if n <= 0 {
		n = 10
	}
	query := `SELECT guild_id, user_id, points
	          FROM chodecoin
	          WHERE guild_id = $1
	          ORDER BY points DESC, user_id ASC
	          LIMIT $2;`
	rows, err := s.db.QueryContext(ctx, query, guildID, n)
	if err != nil {
		return nil, errors.Wrap(err, "repo: Top")
	}
	defer rows.Close()

	var res []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.GuildID, &e.UserID, &e.Points); err != nil {
			return nil, errors.Wrap(err, "repo: Top scan")
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (s *SQLStore) Set(ctx context.Context, guildID, userID string, points int64) error {
	query := `
		INSERT INTO chodecoin (guild_id, user_id, points)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id, user_id) DO UPDATE
		SET points = EXCLUDED.points;
	`
	if _, err := s.db.ExecContext(ctx, query, guildID, userID, points); err != nil {
		return errors.Wrap(err, "repo: SetPoints")
	}
	return nil
}
