package pokemon

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"cogbot/internal/store"
)

var (
	ErrNotEnoughMoney = errors.New("not enough money")
	ErrNotEnoughItems = errors.New("not enough items")
	ErrNoSuchSlot     = errors.New("no pokémon in that slot")
)

type Trainer struct {
	UserID    string
	Name      string
	Money     int64
	Wins      int
	Losses    int
	Caught    int
	CreatedAt time.Time
}

// Record is a pokémon as stored, without species reference data.
type Record struct {
	ID       int64
	UserID   string
	Slot     int
	Species  string
	Nickname string
	Level    int
	Exp      int
	HP       int
	IVs      Stats
	EVs      Stats
	Moves    []string
}

type LeaderboardEntry struct {
	UserID   string
	Name     string
	TotalExp int64
	Pokemon  int
	Caught   int
	TopLevel int
}

type Repository interface {
	CreateTrainer(ctx context.Context, t Trainer, starter Record, bag map[string]int) error
	GetTrainer(ctx context.Context, userID string) (*Trainer, error)
	UpdateTrainer(ctx context.Context, t *Trainer) error

	ListParty(ctx context.Context, userID string) ([]Record, error)
	AddToParty(ctx context.Context, rec Record) (Record, error)
	UpdatePokemon(ctx context.Context, rec Record) error
	SwapSlots(ctx context.Context, userID string, a, b int) error

	Inventory(ctx context.Context, userID string) (map[string]int, error)
	AddItem(ctx context.Context, userID, item string, qty int) error
	TakeItem(ctx context.Context, userID, item string, qty int) error
	BuyItem(ctx context.Context, userID, item string, qty int, price int64) error
	UseItem(ctx context.Context, item string, rec Record) error

	Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error)
}

type SQLRepository struct {
	db *store.DB
}

func NewSQLRepository(db *store.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) CreateTrainer(ctx context.Context, t Trainer, starter Record, bag map[string]int) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO trainers (user_id, name, money) VALUES ($1, $2, $3)`,
		t.UserID, t.Name, t.Money)
	if err != nil {
		return errors.Wrap(err, "repo: CreateTrainer")
	}

	starter.UserID = t.UserID
	starter.Slot = 1
	if _, err := insertPokemon(ctx, tx, starter); err != nil {
		return err
	}

	for item, qty := range bag {
		if err := addItem(ctx, tx, t.UserID, item, qty); err != nil {
			return err
		}
	}
	return errors.Wrap(tx.Commit(), "repo: CreateTrainer commit")
}

func (r *SQLRepository) GetTrainer(ctx context.Context, userID string) (*Trainer, error) {
	query := `SELECT user_id, name, money, wins, losses, caught, created_at FROM trainers WHERE user_id = $1;`
	t := &Trainer{}
	err := r.db.QueryRowContext(ctx, query, userID).
		Scan(&t.UserID, &t.Name, &t.Money, &t.Wins, &t.Losses, &t.Caught, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "repo: GetTrainer")
	}
	return t, nil
}

func (r *SQLRepository) UpdateTrainer(ctx context.Context, t *Trainer) error {
	query := `UPDATE trainers SET money = $1, wins = $2, losses = $3, caught = $4 WHERE user_id = $5;`
	res, err := r.db.ExecContext(ctx, query, t.Money, t.Wins, t.Losses, t.Caught, t.UserID)
	if err != nil {
		return errors.Wrap(err, "repo: UpdateTrainer")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return errors.Errorf("no trainer updated, user_id=%s not found", t.UserID)
	}
	return nil
}

const partyColumns = `id, user_id, slot, species, nickname, level, exp, hp, ivs, evs, moves`

func (r *SQLRepository) ListParty(ctx context.Context, userID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+partyColumns+` FROM party WHERE user_id = $1 ORDER BY slot;`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "repo: ListParty")
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var (
			rec             Record
			ivs, evs, moves string
		)
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.Slot, &rec.Species, &rec.Nickname,
			&rec.Level, &rec.Exp, &rec.HP, &ivs, &evs, &moves)
		if err != nil {
			return nil, errors.Wrap(err, "repo: ListParty scan")
		}
		if err := decodeColumns(&rec, ivs, evs, moves); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// AddToParty puts the pokémon in the next free slot. Slots past MaxPartyLen are the box.
func (r *SQLRepository) AddToParty(ctx context.Context, rec Record) (Record, error) {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return rec, err
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(slot), 0) + 1 FROM party WHERE user_id = $1`, rec.UserID).Scan(&next)
	if err != nil {
		return rec, errors.Wrap(err, "repo: AddToParty slot")
	}
	rec.Slot = next

	if rec.ID, err = insertPokemon(ctx, tx, rec); err != nil {
		return rec, err
	}
	return rec, errors.Wrap(tx.Commit(), "repo: AddToParty commit")
}

func (r *SQLRepository) UpdatePokemon(ctx context.Context, rec Record) error {
	return updatePokemon(ctx, r.db, rec)
}

func (r *SQLRepository) SwapSlots(ctx context.Context, userID string, a, b int) error {
	if a == b {
		return nil
	}
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, slot := range []int{a, b} {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM party WHERE user_id = $1 AND slot = $2`, userID, slot).Scan(&n)
		if err != nil {
			return errors.Wrap(err, "repo: SwapSlots")
		}
		if n == 0 {
			return ErrNoSuchSlot
		}
	}

	// park a in slot 0 so the swap never has two rows in one slot
	steps := []struct{ from, to int }{{a, 0}, {b, a}, {0, b}}
	for _, s := range steps {
		_, err := tx.ExecContext(ctx,
			`UPDATE party SET slot = $1 WHERE user_id = $2 AND slot = $3`, s.to, userID, s.from)
		if err != nil {
			return errors.Wrap(err, "repo: SwapSlots")
		}
	}
	return errors.Wrap(tx.Commit(), "repo: SwapSlots commit")
}

func (r *SQLRepository) Inventory(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT item, quantity FROM inventory WHERE user_id = $1 AND quantity > 0 ORDER BY item;`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "repo: Inventory")
	}
	defer rows.Close()

	res := make(map[string]int)
	for rows.Next() {
		var (
			item string
			qty  int
		)
		if err := rows.Scan(&item, &qty); err != nil {
			return nil, errors.Wrap(err, "repo: Inventory scan")
		}
		res[item] = qty
	}
	return res, rows.Err()
}

func (r *SQLRepository) AddItem(ctx context.Context, userID, item string, qty int) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := addItem(ctx, tx, userID, item, qty); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "repo: AddItem commit")
}

func (r *SQLRepository) TakeItem(ctx context.Context, userID, item string, qty int) error {
	return takeItem(ctx, r.db, userID, item, qty)
}

// UseItem spends one item on rec and saves rec in the same transaction.
func (r *SQLRepository) UseItem(ctx context.Context, item string, rec Record) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := takeItem(ctx, tx, rec.UserID, item, 1); err != nil {
		return err
	}
	if err := updatePokemon(ctx, tx, rec); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "repo: UseItem commit")
}

func (r *SQLRepository) BuyItem(ctx context.Context, userID, item string, qty int, price int64) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	total := price * int64(qty)
	res, err := tx.ExecContext(ctx,
		`UPDATE trainers SET money = money - $1 WHERE user_id = $2 AND money >= $1`, total, userID)
	if err != nil {
		return errors.Wrap(err, "repo: BuyItem")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotEnoughMoney
	}

	if err := addItem(ctx, tx, userID, item, qty); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "repo: BuyItem commit")
}

func (r *SQLRepository) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	if n <= 0 {
		n = 10
	}
	query := `SELECT t.user_id, t.name, COALESCE(SUM(p.exp), 0), COUNT(p.id), t.caught, COALESCE(MAX(p.level), 0)
	          FROM trainers t
	          LEFT JOIN party p ON p.user_id = t.user_id
	          GROUP BY t.user_id, t.name, t.caught
	          ORDER BY 3 DESC, t.user_id ASC
	          LIMIT $1;`
	rows, err := r.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, errors.Wrap(err, "repo: Leaderboard")
	}
	defer rows.Close()

	var res []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.TotalExp, &e.Pokemon, &e.Caught, &e.TopLevel); err != nil {
			return nil, errors.Wrap(err, "repo: Leaderboard scan")
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updatePokemon(ctx context.Context, ex execer, rec Record) error {
	ivs, evs, moves, err := encodeColumns(rec)
	if err != nil {
		return err
	}
	query := `UPDATE party SET nickname = $1, level = $2, exp = $3, hp = $4, ivs = $5, evs = $6, moves = $7
	          WHERE id = $8 AND user_id = $9;`
	res, err := ex.ExecContext(ctx, query, rec.Nickname, rec.Level, rec.Exp, rec.HP, ivs, evs, moves, rec.ID, rec.UserID)
	if err != nil {
		return errors.Wrap(err, "repo: UpdatePokemon")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNoSuchSlot
	}
	return nil
}

func takeItem(ctx context.Context, ex execer, userID, item string, qty int) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE inventory SET quantity = quantity - $1 WHERE user_id = $2 AND item = $3 AND quantity >= $1`,
		qty, userID, item)
	if err != nil {
		return errors.Wrap(err, "repo: TakeItem")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotEnoughItems
	}
	return nil
}

func insertPokemon(ctx context.Context, tx *store.Tx, rec Record) (int64, error) {
	ivs, evs, moves, err := encodeColumns(rec)
	if err != nil {
		return 0, err
	}
	query := `INSERT INTO party (user_id, slot, species, nickname, level, exp, hp, ivs, evs, moves)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id;`
	var id int64
	err = tx.QueryRowContext(ctx, query, rec.UserID, rec.Slot, rec.Species, rec.Nickname,
		rec.Level, rec.Exp, rec.HP, ivs, evs, moves).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "repo: insertPokemon")
	}
	return id, nil
}

func addItem(ctx context.Context, tx *store.Tx, userID, item string, qty int) error {
	query := `
		INSERT INTO inventory (user_id, item, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, item) DO UPDATE
		SET quantity = inventory.quantity + EXCLUDED.quantity;
	`
	if _, err := tx.ExecContext(ctx, query, userID, item, qty); err != nil {
		return errors.Wrap(err, "repo: addItem")
	}
	return nil
}

func encodeColumns(rec Record) (ivs, evs, moves string, err error) {
	if ivs, err = json.MarshalToString(rec.IVs); err != nil {
		return
	}
	if evs, err = json.MarshalToString(rec.EVs); err != nil {
		return
	}
	if rec.Moves == nil {
		rec.Moves = []string{}
	}
	moves, err = json.MarshalToString(rec.Moves)
	return
}

func decodeColumns(rec *Record, ivs, evs, moves string) error {
	if err := json.UnmarshalFromString(ivs, &rec.IVs); err != nil {
		return errors.Wrap(err, "repo: decode ivs")
	}
	if err := json.UnmarshalFromString(evs, &rec.EVs); err != nil {
		return errors.Wrap(err, "repo: decode evs")
	}
	if err := json.UnmarshalFromString(moves, &rec.Moves); err != nil {
		return errors.Wrap(err, "repo: decode moves")
	}
	return nil
}
