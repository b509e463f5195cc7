package store

import (
	"context"
	"database/sql"
	"regexp"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// DB is the process-wide database handle shared by every cog.
type DB struct {
	*sql.DB
	driver string
}

func Open(driver, dsn string) (*DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open db")
	}
	if driver == DriverSQLite {
		// sqlite serialises writers anyway, one connection keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cannot ping db")
	}
	return &DB{DB: db, driver: driver}, nil
}

func (d *DB) Driver() string {
	return d.driver
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// Rebind rewrites postgres-style $n placeholders into the form the driver expects.
func (d *DB) Rebind(query string) string {
	if d.driver == DriverSQLite {
		return placeholder.ReplaceAllString(query, "?$1")
	}
	return query
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, d.Rebind(query), args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, d.Rebind(query), args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, d.Rebind(query), args...)
}

// Tx wraps sql.Tx with the same placeholder rewriting as DB.
type Tx struct {
	*sql.Tx
	db *DB
}

func (d *DB) BeginTx(ctx context.Context) (*Tx, error) {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "store: begin")
	}
	return &Tx{Tx: tx, db: d}, nil
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.Tx.ExecContext(ctx, t.db.Rebind(query), args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.Tx.QueryRowContext(ctx, t.db.Rebind(query), args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.Tx.QueryContext(ctx, t.db.Rebind(query), args...)
}

func (d *DB) serial() string {
	if d.driver == DriverSQLite {
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "BIGSERIAL PRIMARY KEY"
}

func (d *DB) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS chodecoin (
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			points BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (guild_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			scope TEXT NOT NULL,
			scope_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (scope, scope_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS trainers (
			user_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			money BIGINT NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			caught INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS party (
			id ` + d.serial() + `,
			user_id TEXT NOT NULL REFERENCES trainers(user_id),
			slot INTEGER NOT NULL,
			species TEXT NOT NULL,
			nickname TEXT NOT NULL DEFAULT '',
			level INTEGER NOT NULL,
			exp BIGINT NOT NULL,
			hp INTEGER NOT NULL,
			ivs TEXT NOT NULL,
			evs TEXT NOT NULL,
			moves TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS party_user_slot ON party (user_id, slot)`,
		`CREATE TABLE IF NOT EXISTS inventory (
			user_id TEXT NOT NULL,
			item TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			PRIMARY KEY (user_id, item)
		)`,
	}
}

// Migrate creates every table the cogs need. It is safe to run on every start.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range d.schema() {
		if _, err := d.DB.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "store: migrate")
		}
	}
	return nil
}
