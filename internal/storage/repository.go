// Package storage keeps ledger tables in a SQLite database, one logical
// table per user name.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finance/internal/core"
	"finance/internal/table"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db     *sql.DB
	dbPath string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, dbPath: dbPath}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SchemaVersion reports the migration version of the open database.
func (r *SQLiteRepository) SchemaVersion() (uint, bool, error) {
	return SchemaVersion(r.dbPath)
}

// Table returns the ledger table of userName.
func (r *SQLiteRepository) Table(userName string) *LedgerTable {
	return &LedgerTable{repo: r, user: userName}
}

// LedgerTable is a table.Store scoped to one user.
type LedgerTable struct {
	repo *SQLiteRepository
	user string
}

var _ table.Store = (*LedgerTable)(nil)

func (t *LedgerTable) exists(ctx context.Context) (bool, error) {
	var n int
	err := t.repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_tables WHERE user_name = ?`, t.user).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check ledger table: %w", err)
	}
	return n > 0, nil
}

func (t *LedgerTable) ReadAll(ctx context.Context) ([]core.Record, error) {
	ok, err := t.exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("ledger table %s: %w", t.user, core.ErrNotFound)
	}

	rows, err := t.repo.db.QueryContext(ctx, `
		SELECT date, category, title, amount, notes, session_id
		FROM ledger_records
		WHERE user_name = ?
		ORDER BY position`, t.user)
	if err != nil {
		return nil, fmt.Errorf("query ledger records: %w", err)
	}
	defer rows.Close()

	var cells [][]string
	for rows.Next() {
		row := make([]string, len(core.Columns))
		if err := rows.Scan(&row[0], &row[1], &row[2], &row[3], &row[4], &row[5]); err != nil {
			return nil, fmt.Errorf("scan ledger record: %w", err)
		}
		cells = append(cells, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger records: %w", err)
	}
	return table.DecodeRows(core.Columns, cells)
}

// LatestSession uses the instant column, so tokens written in different
// zones still order correctly.
func (t *LedgerTable) LatestSession(ctx context.Context) (core.SessionToken, error) {
	ok, err := t.exists(ctx)
	if err != nil {
		return core.SessionToken{}, err
	}
	if !ok {
		return core.SessionToken{}, fmt.Errorf("ledger table %s: %w", t.user, core.ErrNotFound)
	}

	var ns sql.NullInt64
	err = t.repo.db.QueryRowContext(ctx,
		`SELECT MAX(session_ns) FROM ledger_records WHERE user_name = ?`, t.user).Scan(&ns)
	if err != nil {
		return core.SessionToken{}, fmt.Errorf("query latest session: %w", err)
	}
	if !ns.Valid {
		return core.SessionToken{}, nil
	}
	return core.SessionAt(time.Unix(0, ns.Int64)), nil
}

func (t *LedgerTable) ReplaceAll(ctx context.Context, records []core.Record) error {
	tx, err := t.repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO ledger_tables (user_name) VALUES (?)`, t.user); err != nil {
		return fmt.Errorf("ensure ledger table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_records WHERE user_name = ?`, t.user); err != nil {
		return fmt.Errorf("clear ledger records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger_records (user_name, position, date, category, title, amount, notes, session_id, session_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		cells := table.EncodeRow(rec)
		var ns sql.NullInt64
		if !rec.Session.IsZero() {
			ns = sql.NullInt64{Int64: rec.Session.Time().UnixNano(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, t.user, i, cells[0], cells[1], cells[2], cells[3], cells[4], cells[5], ns); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}

	slog.DebugContext(ctx, "Ledger saved to SQLite", "user", t.user, "records", len(records))
	return nil
}

func (t *LedgerTable) CreateIfMissing(ctx context.Context) (bool, error) {
	res, err := t.repo.db.ExecContext(ctx, `INSERT OR IGNORE INTO ledger_tables (user_name) VALUES (?)`, t.user)
	if err != nil {
		return false, fmt.Errorf("create ledger table: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create ledger table: %w", err)
	}
	return n > 0, nil
}
