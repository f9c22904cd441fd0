package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tabs/internal/core"

	_ "modernc.org/sqlite"
)

const txColumns = `id, amount_cents, payer_id, recipient_id, description, is_payment, receipt_url, created_at, updated_at`

// SQLiteRepository implements store.Ledger on a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; serialising through one connection keeps
	// bulk inserts from tripping SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping sqlite: %v", core.ErrStore, err)
	}
	return nil
}

func (r *SQLiteRepository) ScanTransactions(ctx context.Context, participant core.UserID) ([]core.Transaction, error) {
	return r.query(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE payer_id = ? OR recipient_id = ?
		 ORDER BY created_at, id`,
		participant, participant)
}

func (r *SQLiteRepository) ScanTransactionsBetween(ctx context.Context, participant core.UserID, from, to time.Time) ([]core.Transaction, error) {
	return r.query(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE (payer_id = ? OR recipient_id = ?) AND created_at BETWEEN ? AND ?
		 ORDER BY created_at, id`,
		participant, participant, from.UnixNano(), to.UnixNano())
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeErr("scan transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, storeErr("read transaction row", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate transactions", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, storeErr("get transaction", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) InsertOne(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := insertTx(ctx, r.db, tx); err != nil {
		return core.Transaction{}, storeErr("insert transaction", err)
	}
	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"payer_id", tx.PayerID,
		"recipient_id", tx.RecipientID,
		"amount_cents", tx.Amount.Cents,
		"is_payment", tx.IsPayment)
	return tx, nil
}

func (r *SQLiteRepository) InsertMany(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin bulk insert", err)
	}
	defer dbtx.Rollback()

	for _, tx := range txs {
		if err := insertTx(ctx, dbtx, tx); err != nil {
			return nil, storeErr("bulk insert "+tx.ID, err)
		}
	}
	if err := dbtx.Commit(); err != nil {
		return nil, storeErr("commit bulk insert", err)
	}

	slog.InfoContext(ctx, "Transactions saved to SQLite", "count", len(txs))
	return append([]core.Transaction(nil), txs...), nil
}

func (r *SQLiteRepository) UpdateOne(ctx context.Context, id string, p core.TransactionPatch) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET amount_cents = ?, description = ?, receipt_url = ?, is_payment = ?, updated_at = ?
		 WHERE id = ?`,
		p.Amount.Cents, strings.TrimSpace(p.Description), strings.TrimSpace(p.ReceiptURL),
		p.IsPayment, nullableNanos(p.UpdatedAt), id)
	if err != nil {
		return core.Transaction{}, storeErr("update transaction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return r.GetTransaction(ctx, id)
}

func (r *SQLiteRepository) DeleteOne(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete transaction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id)
	return nil
}

func (r *SQLiteRepository) ResolveUsers(ctx context.Context, ids []core.UserID) (map[core.UserID]core.User, error) {
	out := make(map[core.UserID]core.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, email FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, storeErr("resolve users", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, storeErr("read user row", err)
		}
		out[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate users", err)
	}
	return out, nil
}

func (r *SQLiteRepository) SearchUsers(ctx context.Context, query string, excluding core.UserID, limit int) ([]core.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email FROM users
		 WHERE id <> ? AND (lower(name) LIKE ? ESCAPE '\' OR lower(email) LIKE ? ESCAPE '\')
		 ORDER BY name, id LIMIT ?`,
		excluding, pattern, pattern, limit)
	if err != nil {
		return nil, storeErr("search users", err)
	}
	defer rows.Close()
	var out []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, storeErr("read user row", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate users", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpsertUser(ctx context.Context, u core.User) error {
	if u.ID == "" {
		return core.ErrMissingUser
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name  = CASE WHEN excluded.name  <> '' THEN excluded.name  ELSE users.name  END,
		   email = CASE WHEN excluded.email <> '' THEN excluded.email ELSE users.email END`,
		u.ID, u.Name, u.Email)
	if err != nil {
		return storeErr("upsert user", err)
	}
	return nil
}

func (r *SQLiteRepository) RenameUser(ctx context.Context, id core.UserID, name string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`UPDATE users SET name = ? WHERE id = ? RETURNING id, name, email`, name, id).
		Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, storeErr("rename user", err)
	}
	return u, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTx(ctx context.Context, db execer, tx core.Transaction) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO transactions (`+txColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Amount.Cents, tx.PayerID, tx.RecipientID, tx.Description,
		tx.IsPayment, tx.ReceiptURL, tx.CreatedAt.UnixNano(), nullableNanos(tx.UpdatedAt))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		tx      core.Transaction
		created int64
		updated sql.NullInt64
	)
	err := s.Scan(&tx.ID, &tx.Amount.Cents, &tx.PayerID, &tx.RecipientID, &tx.Description,
		&tx.IsPayment, &tx.ReceiptURL, &created, &updated)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.CreatedAt = time.Unix(0, created).UTC()
	if updated.Valid {
		tx.UpdatedAt = time.Unix(0, updated.Int64).UTC()
	}
	return tx, nil
}

func nullableNanos(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", core.ErrStore, op, err)
}
