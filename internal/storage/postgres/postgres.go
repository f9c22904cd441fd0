// Package postgres implements the ledger on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"tabs/internal/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const txColumns = `id, amount_cents, payer_id, recipient_id, description, is_payment, receipt_url, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

// Open connects to url, applies pending migrations and returns a ready
// repository.
func Open(ctx context.Context, url string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := runMigrations(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repository{pool: pool}, nil
}

func runMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("create pgx migrate driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return storeErr("ping postgres", err)
	}
	return nil
}

func (r *Repository) ScanTransactions(ctx context.Context, participant core.UserID) ([]core.Transaction, error) {
	return r.query(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE payer_id = $1 OR recipient_id = $1
		 ORDER BY created_at, id`,
		string(participant))
}

func (r *Repository) ScanTransactionsBetween(ctx context.Context, participant core.UserID, from, to time.Time) ([]core.Transaction, error) {
	return r.query(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE (payer_id = $1 OR recipient_id = $1) AND created_at BETWEEN $2 AND $3
		 ORDER BY created_at, id`,
		string(participant), from, to)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, q, args...)
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

func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	tx, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, storeErr("get transaction", err)
	}
	return tx, nil
}

const insertSQL = `INSERT INTO transactions (` + txColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func insertArgs(tx core.Transaction) []any {
	var updated *time.Time
	if !tx.UpdatedAt.IsZero() {
		updated = &tx.UpdatedAt
	}
	return []any{tx.ID, tx.Amount.Cents, string(tx.PayerID), string(tx.RecipientID), tx.Description,
		tx.IsPayment, tx.ReceiptURL, tx.CreatedAt, updated}
}

func (r *Repository) InsertOne(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if _, err := r.pool.Exec(ctx, insertSQL, insertArgs(tx)...); err != nil {
		return core.Transaction{}, storeErr("insert transaction", err)
	}
	slog.InfoContext(ctx, "Transaction saved to Postgres",
		"id", tx.ID,
		"payer_id", tx.PayerID,
		"recipient_id", tx.RecipientID,
		"amount_cents", tx.Amount.Cents)
	return tx, nil
}

// InsertMany sends the rows as one batch inside a transaction.
func (r *Repository) InsertMany(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(dbtx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, tx := range txs {
			batch.Queue(insertSQL, insertArgs(tx)...)
		}
		return dbtx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return nil, storeErr("bulk insert", err)
	}
	slog.InfoContext(ctx, "Transactions saved to Postgres", "count", len(txs))
	return append([]core.Transaction(nil), txs...), nil
}

func (r *Repository) UpdateOne(ctx context.Context, id string, p core.TransactionPatch) (core.Transaction, error) {
	var updated *time.Time
	if !p.UpdatedAt.IsZero() {
		updated = &p.UpdatedAt
	}
	tx, err := scanTransaction(r.pool.QueryRow(ctx,
		`UPDATE transactions
		 SET amount_cents = $2, description = $3, receipt_url = $4, is_payment = $5, updated_at = $6
		 WHERE id = $1
		 RETURNING `+txColumns,
		id, p.Amount.Cents, strings.TrimSpace(p.Description), strings.TrimSpace(p.ReceiptURL), p.IsPayment, updated))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, storeErr("update transaction", err)
	}
	return tx, nil
}

func (r *Repository) DeleteOne(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) ResolveUsers(ctx context.Context, ids []core.UserID) (map[core.UserID]core.User, error) {
	out := make(map[core.UserID]core.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name, email FROM users WHERE id = ANY($1)`, raw)
	if err != nil {
		return nil, storeErr("resolve users", err)
	}
	users, err := collectUsers(rows)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *Repository) SearchUsers(ctx context.Context, query string, excluding core.UserID, limit int) ([]core.User, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email FROM users
		 WHERE id <> $1 AND (name ILIKE $2 OR email ILIKE $2)
		 ORDER BY name, id LIMIT $3`,
		string(excluding), pattern, limit)
	if err != nil {
		return nil, storeErr("search users", err)
	}
	return collectUsers(rows)
}

func (r *Repository) UpsertUser(ctx context.Context, u core.User) error {
	if u.ID == "" {
		return core.ErrMissingUser
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, name, email) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET
		   name  = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
		   email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email)`,
		string(u.ID), u.Name, u.Email)
	if err != nil {
		return storeErr("upsert user", err)
	}
	return nil
}

func (r *Repository) RenameUser(ctx context.Context, id core.UserID, name string) (core.User, error) {
	var uid, uname, email string
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET name = $2 WHERE id = $1 RETURNING id, name, email`, string(id), name).
		Scan(&uid, &uname, &email)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, storeErr("rename user", err)
	}
	return core.User{ID: core.UserID(uid), Name: uname, Email: email}, nil
}

func collectUsers(rows pgx.Rows) ([]core.User, error) {
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.User, error) {
		var id, name, email string
		if err := row.Scan(&id, &name, &email); err != nil {
			return core.User{}, err
		}
		return core.User{ID: core.UserID(id), Name: name, Email: email}, nil
	})
	if err != nil {
		return nil, storeErr("read users", err)
	}
	return users, nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx               core.Transaction
		payer, recipient string
		created          time.Time
		updated          *time.Time
	)
	err := row.Scan(&tx.ID, &tx.Amount.Cents, &payer, &recipient, &tx.Description,
		&tx.IsPayment, &tx.ReceiptURL, &created, &updated)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.PayerID, tx.RecipientID = core.UserID(payer), core.UserID(recipient)
	tx.CreatedAt = created.UTC()
	if updated != nil {
		tx.UpdatedAt = updated.UTC()
	}
	return tx, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", core.ErrStore, op, err)
}
