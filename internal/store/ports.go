// Package store declares the outbound ports the ledger service depends on.
package store

import (
	"context"
	"time"

	"tabs/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionScanner reads the transactions a participant is party to.
	TransactionScanner interface {
		// ScanTransactions returns every transaction where participant is
		// payer or recipient, ascending by creation time.
		ScanTransactions(ctx context.Context, participant core.UserID) ([]core.Transaction, error)
		// ScanTransactionsBetween restricts the scan to from <= createdAt <= to.
		ScanTransactionsBetween(ctx context.Context, participant core.UserID, from, to time.Time) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		InsertOne(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		// InsertMany writes all rows or none.
		InsertMany(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error)
		UpdateOne(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error)
		DeleteOne(ctx context.Context, id string) error
	}

	UserDirectory interface {
		ResolveUsers(ctx context.Context, ids []core.UserID) (map[core.UserID]core.User, error)
		// SearchUsers matches query case-insensitively against name or email.
		SearchUsers(ctx context.Context, query string, excluding core.UserID, limit int) ([]core.User, error)
		UpsertUser(ctx context.Context, u core.User) error
		RenameUser(ctx context.Context, id core.UserID, name string) (core.User, error)
	}

	// Ledger is the full persistence surface of a backend.
	Ledger interface {
		TransactionScanner
		TransactionWriter
		UserDirectory
		Ping(ctx context.Context) error
		Close() error
	}
)
