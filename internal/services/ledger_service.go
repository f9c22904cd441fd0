package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tabs/internal/amqp"
	"tabs/internal/core"
	"tabs/internal/store"
)

const (
	DefaultCurrency    = "ETB"
	DefaultSearchLimit = 10
	maxNameLength      = 100
	bulkDeleteWorkers  = 4
)

// EventPublisher announces ledger changes. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, kind amqp.EventKind, actor core.UserID, tx core.Transaction) error
	Close() error
}

type Options struct {
	Currency    string
	Location    *time.Location
	SearchLimit int
	Now         func() time.Time
	NewID       func() string
}

// AnalysisQuery carries the raw period parameters of an analysis request.
type AnalysisQuery struct {
	Range string
	Start string
	End   string
	Month string
}

// LedgerService orchestrates ledger reads and writes across the store and
// the event publisher.
type LedgerService struct {
	ledger    store.Ledger
	publisher EventPublisher
	opts      Options
}

func NewLedgerService(ledger store.Ledger, publisher EventPublisher, opts Options) *LedgerService {
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &LedgerService{ledger: ledger, publisher: publisher, opts: opts}
}

func (s *LedgerService) Currency() string         { return s.opts.Currency }
func (s *LedgerService) Location() *time.Location { return s.opts.Location }

// Balances computes the viewer's lifetime position toward every
// counterparty.
func (s *LedgerService) Balances(ctx context.Context, viewer core.UserID) (core.BalanceSheet, error) {
	txs, err := s.ledger.ScanTransactions(ctx, viewer)
	if err != nil {
		return core.BalanceSheet{}, storeFailure("scan transactions", err)
	}
	sheet := core.ComputeBalances(viewer, txs)

	users, err := s.ledger.ResolveUsers(ctx, sheet.Counterparties())
	if err != nil {
		return core.BalanceSheet{}, storeFailure("resolve users", err)
	}
	sheet.Annotate(users)
	return sheet, nil
}

// Analysis aggregates the viewer's activity over the requested period.
func (s *LedgerService) Analysis(ctx context.Context, viewer core.UserID, q AnalysisQuery) (core.Analysis, error) {
	today := core.DateOf(s.opts.Now(), s.opts.Location)
	p, err := core.ResolvePeriod(today, q.Range, q.Start, q.End, q.Month, s.opts.Location)
	if err != nil {
		return core.Analysis{}, err
	}

	from, to := p.Window()
	txs, err := s.ledger.ScanTransactionsBetween(ctx, viewer, from, to)
	if err != nil {
		return core.Analysis{}, storeFailure("scan transactions", err)
	}
	return core.Analyze(viewer, txs, p), nil
}

// History lists the viewer's transactions annotated with counterparty
// details, newest first.
func (s *LedgerService) History(ctx context.Context, viewer core.UserID) ([]core.HistoryEntry, error) {
	txs, err := s.ledger.ScanTransactions(ctx, viewer)
	if err != nil {
		return nil, storeFailure("scan transactions", err)
	}
	seen := map[core.UserID]struct{}{}
	var ids []core.UserID
	for _, tx := range txs {
		other := tx.RecipientID
		if other == viewer {
			other = tx.PayerID
		}
		if _, ok := seen[other]; !ok {
			seen[other] = struct{}{}
			ids = append(ids, other)
		}
	}
	users, err := s.ledger.ResolveUsers(ctx, ids)
	if err != nil {
		return nil, storeFailure("resolve users", err)
	}
	return core.History(viewer, txs, users), nil
}

// Create records a single transaction on behalf of self.
func (s *LedgerService) Create(ctx context.Context, self core.UserID, n core.NewTransaction) (core.Transaction, error) {
	if err := n.Validate(self); err != nil {
		return core.Transaction{}, err
	}
	tx := s.build(self, n, s.opts.Now())

	saved, err := s.ledger.InsertOne(ctx, tx)
	if err != nil {
		return core.Transaction{}, storeFailure("insert transaction", err)
	}
	s.publish(ctx, amqp.TransactionCreated, self, saved)
	return saved, nil
}

// CreateBulk records one transaction per counterparty in a single atomic
// write.
func (s *LedgerService) CreateBulk(ctx context.Context, self core.UserID, req core.BulkRequest) ([]core.Transaction, error) {
	reqs, err := req.Expand(self, s.opts.Currency)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	txs := make([]core.Transaction, len(reqs))
	for i, n := range reqs {
		txs[i] = s.build(self, n, now)
	}

	saved, err := s.ledger.InsertMany(ctx, txs)
	if err != nil {
		return nil, storeFailure("bulk insert", err)
	}
	slog.InfoContext(ctx, "Bulk transactions recorded",
		"count", len(saved),
		"split", req.IsSplit,
		"amount_cents", req.Amount.Cents)
	for _, tx := range saved {
		s.publish(ctx, amqp.TransactionCreated, self, tx)
	}
	return saved, nil
}

func (s *LedgerService) build(self core.UserID, n core.NewTransaction, now time.Time) core.Transaction {
	payer, recipient := n.Parties(self)
	return core.Transaction{
		ID:          s.opts.NewID(),
		Amount:      n.Amount,
		PayerID:     payer,
		RecipientID: recipient,
		Description: strings.TrimSpace(n.Description),
		IsPayment:   n.IsPayment,
		ReceiptURL:  strings.TrimSpace(n.ReceiptURL),
		CreatedAt:   now,
	}
}

// Amend changes the mutable fields of a transaction the caller paid.
func (s *LedgerService) Amend(ctx context.Context, self core.UserID, id string, patch core.TransactionPatch) (core.Transaction, error) {
	if err := patch.Validate(); err != nil {
		return core.Transaction{}, err
	}
	existing, err := s.owned(ctx, self, id)
	if err != nil {
		return core.Transaction{}, err
	}
	patch.UpdatedAt = s.opts.Now()

	updated, err := s.ledger.UpdateOne(ctx, existing.ID, patch)
	if err != nil {
		return core.Transaction{}, storeFailure("update transaction", err)
	}
	s.publish(ctx, amqp.TransactionUpdated, self, updated)
	return updated, nil
}

// Delete removes a transaction the caller paid.
func (s *LedgerService) Delete(ctx context.Context, self core.UserID, id string) error {
	existing, err := s.owned(ctx, self, id)
	if err != nil {
		return err
	}
	if err := s.ledger.DeleteOne(ctx, existing.ID); err != nil {
		return storeFailure("delete transaction", err)
	}
	s.publish(ctx, amqp.TransactionDeleted, self, existing)
	return nil
}

// DeleteMany attempts every delete independently. Failures are counted,
// never propagated, and never undo sibling deletes.
func (s *LedgerService) DeleteMany(ctx context.Context, self core.UserID, ids []string) core.BulkDeleteResult {
	failed := make([]bool, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkDeleteWorkers)
	for i, id := range ids {
		g.Go(func() error {
			if err := s.Delete(gctx, self, id); err != nil {
				slog.WarnContext(gctx, "Bulk delete item failed", "id", id, "error", err)
				mu.Lock()
				failed[i] = true
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	var res core.BulkDeleteResult
	for i, id := range ids {
		if failed[i] {
			res.Failed++
			res.FailedIDs = append(res.FailedIDs, id)
			continue
		}
		res.Deleted++
	}
	slog.InfoContext(ctx, "Bulk delete finished", "deleted", res.Deleted, "failed", res.Failed)
	return res
}

func (s *LedgerService) owned(ctx context.Context, self core.UserID, id string) (core.Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return core.Transaction{}, fmt.Errorf("%w: missing transaction id", core.ErrValidation)
	}
	tx, err := s.ledger.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, storeFailure("get transaction", err)
	}
	if err := tx.Authorize(self); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// SearchUsers finds possible counterparties. An empty query matches nobody.
func (s *LedgerService) SearchUsers(ctx context.Context, self core.UserID, query string) ([]core.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []core.User{}, nil
	}
	users, err := s.ledger.SearchUsers(ctx, query, self, s.opts.SearchLimit)
	if err != nil {
		return nil, storeFailure("search users", err)
	}
	if users == nil {
		users = []core.User{}
	}
	return users, nil
}

// ResolveUsers looks up display details for ids.
func (s *LedgerService) ResolveUsers(ctx context.Context, ids []core.UserID) (map[core.UserID]core.User, error) {
	users, err := s.ledger.ResolveUsers(ctx, ids)
	if err != nil {
		return nil, storeFailure("resolve users", err)
	}
	return users, nil
}

// RenameUser changes the caller's display name.
func (s *LedgerService) RenameUser(ctx context.Context, self core.UserID, name string) (core.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.User{}, fmt.Errorf("%w: name is required", core.ErrValidation)
	}
	if len([]rune(name)) > maxNameLength {
		return core.User{}, fmt.Errorf("%w: name longer than %d characters", core.ErrValidation, maxNameLength)
	}
	u, err := s.ledger.RenameUser(ctx, self, name)
	if err != nil {
		return core.User{}, storeFailure("rename user", err)
	}
	return u, nil
}

// EnsureUser records the profile of an authenticated caller.
func (s *LedgerService) EnsureUser(ctx context.Context, u core.User) error {
	if err := s.ledger.UpsertUser(ctx, u); err != nil {
		return storeFailure("upsert user", err)
	}
	return nil
}

func (s *LedgerService) Ready(ctx context.Context) error {
	return s.ledger.Ping(ctx)
}

func (s *LedgerService) publish(ctx context.Context, kind amqp.EventKind, actor core.UserID, tx core.Transaction) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping event", "kind", kind)
		return
	}
	if err := s.publisher.Publish(ctx, kind, actor, tx); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", kind, "transaction_id", tx.ID, "error", err)
	}
}

// Close closes both storage and publisher connections.
func (s *LedgerService) Close() error {
	var errs []error
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}

// storeFailure keeps domain sentinels intact and maps anything else to
// core.ErrStore.
func storeFailure(op string, err error) error {
	switch {
	case errors.Is(err, core.ErrStore),
		errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrUnauthorized):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%w: %s: %v", core.ErrStore, op, err)
	}
}
