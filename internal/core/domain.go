package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Lend   TransactionType = "lend"
	Borrow TransactionType = "borrow"
)

type (
	// UserID is the stable identifier issued by the identity provider.
	UserID string

	TransactionType string

	User struct {
		ID    UserID
		Name  string
		Email string
	}

	// Transaction is a directed debt record between a payer and a recipient.
	// For ordinary records the payer is the lender; for payments the payer
	// is the one settling.
	Transaction struct {
		ID          string
		Amount      Money
		PayerID     UserID
		RecipientID UserID
		Description string
		IsPayment   bool
		ReceiptURL  string
		CreatedAt   time.Time
		UpdatedAt   time.Time // zero until amended
	}

	// NewTransaction is a single create request as seen from the creator.
	NewTransaction struct {
		Amount      Money
		Type        TransactionType
		OtherUserID UserID
		Description string
		ReceiptURL  string
		IsPayment   bool
	}

	// TransactionPatch holds the mutable fields of a transaction.
	TransactionPatch struct {
		Amount      Money
		Description string
		ReceiptURL  string
		IsPayment   bool
		UpdatedAt   time.Time
	}
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("not allowed")
	ErrNotFound     = errors.New("not found")
	ErrStore        = errors.New("store failure")

	ErrInvalidAmount    = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrEmptyDescription = fmt.Errorf("%w: empty description", ErrValidation)
	ErrInvalidType      = fmt.Errorf("%w: type must be 'lend' or 'borrow'", ErrValidation)
	ErrMissingUser      = fmt.Errorf("%w: missing counterparty", ErrValidation)
	ErrSelfTransaction  = fmt.Errorf("%w: counterparty must differ from yourself", ErrValidation)
	ErrSplitTooSmall    = fmt.Errorf("%w: split amount per person is below 0.01", ErrValidation)
	ErrNotPayer         = fmt.Errorf("%w: only the payer may change this transaction", ErrUnauthorized)
)

func (t TransactionType) Valid() bool {
	return t == Lend || t == Borrow
}

// Validate checks a create request on behalf of self.
func (n NewTransaction) Validate(self UserID) error {
	if err := n.Amount.Validate(); err != nil {
		return err
	}
	if !n.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(string(n.OtherUserID)) == "" {
		return ErrMissingUser
	}
	if n.OtherUserID == self {
		return ErrSelfTransaction
	}
	if strings.TrimSpace(n.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

// Parties maps the request type onto payer and recipient.
func (n NewTransaction) Parties(self UserID) (payer, recipient UserID) {
	if n.Type == Lend {
		return self, n.OtherUserID
	}
	return n.OtherUserID, self
}

func (p TransactionPatch) Validate() error {
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

// Validate checks the persisted-row invariants.
func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.PayerID == "" || t.RecipientID == "" {
		return ErrMissingUser
	}
	if t.PayerID == t.RecipientID {
		return ErrSelfTransaction
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

// Involves reports whether u is one of the two parties.
func (t Transaction) Involves(u UserID) bool {
	return t.PayerID == u || t.RecipientID == u
}

// Apply returns a copy of t with the patch applied. Parties and creation
// time never change.
func (t Transaction) Apply(p TransactionPatch) Transaction {
	t.Amount = p.Amount
	t.Description = strings.TrimSpace(p.Description)
	t.ReceiptURL = strings.TrimSpace(p.ReceiptURL)
	t.IsPayment = p.IsPayment
	t.UpdatedAt = p.UpdatedAt
	return t
}

// Authorize enforces the payer-only rule for amendments and deletions.
func (t Transaction) Authorize(caller UserID) error {
	if t.PayerID != caller {
		return ErrNotPayer
	}
	return nil
}
