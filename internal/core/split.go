package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BulkRequest records one amount against several counterparties at once.
type BulkRequest struct {
	Amount         Money
	Type           TransactionType
	Counterparties []UserID
	Description    string
	ReceiptURL     string
	IsPayment      bool
	// IsSplit divides Amount between the counterparties and the creator.
	// Otherwise every counterparty is recorded for the full amount.
	IsSplit bool
}

// SplitAmount divides total between n counterparties plus the creator and
// rounds the share to cents.
func SplitAmount(total Money, n int) (Money, error) {
	if n < 1 {
		return Money{}, ErrMissingUser
	}
	share := Round2(total.Decimal().Div(decimal.NewFromInt(int64(n) + 1)))
	cents := share.Mul(hundred).IntPart()
	if cents < MinSplitCents {
		return Money{}, ErrSplitTooSmall
	}
	return Money{Cents: cents}, nil
}

// Expand turns the request into one create request per counterparty. Every
// resulting request is validated before anything is returned.
func (b BulkRequest) Expand(self UserID, currency string) ([]NewTransaction, error) {
	if err := b.Amount.Validate(); err != nil {
		return nil, err
	}
	if len(b.Counterparties) == 0 {
		return nil, ErrMissingUser
	}
	if dup := firstDuplicate(b.Counterparties); dup != "" {
		return nil, fmt.Errorf("%w: counterparty %s listed twice", ErrValidation, dup)
	}

	amount := b.Amount
	desc := strings.TrimSpace(b.Description)
	if b.IsSplit {
		share, err := SplitAmount(b.Amount, len(b.Counterparties))
		if err != nil {
			return nil, err
		}
		amount = share
		if desc != "" {
			desc = fmt.Sprintf("%s (Split: %s %s each)", desc, share, currency)
		}
	}

	out := make([]NewTransaction, 0, len(b.Counterparties))
	for _, other := range b.Counterparties {
		n := NewTransaction{
			Amount:      amount,
			Type:        b.Type,
			OtherUserID: other,
			Description: desc,
			ReceiptURL:  b.ReceiptURL,
			IsPayment:   b.IsPayment,
		}
		if err := n.Validate(self); err != nil {
			return nil, fmt.Errorf("counterparty %s: %w", other, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func firstDuplicate(ids []UserID) UserID {
	seen := make(map[UserID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id
		}
		seen[id] = struct{}{}
	}
	return ""
}
