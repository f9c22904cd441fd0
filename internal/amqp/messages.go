package amqp

import (
	"encoding/json"
	"time"

	"tabs/internal/core"
)

// EventKind doubles as the routing key of a published event.
type EventKind string

const (
	TransactionCreated EventKind = "transaction.created"
	TransactionUpdated EventKind = "transaction.updated"
	TransactionDeleted EventKind = "transaction.deleted"
)

// TransactionEvent notifies downstream consumers that a ledger row changed.
// Consumers re-read the ledger; the event only carries what routing and
// auditing need.
type TransactionEvent struct {
	Kind          EventKind   `json:"kind"`
	TransactionID string      `json:"transaction_id"`
	ActorID       core.UserID `json:"actor_id"`
	PayerID       core.UserID `json:"payer_id,omitempty"`
	RecipientID   core.UserID `json:"recipient_id,omitempty"`
	AmountCents   int64       `json:"amount_cents,omitempty"`
	IsPayment     bool        `json:"is_payment"`
	Timestamp     time.Time   `json:"timestamp"`
}

// NewTransactionEvent builds an event for tx performed by actor.
func NewTransactionEvent(kind EventKind, actor core.UserID, tx core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Kind:          kind,
		TransactionID: tx.ID,
		ActorID:       actor,
		PayerID:       tx.PayerID,
		RecipientID:   tx.RecipientID,
		AmountCents:   tx.Amount.Cents,
		IsPayment:     tx.IsPayment,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
