// Package http serves the ledger as a JSON API.
//
// This file decodes and sanitizes request bodies and query parameters.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"tabs/internal/core"
	"tabs/internal/services"
)

const maxBodyBytes = 1 << 20

type createRequest struct {
	Amount      core.Money `json:"amount"`
	Type        string     `json:"type"`
	OtherUserID string     `json:"otherUserId"`
	Description string     `json:"description"`
	ReceiptURL  string     `json:"receiptUrl"`
	IsPayment   bool       `json:"isPayment"`
}

type bulkRequest struct {
	Amount       core.Money `json:"amount"`
	Type         string     `json:"type"`
	OtherUserIDs []string   `json:"otherUserIds"`
	Description  string     `json:"description"`
	ReceiptURL   string     `json:"receiptUrl"`
	IsPayment    bool       `json:"isPayment"`
	IsSplit      bool       `json:"isSplit"`
}

type amendRequest struct {
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	ReceiptURL  string     `json:"receiptUrl"`
	IsPayment   bool       `json:"isPayment"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type renameRequest struct {
	Name string `json:"name"`
}

// decodeJSON reads a single JSON document of at most maxBodyBytes into v.
// Every failure is reported as a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, core.ErrValidation):
			return err
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", core.ErrValidation)
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body larger than %d bytes", core.ErrValidation, maxErr.Limit)
		default:
			return fmt.Errorf("%w: malformed JSON body: %v", core.ErrValidation, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", core.ErrValidation)
	}
	return nil
}

func (c createRequest) toDomain() core.NewTransaction {
	return core.NewTransaction{
		Amount:      c.Amount,
		Type:        core.TransactionType(strings.ToLower(sanitizeInput(c.Type))),
		OtherUserID: core.UserID(sanitizeInput(c.OtherUserID)),
		Description: sanitizeInput(c.Description),
		ReceiptURL:  sanitizeInput(c.ReceiptURL),
		IsPayment:   c.IsPayment,
	}
}

func (b bulkRequest) toDomain() core.BulkRequest {
	ids := make([]core.UserID, 0, len(b.OtherUserIDs))
	for _, id := range b.OtherUserIDs {
		ids = append(ids, core.UserID(sanitizeInput(id)))
	}
	return core.BulkRequest{
		Amount:         b.Amount,
		Type:           core.TransactionType(strings.ToLower(sanitizeInput(b.Type))),
		Counterparties: ids,
		Description:    sanitizeInput(b.Description),
		ReceiptURL:     sanitizeInput(b.ReceiptURL),
		IsPayment:      b.IsPayment,
		IsSplit:        b.IsSplit,
	}
}

func (a amendRequest) toDomain() core.TransactionPatch {
	return core.TransactionPatch{
		Amount:      a.Amount,
		Description: sanitizeInput(a.Description),
		ReceiptURL:  sanitizeInput(a.ReceiptURL),
		IsPayment:   a.IsPayment,
	}
}

func analysisQuery(r *http.Request) services.AnalysisQuery {
	q := r.URL.Query()
	return services.AnalysisQuery{
		Range: sanitizeInput(q.Get("range")),
		Start: sanitizeInput(q.Get("startDate")),
		End:   sanitizeInput(q.Get("endDate")),
		Month: sanitizeInput(q.Get("month")),
	}
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
