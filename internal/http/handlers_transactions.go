package http

import (
	"fmt"
	"net/http"

	"tabs/internal/core"
	"tabs/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	u, err := caller(r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	n := req.toDomain()

	tx, err := s.ledger.Create(r.Context(), u.ID, n)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(r.Context()).WithComponent(log.ComponentLedger)).
		LogTransactionRecorded(r.Context(), string(u.ID), tx.ID, string(n.OtherUserID), tx.Amount.Cents, tx.IsPayment)
	s.touchRecent(r, u.ID, n.OtherUserID)
	writeJSON(w, r, http.StatusCreated, newTransactionJSON(tx))
}

func (s *Server) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	u, err := caller(r)
	if err != nil {
		writeError(w, r, log.OpBulkCreate, err)
		return
	}
	var req bulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpBulkCreate, err)
		return
	}
	b := req.toDomain()

	txs, err := s.ledger.CreateBulk(r.Context(), u.ID, b)
	if err != nil {
		writeError(w, r, log.OpBulkCreate, err)
		return
	}
	s.touchRecent(r, u.ID, b.Counterparties...)

	out := make([]transactionJSON, len(txs))
	for i, tx := range txs {
		out[i] = newTransactionJSON(tx)
	}
	writeJSON(w, r, http.StatusCreated, out)
}

func (s *Server) handleAmendTransaction(w http.ResponseWriter, r *http.Request) {
	u, err := caller(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	var req amendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	tx, err := s.ledger.Amend(r.Context(), u.ID, r.PathValue("id"), req.toDomain())
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newTransactionJSON(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	u, err := caller(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.ledger.Delete(r.Context(), u.ID, r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// maxBulkDelete bounds a single bulk-delete request.
const maxBulkDelete = 500

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	u, err := caller(r)
	if err != nil {
		writeError(w, r, log.OpBulkDelete, err)
		return
	}
	var req bulkDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpBulkDelete, err)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, r, log.OpBulkDelete, fmt.Errorf("%w: ids are required", core.ErrValidation))
		return
	}
	if len(req.IDs) > maxBulkDelete {
		writeError(w, r, log.OpBulkDelete, fmt.Errorf("%w: at most %d ids per request", core.ErrValidation, maxBulkDelete))
		return
	}
	ids := make([]string, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = sanitizeInput(id)
	}

	res := s.ledger.DeleteMany(r.Context(), u.ID, ids)
	failed := res.FailedIDs
	if failed == nil {
		failed = []string{}
	}
	writeJSON(w, r, http.StatusOK, bulkDeleteJSON{Deleted: res.Deleted, Failed: res.Failed, FailedIDs: failed})
}
