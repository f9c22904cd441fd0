package http

import (
	"net/http"

	"tabs/internal/core"
	"tabs/internal/log"
)

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	u, err := caller(r)
	if err != nil {
		writeError(w, r, log.OpSearch, err)
		return
	}
	users, err := s.ledger.SearchUsers(r.Context(), u.ID, sanitizeInput(r.URL.Query().Get("q")))
	if err != nil {
		writeError(w, r, log.OpSearch, err)
		return
	}
	out := make([]userJSON, len(users))
	for i, found := range users {
		out[i] = newUserJSON(found)
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleRecentUsers lists the caller's recent counterparties that still
// resolve to a profile, most recent first.
func (s *Server) handleRecentUsers(w http.ResponseWriter, r *http.Request) {
	u, err := caller(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	out := []userJSON{}
	if s.recent == nil {
		writeJSON(w, r, http.StatusOK, out)
		return
	}

	ids, err := s.recent.List(r.Context(), u.ID)
	if err != nil {
		// Recent lists are a convenience; an unavailable tracker is not an error.
		log.FromContext(r.Context()).WithComponent(log.ComponentRecent).
			WarnContext(r.Context(), "Failed to list recent counterparties", log.FieldUserID, u.ID, log.FieldError, err)
		writeJSON(w, r, http.StatusOK, out)
		return
	}
	users, err := s.ledger.ResolveUsers(r.Context(), ids)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	for _, id := range ids {
		if found, ok := users[id]; ok {
			out = append(out, newUserJSON(found))
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleRenameUser(w http.ResponseWriter, r *http.Request) {
	u, err := caller(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	updated, err := s.ledger.RenameUser(r.Context(), u.ID, sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newUserJSON(updated))
}

// touchRecent records counterparties after a successful write. Failures
// are logged and never affect the response.
func (s *Server) touchRecent(r *http.Request, self core.UserID, ids ...core.UserID) {
	if s.recent == nil || len(ids) == 0 {
		return
	}
	if err := s.recent.Touch(r.Context(), self, ids...); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentRecent).
			WarnContext(r.Context(), "Failed to record recent counterparties",
				log.FieldUserID, self, log.FieldCount, len(ids), log.FieldError, err)
	}
}
