package http

import (
	"net/http"

	"tabs/internal/log"
)

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	u, err := caller(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	sheet, err := s.ledger.Balances(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newBalancesJSON(sheet))
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	u, err := caller(r)
	if err != nil {
		writeError(w, r, log.OpAnalyze, err)
		return
	}
	a, err := s.ledger.Analysis(r.Context(), u.ID, analysisQuery(r))
	if err != nil {
		writeError(w, r, log.OpAnalyze, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newAnalysisJSON(a, s.ledger.Currency()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	u, err := caller(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	entries, err := s.ledger.History(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	out := make([]historyJSON, len(entries))
	for i, e := range entries {
		out[i] = newHistoryJSON(e)
	}
	writeJSON(w, r, http.StatusOK, out)
}
