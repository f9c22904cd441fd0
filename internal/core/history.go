package core

import "sort"

// UnknownUser is shown when the directory has no profile for a counterparty.
const UnknownUser = "Unknown"

// HistoryEntry is a transaction annotated from the viewer's side.
type HistoryEntry struct {
	Transaction
	// Lent is true when the viewer is the payer.
	Lent              bool
	CounterpartyID    UserID
	CounterpartyName  string
	CounterpartyEmail string
	CanEdit           bool
}

// BulkDeleteResult tallies a best-effort batch removal.
type BulkDeleteResult struct {
	Deleted   int
	Failed    int
	FailedIDs []string
}

// History annotates the viewer's transactions, newest first.
func History(viewer UserID, txs []Transaction, users map[UserID]User) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(txs))
	for _, tx := range txs {
		c := Classify(tx, viewer)
		if !c.Involved {
			continue
		}
		e := HistoryEntry{
			Transaction:      tx,
			Lent:             tx.PayerID == viewer,
			CounterpartyID:   c.Counterparty,
			CounterpartyName: UnknownUser,
			CanEdit:          tx.PayerID == viewer,
		}
		if u, ok := users[c.Counterparty]; ok {
			if u.Name != "" {
				e.CounterpartyName = u.Name
			}
			e.CounterpartyEmail = u.Email
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
