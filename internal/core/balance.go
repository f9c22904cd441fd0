package core

import "sort"

// CounterpartyBalance is the lifetime net position toward one counterparty.
// Positive means the counterparty owes the viewer.
type CounterpartyBalance struct {
	UserID     UserID
	Name       string
	Email      string
	NetBalance Money
}

type BalanceSheet struct {
	OwesMe []CounterpartyBalance
	IOwe   []CounterpartyBalance
}

// NetBalances folds every transaction involving viewer into a signed
// balance per counterparty. The fold is a plain sum, so input order is
// irrelevant.
func NetBalances(viewer UserID, txs []Transaction) map[UserID]Money {
	out := make(map[UserID]Money)
	for _, tx := range txs {
		c := Classify(tx, viewer)
		if !c.Involved {
			continue
		}
		out[c.Counterparty] = out[c.Counterparty].Add(c.Signed)
	}
	return out
}

// ComputeBalances partitions net balances into the two lists. Exactly zero
// balances appear in neither. Lists are ordered by magnitude, largest
// first, ties broken by counterparty id.
func ComputeBalances(viewer UserID, txs []Transaction) BalanceSheet {
	var sheet BalanceSheet
	for id, bal := range NetBalances(viewer, txs) {
		row := CounterpartyBalance{UserID: id, NetBalance: bal}
		switch {
		case bal.Cents > 0:
			sheet.OwesMe = append(sheet.OwesMe, row)
		case bal.Cents < 0:
			sheet.IOwe = append(sheet.IOwe, row)
		}
	}
	sortByMagnitude(sheet.OwesMe)
	sortByMagnitude(sheet.IOwe)
	return sheet
}

// Counterparties lists every user id appearing in the sheet.
func (s BalanceSheet) Counterparties() []UserID {
	ids := make([]UserID, 0, len(s.OwesMe)+len(s.IOwe))
	for _, r := range s.OwesMe {
		ids = append(ids, r.UserID)
	}
	for _, r := range s.IOwe {
		ids = append(ids, r.UserID)
	}
	return ids
}

// Annotate fills display fields from a directory lookup.
func (s *BalanceSheet) Annotate(users map[UserID]User) {
	for _, rows := range [][]CounterpartyBalance{s.OwesMe, s.IOwe} {
		for i := range rows {
			if u, ok := users[rows[i].UserID]; ok {
				rows[i].Name = u.Name
				rows[i].Email = u.Email
			}
		}
	}
}

func sortByMagnitude(rows []CounterpartyBalance) {
	abs := func(m Money) int64 {
		if m.Cents < 0 {
			return -m.Cents
		}
		return m.Cents
	}
	sort.Slice(rows, func(i, j int) bool {
		ai, aj := abs(rows[i].NetBalance), abs(rows[j].NetBalance)
		if ai != aj {
			return ai > aj
		}
		return rows[i].UserID < rows[j].UserID
	})
}
