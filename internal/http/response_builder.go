package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"tabs/internal/core"
)

type userJSON struct {
	ID    core.UserID `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
}

type transactionJSON struct {
	ID          string      `json:"id"`
	Amount      core.Money  `json:"amount"`
	Description string      `json:"description"`
	PayerID     core.UserID `json:"payerId"`
	RecipientID core.UserID `json:"recipientId"`
	IsPayment   bool        `json:"isPayment"`
	ReceiptURL  string      `json:"receiptUrl,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   *time.Time  `json:"updatedAt,omitempty"`
}

type historyJSON struct {
	ID          string     `json:"id"`
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	Type        string     `json:"type"`
	ReceiptURL  string     `json:"receiptUrl,omitempty"`
	IsPayment   bool       `json:"isPayment"`
	CanEdit     bool       `json:"canEdit"`
	OtherPerson userJSON   `json:"otherPerson"`
}

type balanceJSON struct {
	UserID     core.UserID `json:"userId"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	NetBalance core.Money  `json:"netBalance"`
}

type balancesJSON struct {
	OwesMe []balanceJSON `json:"owesMe"`
	IOwe   []balanceJSON `json:"iOwe"`
}

type dailyJSON struct {
	Date   string     `json:"date"`
	Amount core.Money `json:"amount"`
}

type monthlyJSON struct {
	Month        string       `json:"month"`
	AvgExpense   core.Average `json:"avgExpense"`
	AvgLending   core.Average `json:"avgLending"`
	AvgBorrowing core.Average `json:"avgBorrowing"`
}

type periodJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Month string `json:"month"`
	Days  int    `json:"days"`
}

type summaryJSON struct {
	TotalExpenses  core.Money `json:"totalExpenses"`
	TotalLending   core.Money `json:"totalLending"`
	TotalBorrowing core.Money `json:"totalBorrowing"`
	NetBalance     core.Money `json:"netBalance"`
}

type trendsJSON struct {
	Expenses  core.Trend `json:"expenses,omitempty"`
	Lending   core.Trend `json:"lending,omitempty"`
	Borrowing core.Trend `json:"borrowing,omitempty"`
}

type analysisJSON struct {
	Currency        string        `json:"currency"`
	Period          periodJSON    `json:"period"`
	DailyExpenses   []dailyJSON   `json:"dailyExpenses"`
	LendingData     []dailyJSON   `json:"lendingData"`
	BorrowingData   []dailyJSON   `json:"borrowingData"`
	MonthlyAverages []monthlyJSON `json:"monthlyAverages"`
	Summary         summaryJSON   `json:"summary"`
	Trends          trendsJSON    `json:"trends"`
}

type bulkDeleteJSON struct {
	Deleted   int      `json:"deleted"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failedIds"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func newUserJSON(u core.User) userJSON {
	return userJSON{ID: u.ID, Name: u.Name, Email: u.Email}
}

func newTransactionJSON(tx core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          tx.ID,
		Amount:      tx.Amount,
		Description: tx.Description,
		PayerID:     tx.PayerID,
		RecipientID: tx.RecipientID,
		IsPayment:   tx.IsPayment,
		ReceiptURL:  tx.ReceiptURL,
		CreatedAt:   tx.CreatedAt.UTC(),
		UpdatedAt:   optionalTime(tx.UpdatedAt.UTC()),
	}
}

func newHistoryJSON(e core.HistoryEntry) historyJSON {
	kind := "borrowed"
	if e.Lent {
		kind = "lent"
	}
	return historyJSON{
		ID:          e.ID,
		Amount:      e.Amount,
		Description: e.Description,
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   optionalTime(e.UpdatedAt.UTC()),
		Type:        kind,
		ReceiptURL:  e.ReceiptURL,
		IsPayment:   e.IsPayment,
		CanEdit:     e.CanEdit,
		OtherPerson: userJSON{ID: e.CounterpartyID, Name: e.CounterpartyName, Email: e.CounterpartyEmail},
	}
}

func newBalancesJSON(sheet core.BalanceSheet) balancesJSON {
	conv := func(rows []core.CounterpartyBalance) []balanceJSON {
		out := make([]balanceJSON, 0, len(rows))
		for _, r := range rows {
			name := r.Name
			if name == "" {
				name = core.UnknownUser
			}
			out = append(out, balanceJSON{UserID: r.UserID, Name: name, Email: r.Email, NetBalance: r.NetBalance})
		}
		return out
	}
	return balancesJSON{OwesMe: conv(sheet.OwesMe), IOwe: conv(sheet.IOwe)}
}

func newSeriesJSON(s core.Series) []dailyJSON {
	out := make([]dailyJSON, len(s))
	for i, d := range s {
		out[i] = dailyJSON{Date: d.Date.String(), Amount: d.Amount}
	}
	return out
}

func newAnalysisJSON(a core.Analysis, currency string) analysisJSON {
	out := analysisJSON{
		Currency: currency,
		Period: periodJSON{
			Start: a.Period.Start.String(),
			End:   a.Period.End.String(),
			Month: a.Period.Month.MonthKey(),
			Days:  a.Period.Days(),
		},
		DailyExpenses:   newSeriesJSON(a.Expenses),
		LendingData:     newSeriesJSON(a.Lending),
		BorrowingData:   newSeriesJSON(a.Borrowing),
		MonthlyAverages: make([]monthlyJSON, 0, len(a.MonthlyAverages)),
		Summary: summaryJSON{
			TotalExpenses:  a.Summary.TotalExpenses,
			TotalLending:   a.Summary.TotalLending,
			TotalBorrowing: a.Summary.TotalBorrowing,
			NetBalance:     a.Summary.NetBalance,
		},
	}
	for _, m := range a.MonthlyAverages {
		out.MonthlyAverages = append(out.MonthlyAverages, monthlyJSON(m))
	}
	out.Trends.Expenses, _ = a.Expenses.Trend()
	out.Trends.Lending, _ = a.Lending.Trend()
	out.Trends.Borrowing, _ = a.Borrowing.Trend()
	return out
}

// writeJSON sends v with the given status. Encoding failures can only be
// logged since the header is already out.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.WarnContext(r.Context(), "Failed to encode response", "path", r.URL.Path, "error", err)
	}
}
