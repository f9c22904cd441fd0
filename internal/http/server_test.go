package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tabs/internal/auth"
	"tabs/internal/core"
	"tabs/internal/log"
	"tabs/internal/recent"
	"tabs/internal/services"
	"tabs/internal/store/memory"
)

const testSecret = "0123456789abcdef-test"

var (
	ada = core.User{ID: "a", Name: "Ada", Email: "ada@example.com"}
	bea = core.User{ID: "b", Name: "Bea", Email: "bea@example.com"}
	cyd = core.User{ID: "c", Name: "Cyd", Email: "cyd@example.com"}
)

type harness struct {
	t      *testing.T
	srv    *Server
	svc    *services.LedgerService
	tokens map[core.UserID]string
	ids    int
}

func newHarness(t *testing.T, wrap func(*services.LedgerService) Ledger, rateLimit int) *harness {
	t.Helper()
	verifier, err := auth.NewVerifier(testSecret, "")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	h := &harness{t: t, tokens: map[core.UserID]string{}}
	h.svc = services.NewLedgerService(memory.New(cyd), nil, services.Options{
		Now:   func() time.Time { return time.Date(2026, 3, 31, 15, 0, 0, 0, time.UTC) },
		NewID: func() string { h.ids++; return fmt.Sprintf("tx-%d", h.ids) },
	})

	var ledger Ledger = h.svc
	if wrap != nil {
		ledger = wrap(h.svc)
	}
	srv, err := NewServer(Options{
		Verifier:           verifier,
		SessionCookie:      "tabs_session",
		RateLimitPerMinute: rateLimit,
		Logger:             log.Discard(),
	}, ledger, recent.NewMemory(100, time.Hour))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	h.srv = srv

	for _, u := range []core.User{ada, bea, cyd} {
		tok, err := verifier.Mint(u, time.Hour)
		if err != nil {
			t.Fatalf("Mint: %v", err)
		}
		h.tokens[u.ID] = tok
	}
	return h
}

// do sends a request as user; an empty user sends no credentials.
func (h *harness) do(user core.UserID, method, path, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.1:4000"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+h.tokens[user])
	}
	rr := httptest.NewRecorder()
	h.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (h *harness) lend(from, to core.UserID, amount string) string {
	h.t.Helper()
	rr := h.do(from, http.MethodPost, "/api/transactions",
		fmt.Sprintf(`{"amount":%s,"type":"lend","otherUserId":%q,"description":"lunch"}`, amount, to))
	if rr.Code != http.StatusCreated {
		h.t.Fatalf("create status=%d body=%s", rr.Code, rr.Body)
	}
	var tx transactionJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &tx); err != nil {
		h.t.Fatalf("decode: %v", err)
	}
	return tx.ID
}

// Response mirrors with plain numbers; the API emits signed and zero
// amounts that core.Money deliberately refuses to parse.
type (
	wireBalance struct {
		UserID     core.UserID `json:"userId"`
		Name       string      `json:"name"`
		NetBalance float64     `json:"netBalance"`
	}
	wireBalances struct {
		OwesMe []wireBalance `json:"owesMe"`
		IOwe   []wireBalance `json:"iOwe"`
	}
	wireDaily struct {
		Date   string  `json:"date"`
		Amount float64 `json:"amount"`
	}
	wireAnalysis struct {
		Currency        string      `json:"currency"`
		Period          periodJSON  `json:"period"`
		DailyExpenses   []wireDaily `json:"dailyExpenses"`
		LendingData     []wireDaily `json:"lendingData"`
		BorrowingData   []wireDaily `json:"borrowingData"`
		MonthlyAverages []struct {
			Month      string  `json:"month"`
			AvgExpense float64 `json:"avgExpense"`
		} `json:"monthlyAverages"`
		Summary struct {
			TotalExpenses float64 `json:"totalExpenses"`
			NetBalance    float64 `json:"netBalance"`
		} `json:"summary"`
		Trends trendsJSON `json:"trends"`
	}
)

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rr.Body, err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t, nil, 0)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := h.do("", http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestAPIRequiresSession(t *testing.T) {
	h := newHarness(t, nil, 0)

	rr := h.do("", http.MethodGet, "/api/balances", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"error"`) {
		t.Fatalf("expected JSON error body, got %s", rr.Body)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/balances", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr = httptest.NewRecorder()
	h.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", rr.Code)
	}
}

func TestSessionCookie(t *testing.T) {
	h := newHarness(t, nil, 0)
	req := httptest.NewRequest(http.MethodGet, "/api/balances", nil)
	req.AddCookie(&http.Cookie{Name: "tabs_session", Value: h.tokens[ada.ID]})
	rr := httptest.NewRecorder()
	h.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("cookie session status=%d body=%s", rr.Code, rr.Body)
	}
}

func TestLendShowsOnBothSides(t *testing.T) {
	h := newHarness(t, nil, 0)
	// Bea must be known to the directory for her name to resolve.
	h.do(bea.ID, http.MethodGet, "/api/balances", "")
	h.lend(ada.ID, bea.ID, "100")

	rr := h.do(ada.ID, http.MethodGet, "/api/balances", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("balances status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"netBalance":100.00`) {
		t.Fatalf("expected two-decimal amount, got %s", rr.Body)
	}
	mine := decode[wireBalances](t, rr)
	if len(mine.OwesMe) != 1 || mine.OwesMe[0].UserID != bea.ID || mine.OwesMe[0].Name != "Bea" || len(mine.IOwe) != 0 {
		t.Fatalf("lender view = %+v", mine)
	}

	theirs := decode[wireBalances](t, h.do(bea.ID, http.MethodGet, "/api/balances", ""))
	if len(theirs.IOwe) != 1 || theirs.IOwe[0].NetBalance != -100 || len(theirs.OwesMe) != 0 {
		t.Fatalf("borrower view = %+v", theirs)
	}
}

func TestPaymentLowersPayerBalance(t *testing.T) {
	h := newHarness(t, nil, 0)
	h.lend(ada.ID, bea.ID, "100")
	rr := h.do(ada.ID, http.MethodPost, "/api/transactions",
		`{"amount":"20","type":"lend","otherUserId":"b","description":"settling","isPayment":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("payment status=%d body=%s", rr.Code, rr.Body)
	}

	mine := decode[wireBalances](t, h.do(ada.ID, http.MethodGet, "/api/balances", ""))
	if len(mine.OwesMe) != 1 || mine.OwesMe[0].NetBalance != 80 {
		t.Fatalf("payer view = %+v", mine)
	}
	theirs := decode[wireBalances](t, h.do(bea.ID, http.MethodGet, "/api/balances", ""))
	if len(theirs.IOwe) != 1 || theirs.IOwe[0].NetBalance != -80 {
		t.Fatalf("recipient view = %+v", theirs)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t, nil, 0)
	tests := []struct {
		name string
		body string
	}{
		{"negative amount", `{"amount":-5,"type":"lend","otherUserId":"b","description":"x"}`},
		{"zero amount", `{"amount":0,"type":"lend","otherUserId":"b","description":"x"}`},
		{"unknown type", `{"amount":5,"type":"gift","otherUserId":"b","description":"x"}`},
		{"self", `{"amount":5,"type":"lend","otherUserId":"a","description":"x"}`},
		{"missing description", `{"amount":5,"type":"lend","otherUserId":"b","description":"  "}`},
		{"malformed", `{"amount":`},
		{"empty", ``},
		{"trailing", `{"amount":5,"type":"lend","otherUserId":"b","description":"x"} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := h.do(ada.ID, http.MethodPost, "/api/transactions", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body)
			}
		})
	}
}

func TestAmendAndDeleteAreOwnerOnly(t *testing.T) {
	h := newHarness(t, nil, 0)
	id := h.lend(ada.ID, bea.ID, "10")
	body := `{"amount":12.5,"description":"dinner"}`

	if rr := h.do(bea.ID, http.MethodPut, "/api/transactions/"+id, body); rr.Code != http.StatusForbidden {
		t.Fatalf("recipient amend: expected 403, got %d", rr.Code)
	}
	if rr := h.do(bea.ID, http.MethodDelete, "/api/transactions/"+id, ""); rr.Code != http.StatusForbidden {
		t.Fatalf("recipient delete: expected 403, got %d", rr.Code)
	}
	if rr := h.do(ada.ID, http.MethodPut, "/api/transactions/missing", body); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown id: expected 404, got %d", rr.Code)
	}

	rr := h.do(ada.ID, http.MethodPut, "/api/transactions/"+id, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("amend status=%d body=%s", rr.Code, rr.Body)
	}
	got := decode[transactionJSON](t, rr)
	if got.Amount.Cents != 1250 || got.Description != "dinner" || got.UpdatedAt == nil {
		t.Fatalf("amended = %+v", got)
	}

	if rr := h.do(ada.ID, http.MethodDelete, "/api/transactions/"+id, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := h.do(ada.ID, http.MethodDelete, "/api/transactions/"+id, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rr.Code)
	}
}

func TestBulkSplit(t *testing.T) {
	h := newHarness(t, nil, 0)
	rr := h.do(ada.ID, http.MethodPost, "/api/transactions/bulk",
		`{"amount":90,"type":"lend","otherUserIds":["b","c"],"description":"Dinner","isSplit":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("bulk status=%d body=%s", rr.Code, rr.Body)
	}
	txs := decode[[]transactionJSON](t, rr)
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	for _, tx := range txs {
		if tx.Amount.Cents != 3000 || tx.Description != "Dinner (Split: 30.00 ETB each)" {
			t.Fatalf("split tx = %+v", tx)
		}
	}

	rr = h.do(ada.ID, http.MethodPost, "/api/transactions/bulk",
		`{"amount":0.01,"type":"lend","otherUserIds":["b","c"],"description":"crumb","isSplit":true}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("tiny split: expected 400, got %d", rr.Code)
	}
}

func TestBulkDeleteCountsFailures(t *testing.T) {
	h := newHarness(t, nil, 0)
	first := h.lend(ada.ID, bea.ID, "1")
	second := h.lend(ada.ID, bea.ID, "2")
	foreign := h.lend(bea.ID, ada.ID, "3")

	body := fmt.Sprintf(`{"ids":[%q,"nope",%q,%q]}`, first, second, foreign)
	rr := h.do(ada.ID, http.MethodPost, "/api/transactions/bulk-delete", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("bulk delete status=%d body=%s", rr.Code, rr.Body)
	}
	res := decode[bulkDeleteJSON](t, rr)
	if res.Deleted != 2 || res.Failed != 2 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.FailedIDs) != 2 || res.FailedIDs[0] != "nope" || res.FailedIDs[1] != foreign {
		t.Fatalf("failed ids = %v", res.FailedIDs)
	}

	if rr := h.do(ada.ID, http.MethodPost, "/api/transactions/bulk-delete", `{"ids":[]}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("empty ids: expected 400, got %d", rr.Code)
	}
}

func TestHistory(t *testing.T) {
	h := newHarness(t, nil, 0)
	h.do(bea.ID, http.MethodGet, "/api/balances", "")
	h.lend(ada.ID, bea.ID, "5")
	h.lend(ada.ID, "ghost", "7")

	entries := decode[[]historyJSON](t, h.do(ada.ID, http.MethodGet, "/api/transactions", ""))
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	byOther := map[core.UserID]historyJSON{}
	for _, e := range entries {
		if e.Type != "lent" || !e.CanEdit {
			t.Fatalf("entry = %+v", e)
		}
		byOther[e.OtherPerson.ID] = e
	}
	if byOther[bea.ID].OtherPerson.Name != "Bea" || byOther["ghost"].OtherPerson.Name != core.UnknownUser {
		t.Fatalf("names = %+v", byOther)
	}

	theirs := decode[[]historyJSON](t, h.do(bea.ID, http.MethodGet, "/api/transactions", ""))
	if len(theirs) != 1 || theirs[0].Type != "borrowed" || theirs[0].CanEdit {
		t.Fatalf("recipient history = %+v", theirs)
	}
}

func TestAnalysis(t *testing.T) {
	h := newHarness(t, nil, 0)
	h.lend(bea.ID, ada.ID, "12")

	rr := h.do(ada.ID, http.MethodGet, "/api/analysis?range=7d", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("analysis status=%d body=%s", rr.Code, rr.Body)
	}
	a := decode[wireAnalysis](t, rr)
	if len(a.DailyExpenses) != 8 || len(a.LendingData) != 8 || len(a.BorrowingData) != 8 {
		t.Fatalf("series lengths = %d/%d/%d", len(a.DailyExpenses), len(a.LendingData), len(a.BorrowingData))
	}
	if a.Period.Start != "2026-03-24" || a.Period.End != "2026-03-31" || a.Currency != "ETB" {
		t.Fatalf("period = %+v currency=%s", a.Period, a.Currency)
	}
	if a.Summary.TotalExpenses != 12 || a.DailyExpenses[7].Amount != 12 || a.Summary.NetBalance != 0 {
		t.Fatalf("summary = %+v", a.Summary)
	}
	if a.Trends.Expenses != core.TrendDecreasing {
		t.Fatalf("trend = %q", a.Trends.Expenses)
	}
	if len(a.MonthlyAverages) != 1 || a.MonthlyAverages[0].Month != "2026-03" || a.MonthlyAverages[0].AvgExpense != 12 {
		t.Fatalf("monthly = %+v", a.MonthlyAverages)
	}

	rr = h.do(ada.ID, http.MethodGet, "/api/analysis?startDate=2026-03-01&endDate=2026-03-10", "")
	if got := decode[wireAnalysis](t, rr); len(got.DailyExpenses) != 10 {
		t.Fatalf("custom range length = %d", len(got.DailyExpenses))
	}

	for _, q := range []string{"range=1y", "startDate=2026-03-10&endDate=2026-03-01", "startDate=2024-01-01&endDate=2026-01-01"} {
		if rr := h.do(ada.ID, http.MethodGet, "/api/analysis?"+q, ""); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rr.Code)
		}
	}
}

func TestUsersSearchRecentAndRename(t *testing.T) {
	h := newHarness(t, nil, 0)
	h.do(bea.ID, http.MethodGet, "/api/balances", "")

	if got := decode[[]userJSON](t, h.do(ada.ID, http.MethodGet, "/api/users/search?q=", "")); len(got) != 0 {
		t.Fatalf("empty query should match nobody, got %+v", got)
	}
	got := decode[[]userJSON](t, h.do(ada.ID, http.MethodGet, "/api/users/search?q=BEA", ""))
	if len(got) != 1 || got[0].ID != bea.ID {
		t.Fatalf("search = %+v", got)
	}
	if got := decode[[]userJSON](t, h.do(ada.ID, http.MethodGet, "/api/users/search?q=ada", "")); len(got) != 0 {
		t.Fatalf("search must exclude the caller, got %+v", got)
	}

	if got := decode[[]userJSON](t, h.do(ada.ID, http.MethodGet, "/api/users/recent", "")); len(got) != 0 {
		t.Fatalf("recent before any create = %+v", got)
	}
	h.lend(ada.ID, bea.ID, "1")
	h.lend(ada.ID, cyd.ID, "1")
	recentUsers := decode[[]userJSON](t, h.do(ada.ID, http.MethodGet, "/api/users/recent", ""))
	if len(recentUsers) != 2 || recentUsers[0].ID != cyd.ID || recentUsers[1].ID != bea.ID {
		t.Fatalf("recent = %+v", recentUsers)
	}

	rr := h.do(ada.ID, http.MethodPost, "/api/user", `{"name":"  Ada L.  "}`)
	if rr.Code != http.StatusOK || decode[userJSON](t, rr).Name != "Ada L." {
		t.Fatalf("rename status=%d body=%s", rr.Code, rr.Body)
	}
	if rr := h.do(ada.ID, http.MethodPost, "/api/user", `{"name":""}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("empty name: expected 400, got %d", rr.Code)
	}
}

type failingLedger struct {
	*services.LedgerService
}

func (failingLedger) Balances(context.Context, core.UserID) (core.BalanceSheet, error) {
	return core.BalanceSheet{}, fmt.Errorf("%w: scan transactions: disk on fire", core.ErrStore)
}

func (failingLedger) Ready(context.Context) error {
	return fmt.Errorf("%w: ping", core.ErrStore)
}

func TestStoreFailuresAreOpaque(t *testing.T) {
	h := newHarness(t, func(s *services.LedgerService) Ledger { return failingLedger{s} }, 0)

	rr := h.do(ada.ID, http.MethodGet, "/api/balances", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "disk") {
		t.Fatalf("store detail leaked: %s", rr.Body)
	}
	if rr := h.do("", http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: expected 503, got %d", rr.Code)
	}
}

func TestMutationsAreRateLimited(t *testing.T) {
	h := newHarness(t, nil, 1)
	h.lend(ada.ID, bea.ID, "1")

	rr := h.do(ada.ID, http.MethodPost, "/api/transactions",
		`{"amount":1,"type":"lend","otherUserId":"b","description":"again"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	// Reads are not limited.
	if rr := h.do(ada.ID, http.MethodGet, "/api/balances", ""); rr.Code != http.StatusOK {
		t.Fatalf("read after limit: %d", rr.Code)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	h := newHarness(t, nil, 0)
	rr := h.do(ada.ID, http.MethodGet, "/api/balances", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("headers = %v", rr.Header())
	}
	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Fatalf("missing request id: %v", rr.Header())
	}
}
