package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tabs/internal/core"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "€12.50", formatMoney(core.Money{Cents: 1250}, "EUR"))
	assert.Equal(t, "-$1,000.00", formatMoney(core.Money{Cents: -100000}, "USD"))
	assert.Equal(t, "€3.33", formatAverage(core.Average(decimal.RequireFromString("3.3333")), "EUR"))
	assert.Equal(t, "€0.00", formatAverage(core.Average(decimal.Zero), "EUR"))
}

func TestViewerIDRequired(t *testing.T) {
	_, err := viewerID("  ")
	assert.Error(t, err)

	id, err := viewerID(" a ")
	require.NoError(t, err)
	assert.Equal(t, core.UserID("a"), id)
}

func TestBalancesMarkdown(t *testing.T) {
	sheet := core.BalanceSheet{
		OwesMe: []core.CounterpartyBalance{{UserID: "b", Name: "Bea", NetBalance: core.Money{Cents: 10000}}},
	}
	out := balancesMarkdown(sheet, "EUR")

	assert.Contains(t, out, "# Balances")
	assert.Contains(t, out, "Bea")
	assert.Contains(t, out, "€100.00")
	assert.Contains(t, out, "Nobody.")
}

func TestAnalysisMarkdownSkipsQuietDays(t *testing.T) {
	p := core.Period{Start: core.NewDate(2026, 3, 1), End: core.NewDate(2026, 3, 3), Location: time.UTC}
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{{
		ID: "t1", PayerID: "b", RecipientID: "a", Amount: core.Money{Cents: 700},
		Description: "lunch", CreatedAt: at,
	}}
	out := analysisMarkdown(core.Analyze("a", txs, p), "EUR")

	assert.Contains(t, out, "Analysis 2026-03-01 to 2026-03-03")
	assert.Contains(t, out, "2026-03-02")
	assert.NotContains(t, out, "| 2026-03-01")
	assert.Contains(t, out, "2026-03")
}

func TestWriteHistoryWorkbook(t *testing.T) {
	at := time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)
	entries := []core.HistoryEntry{{
		Transaction: core.Transaction{
			ID: "t1", PayerID: "a", RecipientID: "b", Amount: core.Money{Cents: 1250},
			Description: "tickets", CreatedAt: at, IsPayment: true,
		},
		Lent:             true,
		CounterpartyID:   "b",
		CounterpartyName: "Bea",
		CanEdit:          true,
	}}

	var buf bytes.Buffer
	require.NoError(t, writeHistoryWorkbook(&buf, entries, "EUR", time.UTC))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, historyHeaders, rows[0])
	assert.Equal(t, "2026-03-02 12:30", rows[1][0])
	assert.Equal(t, "lent", rows[1][1])
	assert.Equal(t, "Bea", rows[1][2])
	assert.Equal(t, "12.5", rows[1][4])
	assert.True(t, strings.EqualFold(rows[1][6], "true"), "payment cell %q", rows[1][6])
	assert.Equal(t, "t1", rows[1][9])
}
