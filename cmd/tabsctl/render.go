package main

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"

	"tabs/internal/core"
)

func balancesMarkdown(sheet core.BalanceSheet, currency string) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	section := func(title string, rows []core.CounterpartyBalance) {
		doc.H2(title)
		if len(rows) == 0 {
			doc.PlainText("Nobody.")
			return
		}
		table := md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignRight},
			Header:    []string{"Name", "Id", "Balance"},
			Rows:      [][]string{},
		}
		for _, r := range rows {
			name := r.Name
			if name == "" {
				name = "Unknown"
			}
			table.Rows = append(table.Rows, []string{name, string(r.UserID), formatMoney(r.NetBalance, currency)})
		}
		doc.Table(table)
	}

	doc.H1("Balances")
	section("Owes me", sheet.OwesMe)
	section("I owe", sheet.IOwe)
	return doc.String()
}

func analysisMarkdown(a core.Analysis, currency string) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Analysis %s to %s", a.Period.Start, a.Period.End))

	doc.H2("Summary")
	doc.Table(md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight, md.AlignLeft},
		Header:    []string{"", "Total", "Trend"},
		Rows: [][]string{
			{"Expenses", formatMoney(a.Summary.TotalExpenses, currency), trendText(a.Expenses)},
			{"Lending", formatMoney(a.Summary.TotalLending, currency), trendText(a.Lending)},
			{"Borrowing", formatMoney(a.Summary.TotalBorrowing, currency), trendText(a.Borrowing)},
			{"Net", formatMoney(a.Summary.NetBalance, currency), ""},
		},
	})

	if len(a.MonthlyAverages) > 0 {
		doc.H2("Monthly averages")
		table := md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignRight},
			Header:    []string{"Month", "Expense", "Lending", "Borrowing"},
			Rows:      [][]string{},
		}
		for _, m := range a.MonthlyAverages {
			table.Rows = append(table.Rows, []string{
				m.Month,
				formatAverage(m.AvgExpense, currency),
				formatAverage(m.AvgLending, currency),
				formatAverage(m.AvgBorrowing, currency),
			})
		}
		doc.Table(table)
	}

	doc.H2("Daily")
	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignRight},
		Header:    []string{"Date", "Expenses", "Lending", "Borrowing"},
		Rows:      [][]string{},
	}
	for i, d := range a.Expenses {
		if d.Amount.IsZero() && a.Lending[i].Amount.IsZero() && a.Borrowing[i].Amount.IsZero() {
			continue
		}
		table.Rows = append(table.Rows, []string{
			d.Date.String(),
			formatMoney(d.Amount, currency),
			formatMoney(a.Lending[i].Amount, currency),
			formatMoney(a.Borrowing[i].Amount, currency),
		})
	}
	doc.Table(table)
	return doc.String()
}

func trendText(s core.Series) string {
	if t, ok := s.Trend(); ok {
		return string(t)
	}
	return "-"
}

func usersMarkdown(users []core.User) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignLeft},
		Header:    []string{"Id", "Name", "Email"},
		Rows:      [][]string{},
	}
	for _, u := range users {
		table.Rows = append(table.Rows, []string{string(u.ID), u.Name, u.Email})
	}
	doc.Table(table)
	return doc.String()
}
