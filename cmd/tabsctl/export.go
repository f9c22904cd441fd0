package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/xuri/excelize/v2"

	"tabs/internal/core"
)

const historySheet = "History"

var historyHeaders = []string{"Date", "Type", "Other person", "Email", "Amount", "Currency", "Payment", "Description", "Receipt", "Id"}

type exportCmd struct {
	as  string
	out string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export a user's transaction history to an xlsx workbook" }
func (*exportCmd) Usage() string {
	return `tabsctl export -as <user_id> [-o history.xlsx]

  Writes every transaction involving the user, newest first, to a
  spreadsheet. Use -o - to write to stdout.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.as, "as", "", "The user id whose history to export.")
	f.StringVar(&c.out, "o", "history.xlsx", "Output file, or - for stdout.")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	viewer, err := viewerID(c.as)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	s, err := openSession(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer s.Close()

	entries, err := s.result.Service.History(ctx, viewer)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	var w io.Writer = os.Stdout
	if c.out != "-" {
		f, err := os.Create(c.out)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		defer f.Close()
		w = f
	}
	if err := writeHistoryWorkbook(w, entries, s.result.Service.Currency(), s.result.Service.Location()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if c.out != "-" {
		fmt.Fprintf(os.Stderr, "Exported %d transactions to %s\n", len(entries), c.out)
	}
	return subcommands.ExitSuccess
}

// writeHistoryWorkbook writes one row per entry. Amounts are numeric cells so
// the sheet can sum them; dates are rendered in loc.
func writeHistoryWorkbook(w io.Writer, entries []core.HistoryEntry, currency string, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(historySheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	for i, h := range historyHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(historySheet, cell, h); err != nil {
			return err
		}
	}

	for i, e := range entries {
		kind := "borrowed"
		if e.Lent {
			kind = "lent"
		}
		row := []any{
			e.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			kind,
			e.CounterpartyName,
			e.CounterpartyEmail,
			e.Amount.Decimal().InexactFloat64(),
			currency,
			e.IsPayment,
			e.Description,
			e.ReceiptURL,
			e.ID,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_, err = f.WriteTo(w)
	return err
}
