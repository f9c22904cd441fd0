package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"tabs/internal/services"
)

type balancesCmd struct {
	as string
}

func (*balancesCmd) Name() string     { return "balances" }
func (*balancesCmd) Synopsis() string { return "show who owes whom from one user's point of view" }
func (*balancesCmd) Usage() string {
	return `tabsctl balances -as <user_id>

  Prints the lifetime net balance toward every counterparty, split into
  people who owe the user and people the user owes.
`
}

func (c *balancesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.as, "as", "", "The user id whose balances to show.")
}

func (c *balancesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	sheet, err := s.result.Service.Balances(ctx, viewer)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Print(balancesMarkdown(sheet, s.result.Service.Currency()))
	return subcommands.ExitSuccess
}

type analysisCmd struct {
	as    string
	rng   string
	start string
	end   string
	month string
}

func (*analysisCmd) Name() string { return "analysis" }
func (*analysisCmd) Synopsis() string {
	return "summarize expenses, lending and borrowing over a period"
}
func (*analysisCmd) Usage() string {
	return `tabsctl analysis -as <user_id> [-r 7d|30d|90d | -s <start> -e <end>] [-m <YYYY-MM>]

  Prints period totals, trends, monthly averages and every day with
  activity. Explicit -s and -e override -r.
`
}

func (c *analysisCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.as, "as", "", "The user id to analyze.")
	f.StringVar(&c.rng, "r", "30d", "Predefined range ending today (7d, 30d, 90d).")
	f.StringVar(&c.start, "s", "", "Start date YYYY-MM-DD for a custom range.")
	f.StringVar(&c.end, "e", "", "End date YYYY-MM-DD for a custom range.")
	f.StringVar(&c.month, "m", "", "Month YYYY-MM shown as context.")
}

func (c *analysisCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	a, err := s.result.Service.Analysis(ctx, viewer, services.AnalysisQuery{
		Range: c.rng,
		Start: c.start,
		End:   c.end,
		Month: c.month,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Print(analysisMarkdown(a, s.result.Service.Currency()))
	return subcommands.ExitSuccess
}

type usersCmd struct {
	as string
}

func (*usersCmd) Name() string     { return "users" }
func (*usersCmd) Synopsis() string { return "search the user directory" }
func (*usersCmd) Usage() string {
	return `tabsctl users -as <user_id> <query>

  Lists users whose name or email contains the query, excluding the
  searching user.
`
}

func (c *usersCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.as, "as", "", "The user id performing the search.")
}

func (c *usersCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	viewer, err := viewerID(c.as)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "exactly one search query is required")
		return subcommands.ExitUsageError
	}
	s, err := openSession(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer s.Close()

	users, err := s.result.Service.SearchUsers(ctx, viewer, f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Print(usersMarkdown(users))
	return subcommands.ExitSuccess
}
