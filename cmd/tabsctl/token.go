package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"tabs/internal/auth"
	"tabs/internal/cli"
	"tabs/internal/config"
	"tabs/internal/core"
)

type tokenCmd struct {
	id    string
	name  string
	email string
	ttl   time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "mint a session token for local testing" }
func (*tokenCmd) Usage() string {
	return `tabsctl token -id <user_id> [-name <name>] [-email <email>] [-ttl 24h]

  Signs a session token with SESSION_SECRET. Send it as a Bearer token or
  in the session cookie.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "The user id to embed as subject.")
	f.StringVar(&c.name, "name", "", "Display name claim.")
	f.StringVar(&c.email, "email", "", "Email claim.")
	f.DurationVar(&c.ttl, "ttl", 24*time.Hour, "How long the token stays valid.")
}

func (c *tokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if strings.TrimSpace(c.id) == "" {
		fmt.Fprintln(os.Stderr, "-id is required")
		return subcommands.ExitUsageError
	}
	if c.ttl <= 0 {
		fmt.Fprintln(os.Stderr, "-ttl must be positive")
		return subcommands.ExitUsageError
	}

	cli.LoadEnvFile()
	cfg := config.Load()
	v, err := auth.NewVerifier(cfg.SessionSecret, cfg.SessionIssuer)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	tok, err := v.Mint(core.User{ID: core.UserID(c.id), Name: c.name, Email: c.email}, c.ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println(tok)
	return subcommands.ExitSuccess
}
