package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Rhymond/go-money"

	"tabs/internal/backend"
	"tabs/internal/cli"
	"tabs/internal/config"
	"tabs/internal/core"
	"tabs/internal/log"
)

// session is an opened ledger plus the configuration it came from.
type session struct {
	cfg    *config.Config
	result *backend.Result
	logger *log.Logger
}

// openSession loads .env and the environment, then opens the configured
// backend. Logs go to stderr so command output stays pipeable.
func openSession(ctx context.Context) (*session, error) {
	cli.LoadEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Only debug is honoured from LOG_LEVEL; the server's info chatter is noise here.
	level := slog.LevelWarn
	if log.ParseLevel(cfg.LogLevel) == slog.LevelDebug {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: log.ComponentCLI,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	// Publishing events from an inspection tool would be surprising.
	bc.AMQPURL = ""

	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}
	return &session{cfg: cfg, result: result, logger: logger}, nil
}

func (s *session) Close() {
	if err := s.result.Cleanup(); err != nil {
		s.logger.Warn("Backend cleanup failed", log.FieldError, err)
	}
}

func viewerID(as string) (core.UserID, error) {
	as = strings.TrimSpace(as)
	if as == "" {
		return "", fmt.Errorf("-as is required")
	}
	return core.UserID(as), nil
}

// formatMoney renders cents with the currency's symbol and grouping.
func formatMoney(m core.Money, currency string) string {
	return money.New(m.Cents, currency).Display()
}

// formatAverage rounds a mean to cents before display.
func formatAverage(a core.Average, currency string) string {
	cents := core.Round2(a.Decimal()).Shift(2).IntPart()
	return formatMoney(core.Money{Cents: cents}, currency)
}
