package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tabs/internal/auth"
	"tabs/internal/backend"
	"tabs/internal/cli"
	apphttp "tabs/internal/http"
	"tabs/internal/log"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(startCtx, backendCfg)
	cancel()
	if err != nil {
		logger.Error("Failed to create backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	verifier, err := auth.NewVerifier(cfg.SessionSecret, cfg.SessionIssuer)
	if err != nil {
		logger.Error("Failed to initialize session verifier", log.FieldError, err)
		_ = result.Cleanup()
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Verifier:           verifier,
		SessionCookie:      cfg.SessionCookie,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
		Caches:             result.Caches,
	}, result.Service, result.Recent)
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		_ = result.Cleanup()
		os.Exit(1)
	}

	_, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting tabs server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"currency", cfg.LedgerCurrency,
		"timezone", cfg.LedgerTimezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = result.Cleanup()
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
