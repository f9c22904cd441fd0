package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"tabs/internal/auth"
	"tabs/internal/cache"
	"tabs/internal/core"
	"tabs/internal/log"
	"tabs/internal/middleware/ratelimit"
	"tabs/internal/middleware/security"
	"tabs/internal/middleware/trace"
	"tabs/internal/recent"
	"tabs/internal/services"
)

const (
	cacheSweepInterval = 10 * time.Minute
	readyTimeout       = 2 * time.Second
)

// Ledger is the subset of services.LedgerService the API calls.
type Ledger interface {
	Currency() string
	Balances(ctx context.Context, viewer core.UserID) (core.BalanceSheet, error)
	Analysis(ctx context.Context, viewer core.UserID, q services.AnalysisQuery) (core.Analysis, error)
	History(ctx context.Context, viewer core.UserID) ([]core.HistoryEntry, error)
	Create(ctx context.Context, self core.UserID, n core.NewTransaction) (core.Transaction, error)
	CreateBulk(ctx context.Context, self core.UserID, req core.BulkRequest) ([]core.Transaction, error)
	Amend(ctx context.Context, self core.UserID, id string, patch core.TransactionPatch) (core.Transaction, error)
	Delete(ctx context.Context, self core.UserID, id string) error
	DeleteMany(ctx context.Context, self core.UserID, ids []string) core.BulkDeleteResult
	SearchUsers(ctx context.Context, self core.UserID, query string) ([]core.User, error)
	ResolveUsers(ctx context.Context, ids []core.UserID) (map[core.UserID]core.User, error)
	RenameUser(ctx context.Context, self core.UserID, name string) (core.User, error)
	EnsureUser(ctx context.Context, u core.User) error
	Ready(ctx context.Context) error
}

type Options struct {
	Addr               string
	Verifier           *auth.Verifier
	SessionCookie      string
	RateLimitPerMinute int
	TrustedProxies     []string
	Logger             *log.Logger
	// Caches are swept alongside the server's own caches.
	Caches []cache.Cleaner
}

type Server struct {
	http.Server
	ledger   Ledger
	recent   recent.Tracker
	limiter  *ratelimit.Limiter
	caches   *cache.Manager
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// tracker may be nil, in which case recent counterparties are not kept.
func NewServer(opts Options, ledger Ledger, tracker recent.Tracker) (*Server, error) {
	if opts.Verifier == nil {
		return nil, errors.New("session verifier is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.FromContext(context.Background())
	}
	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		ledger:   ledger,
		recent:   tracker,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		caches:   cache.NewManager(),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, opts.Logger),
	}

	sessions := auth.NewMiddleware(opts.Verifier, opts.SessionCookie, ledger, func(w http.ResponseWriter, r *http.Request, err error) {
		writeError(w, r, "authenticate", err)
	})
	s.caches.Register(sessions.KnownUsers())
	for _, c := range opts.Caches {
		s.caches.Register(c)
	}
	s.caches.StartCleanup(cacheSweepInterval)

	limited := s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusTooManyRequests, errorJSON{Error: "Rate limit exceeded. Please try again later."})
	})
	api := func(h http.HandlerFunc, mutating bool) http.Handler {
		var out http.Handler = h
		out = sessions.Wrap(out)
		if mutating {
			out = limited(out)
		}
		return out
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("GET /api/balances", api(s.handleBalances, false))
	mux.Handle("GET /api/analysis", api(s.handleAnalysis, false))
	mux.Handle("GET /api/transactions", api(s.handleHistory, false))
	mux.Handle("POST /api/transactions", api(s.handleCreateTransaction, true))
	mux.Handle("POST /api/transactions/bulk", api(s.handleBulkCreate, true))
	mux.Handle("POST /api/transactions/bulk-delete", api(s.handleBulkDelete, true))
	mux.Handle("PUT /api/transactions/{id}", api(s.handleAmendTransaction, true))
	mux.Handle("DELETE /api/transactions/{id}", api(s.handleDeleteTransaction, true))
	mux.Handle("GET /api/users/search", api(s.handleSearchUsers, false))
	mux.Handle("GET /api/users/recent", api(s.handleRecentUsers, false))
	mux.Handle("POST /api/user", api(s.handleRenameUser, true))

	var handler http.Handler = mux
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = log.Middleware(opts.Logger.WithComponent(log.ComponentHTTP))(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s, nil
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.ledger.Ready(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
