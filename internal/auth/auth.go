// Package auth verifies the session tokens issued by the identity provider
// and exposes the caller to handlers through the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tabs/internal/cache"
	"tabs/internal/core"
)

// Claims carried by a session token. The subject is the user id.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

var ErrNoSession = fmt.Errorf("%w: no session", core.ErrUnauthorized)

// Verifier checks HS256 session tokens.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) (*Verifier, error) {
	if len(secret) < 16 {
		return nil, errors.New("session secret must be at least 16 bytes")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify parses tok and returns the user it identifies.
func (v *Verifier) Verify(tok string) (core.User, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return core.User{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return core.User{}, fmt.Errorf("%w: token has no subject", ErrNoSession)
	}
	return core.User{ID: core.UserID(claims.Subject), Name: claims.Name, Email: claims.Email}, nil
}

// Mint issues a token for u valid for ttl. It backs the CLI token command
// and tests; production tokens come from the identity provider.
func (v *Verifier) Mint(u core.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:  u.Name,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(u.ID),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

type ctxKey struct{}

// WithUser stores u in ctx.
func WithUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the authenticated caller, if any.
func UserFrom(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(core.User)
	return u, ok && u.ID != ""
}

// Registrar records first-seen users in the directory.
type Registrar interface {
	EnsureUser(ctx context.Context, u core.User) error
}

// Middleware authenticates requests from a session cookie or a Bearer
// header. Unauthenticated requests are passed to onFail.
type Middleware struct {
	verifier  *Verifier
	cookie    string
	registrar Registrar
	known     *cache.LRUCache[struct{}]
	onFail    func(http.ResponseWriter, *http.Request, error)
}

func NewMiddleware(v *Verifier, cookie string, reg Registrar, onFail func(http.ResponseWriter, *http.Request, error)) *Middleware {
	if onFail == nil {
		onFail = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}
	}
	return &Middleware{
		verifier:  v,
		cookie:    cookie,
		registrar: reg,
		known:     cache.NewLRUCache[struct{}](10000, time.Hour),
		onFail:    onFail,
	}
}

// KnownUsers exposes the registration cache for periodic sweeping.
func (m *Middleware) KnownUsers() cache.Cleaner { return m.known }

func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := m.token(r)
		if tok == "" {
			m.onFail(w, r, ErrNoSession)
			return
		}
		u, err := m.verifier.Verify(tok)
		if err != nil {
			slog.DebugContext(r.Context(), "Rejected session token", "error", err)
			m.onFail(w, r, err)
			return
		}
		m.register(r.Context(), u)
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

func (m *Middleware) token(r *http.Request) string {
	if m.cookie != "" {
		if c, err := r.Cookie(m.cookie); err == nil && c.Value != "" {
			return c.Value
		}
	}
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// register upserts the caller once per cache lifetime. Failures are logged;
// the request still proceeds.
func (m *Middleware) register(ctx context.Context, u core.User) {
	if m.registrar == nil {
		return
	}
	key := string(u.ID) + "\x00" + u.Name + "\x00" + u.Email
	if _, ok := m.known.Get(key); ok {
		return
	}
	if err := m.registrar.EnsureUser(ctx, u); err != nil {
		slog.WarnContext(ctx, "Failed to register user", "user_id", u.ID, "error", err)
		return
	}
	m.known.Set(key, struct{}{})
}
