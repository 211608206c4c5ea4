package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

// PrincipalHeader carries the caller identity in development mode, when no
// JWT secret is configured.
const PrincipalHeader = "X-Principal"

type contextKeyPrincipal struct{}

// Principal returns the caller resolved by the middleware; anonymous if none.
func Principal(ctx context.Context) bookstore.Identity {
	id, _ := ctx.Value(contextKeyPrincipal{}).(bookstore.Identity)
	return id
}

func WithPrincipal(ctx context.Context, id bookstore.Identity) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal{}, id)
}

// TokenValidator resolves a bearer token to an identity.
type TokenValidator struct {
	secret []byte
}

func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

func (v *TokenValidator) Validate(token string) (bookstore.Identity, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", bookstore.New(bookstore.CodeUnauthorized, "token has expired")
		}
		return "", bookstore.New(bookstore.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", bookstore.New(bookstore.CodeUnauthorized, "invalid token claims")
	}
	return bookstore.Identity(claims.Subject), nil
}

// ResolvePrincipal attaches the caller identity to the request context. A
// request without credentials proceeds as the anonymous guest; a bad token
// is rejected.
func ResolvePrincipal(validator *TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if validator == nil {
				id := strings.TrimSpace(r.Header.Get(PrincipalHeader))
				next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, bookstore.Identity(id))))
				return
			}
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			id, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token", "error", err)
				writeErrorStatus(w, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, id)))
		})
	}
}
