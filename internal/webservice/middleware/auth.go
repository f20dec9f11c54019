package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/taskbox/taskbox/internal/auth"
	"github.com/taskbox/taskbox/internal/models"
)

type ctxKey int

const (
	userKey ctxKey = iota
	tokenKey
)

type authStore interface {
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
	UserByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

// Authenticator authenticates requests carrying a bearer access token.
type Authenticator struct {
	tokens *auth.TokenManager
	store  authStore
}

// NewAuthenticator creates an Authenticator verifying tokens with tm and
// resolving users through store.
func NewAuthenticator(tm *auth.TokenManager, store authStore) *Authenticator {
	return &Authenticator{
		tokens: tm,
		store:  store,
	}
}

// Require rejects requests without a valid, non revoked bearer token. On
// success the resolved user and the raw token are stored on the request
// context.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			unauthorized(w, "Not authenticated")
			return
		}

		claims, err := a.tokens.VerifyToken(token)
		if err != nil {
			unauthorized(w, "Could not validate credentials")
			return
		}

		revoked, err := a.store.IsTokenBlacklisted(r.Context(), token)
		if err != nil {
			slog.Error("Token blacklist check failed", "err", err)
			writeDetail(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if revoked {
			unauthorized(w, "Token has been revoked")
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			unauthorized(w, "Could not validate credentials")
			return
		}

		user, err := a.store.UserByID(r.Context(), userID)
		if err != nil {
			unauthorized(w, "Could not validate credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user, token)))
	})
}

// ContextWithUser returns a context carrying the authenticated user and the
// raw bearer token.
func ContextWithUser(ctx context.Context, user models.User, token string) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, tokenKey, token)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, detail)
}

// UserFromContext returns the authenticated user stored by Require.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}

// TokenFromContext returns the raw bearer token stored by Require.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}
