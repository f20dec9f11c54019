package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"github.com/taskbox/taskbox/internal/auth"
	"github.com/taskbox/taskbox/internal/database"
	"github.com/taskbox/taskbox/internal/models"
	"github.com/taskbox/taskbox/internal/webservice/middleware"
)

type userStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	BlacklistToken(ctx context.Context, token string, expiresAt time.Time) error
}

// Auth bundles the account and session handlers.
type Auth struct {
	store             userStore
	tokens            *auth.TokenManager
	minPasswordLength int
}

// NewAuth creates the authentication handlers.
func NewAuth(store userStore, tokens *auth.TokenManager, minPasswordLength int) *Auth {
	return &Auth{
		store:             store,
		tokens:            tokens,
		minPasswordLength: minPasswordLength,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /auth/register.
func (a *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	email := database.NormalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid email address")
		return
	}
	if len(req.Password) < a.minPasswordLength {
		respondDetail(w, http.StatusBadRequest,
			fmt.Sprintf("Password must be at least %d characters long", a.minPasswordLength))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("Password hashing failed", "err", err)
		respondDetail(w, http.StatusInternalServerError, "Registration failed due to an internal server error")
		return
	}

	user, err := a.store.CreateUser(r.Context(), email, hash)
	if errors.Is(err, database.ErrDuplicate) {
		respondDetail(w, http.StatusConflict, "A user with this email already exists")
		return
	}
	if err != nil {
		slog.Error("Registration failed", "err", err)
		respondDetail(w, http.StatusInternalServerError, "Registration failed due to an internal server error")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// Login handles POST /auth/login.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	email := database.NormalizeEmail(req.Email)
	user, err := a.store.UserByEmail(r.Context(), email)
	if errors.Is(err, database.ErrNotFound) || (err == nil && !auth.VerifyPassword(req.Password, user.PasswordHash)) {
		slog.Warn("Failed login attempt", "email", email, "remote", r.RemoteAddr)
		w.Header().Set("WWW-Authenticate", "Bearer")
		respondDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if err != nil {
		slog.Error("Login failed", "err", err)
		respondDetail(w, http.StatusInternalServerError, "Login failed due to an internal server error")
		return
	}

	token, err := a.tokens.CreateToken(user.ID, user.Email)
	if err != nil {
		slog.Error("Token creation failed", "err", err)
		respondDetail(w, http.StatusInternalServerError, "Login failed due to an internal server error")
		return
	}

	slog.Info("Successful login", "email", email, "remote", r.RemoteAddr)
	respondJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// Logout handles POST /auth/logout. Requires authentication.
//
// The token is blacklisted until its own expiry, after which the entry can be
// purged.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	token, tok := middleware.TokenFromContext(r.Context())
	if !ok || !tok {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if err := a.store.BlacklistToken(r.Context(), token, a.tokens.Expiry(token)); err != nil {
		slog.Error("Logout failed", "err", err)
		respondDetail(w, http.StatusInternalServerError, "Logout failed due to an internal server error")
		return
	}

	slog.Info("Successful logout", "email", user.Email, "remote", r.RemoteAddr)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

// Profile handles GET /auth/profile. Requires authentication.
func (a *Auth) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// ValidateToken handles POST /auth/validate-token. Requires authentication.
func (a *Auth) ValidateToken(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"valid":   true,
		"user_id": user.ID.String(),
	})
}
