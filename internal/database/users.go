package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/taskbox/taskbox/internal/models"
)

// CreateUser inserts a new user with the given email and password hash.
//
// The email is normalized to lowercase before insertion. Returns ErrDuplicate
// when a user with the same email already exists.
func (db *Manager) CreateUser(ctx context.Context, email, passwordHash string) (models.User, error) {
	pool, err := db.pool()
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           uuid.New(),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := pool.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 RETURNING created_at, updated_at`,
		user.ID, user.Email, user.PasswordHash,
	)
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return models.User{}, fmt.Errorf("user %q: %w", user.Email, ErrDuplicate)
		}
		return models.User{}, fmt.Errorf("failed to create user: %v", err)
	}

	return user, nil
}

// UserByEmail returns the user with the given email, or ErrNotFound.
func (db *Manager) UserByEmail(ctx context.Context, email string) (models.User, error) {
	pool, err := db.pool()
	if err != nil {
		return models.User{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanUser(pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at, updated_at
		 FROM users WHERE email = $1`,
		NormalizeEmail(email),
	))
}

// UserByID returns the user with the given ID, or ErrNotFound.
func (db *Manager) UserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	pool, err := db.pool()
	if err != nil {
		return models.User{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanUser(pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	))
}

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, fmt.Errorf("user: %w", ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to query user: %v", err)
	}
	return u, nil
}

// NormalizeEmail trims surrounding whitespace and lowercases an email address,
// mirroring the normalization applied at registration so lookups match.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
