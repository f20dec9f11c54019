package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BlacklistToken records a revoked token until its natural expiry.
//
// Blacklisting an already blacklisted token is a no-op.
func (db *Manager) BlacklistToken(ctx context.Context, token string, expiresAt time.Time) error {
	pool, err := db.pool()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = pool.Exec(ctx,
		`INSERT INTO token_blacklist (id, token, blacklisted_at, expires_at)
		 VALUES ($1, $2, now(), $3)
		 ON CONFLICT (token) DO NOTHING`,
		uuid.New(), token, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to blacklist token: %v", err)
	}
	return nil
}

// IsTokenBlacklisted reports whether the token has been revoked.
// Entries past their expiry no longer count: the token is rejected by
// signature validation at that point anyway.
func (db *Manager) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	pool, err := db.pool()
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var blacklisted bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM token_blacklist WHERE token = $1 AND expires_at > now()
		 )`,
		token,
	).Scan(&blacklisted)
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %v", err)
	}
	return blacklisted, nil
}

// PurgeExpiredTokens removes blacklist entries whose tokens have expired.
// Returns the number of removed entries.
func (db *Manager) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	pool, err := db.pool()
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := pool.Exec(ctx, `DELETE FROM token_blacklist WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired tokens: %v", err)
	}
	return tag.RowsAffected(), nil
}
