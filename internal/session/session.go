// Package session persists refresh tokens and revocations. Sessions are
// keyed by (userID, jti) so a user holding several device sessions can
// revoke one without disturbing the rest; revocation blacklists the jti for
// the token's remaining lifetime rather than deleting per-user state.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/velprakashr08-max/Frutify/internal/store"
)

const DefaultRefreshTTL = 7 * 24 * time.Hour

// NewJTI mints the token id for a fresh session. Callers embed it in the
// JWT's jti claim and pass the same value to Issue so the session slot and
// the token agree.
func NewJTI() string { return uuid.NewString() }

type Store struct {
	kv         store.KV
	refreshTTL time.Duration
}

func NewStore(kv store.KV, refreshTTL time.Duration) *Store {
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Store{kv: kv, refreshTTL: refreshTTL}
}

func refreshKey(userID, jti string) string { return fmt.Sprintf("refresh:%s:%s", userID, jti) }
func blacklistKey(jti string) string       { return "blacklist:" + jti }

// Issue records token as the live refresh token for the (userID, jti)
// session slot.
func (s *Store) Issue(ctx context.Context, userID, token, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.refreshTTL
	}
	if err := s.kv.Set(ctx, refreshKey(userID, jti), token, ttl); err != nil {
		return fmt.Errorf("issue session: %w", err)
	}
	return nil
}

// Revoke blacklists jti for the token's remaining lifetime. The refresh slot
// is left to expire; validity checks consult the blacklist first.
func (s *Store) Revoke(ctx context.Context, jti string, remaining time.Duration) error {
	if remaining <= 0 {
		// Token already past expiry; nothing can be replayed.
		return nil
	}
	if err := s.kv.Set(ctx, blacklistKey(jti), "1", remaining); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsValid reports whether token is the stored refresh token for
// (userID, jti) and the jti has not been blacklisted.
func (s *Store) IsValid(ctx context.Context, userID, token, jti string) (bool, error) {
	_, revoked, err := s.kv.Get(ctx, blacklistKey(jti))
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	if revoked {
		return false, nil
	}
	stored, ok, err := s.kv.Get(ctx, refreshKey(userID, jti))
	if err != nil {
		return false, fmt.Errorf("read session: %w", err)
	}
	return ok && stored == token, nil
}

// TokenIdentity extracts the jti and remaining lifetime from a signed JWT
// without verifying its signature; signature checks belong to the API layer
// that minted the token. Used by logout flows that only hold the raw token.
func TokenIdentity(token string, now time.Time) (jti string, remaining time.Duration, err error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return "", 0, fmt.Errorf("parse token: %w", err)
	}
	if claims.ID == "" {
		return "", 0, fmt.Errorf("token has no jti")
	}
	if claims.ExpiresAt != nil {
		remaining = claims.ExpiresAt.Time.Sub(now)
	}
	return claims.ID, remaining, nil
}
