package revocation

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmptyTokenID = errors.New("token id must not be empty")
)

// Ledger records revoked token identifiers. Revoke is idempotent.
type Ledger interface {
	Revoke(ctx context.Context, jti string, tokenType string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Purger drops entries whose retention window has passed.
type Purger interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}
