package revocation

import (
	"context"
	"time"

	"github.com/khanghh/tokenauth/internal/store"
	"github.com/khanghh/tokenauth/params"
)

type revokedEntry struct {
	JTI       string `json:"jti"       redis:"jti"`
	TokenType string `json:"tokenType" redis:"token_type"`
	RevokedAt int64  `json:"revokedAt" redis:"revoked_at"`
	ExpiresAt int64  `json:"expiresAt" redis:"expires_at"`
}

// StoreLedger keeps revoked identifiers in a key-value store. With a positive
// retention each entry expires once its token has been expired for that long.
type StoreLedger struct {
	entries   store.Store[revokedEntry]
	retention time.Duration
	now       func() time.Time
}

func (l *StoreLedger) Revoke(ctx context.Context, jti string, tokenType string, expiresAt time.Time) error {
	if jti == "" {
		return ErrEmptyTokenID
	}
	now := l.now()
	entry := revokedEntry{
		JTI:       jti,
		TokenType: tokenType,
		RevokedAt: now.UnixMilli(),
		ExpiresAt: expiresAt.UnixMilli(),
	}
	if l.retention <= 0 {
		return l.entries.Save(ctx, jti, entry)
	}
	ttl := expiresAt.Sub(now) + l.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	return l.entries.Set(ctx, jti, entry, ttl)
}

func (l *StoreLedger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return l.entries.Exists(ctx, jti)
}

func NewStoreLedger(storage store.Storage, retention time.Duration) *StoreLedger {
	return &StoreLedger{
		entries:   store.New[revokedEntry](storage, params.RevokedTokenKeyPrefix),
		retention: retention,
		now:       time.Now,
	}
}
