package revocation

import (
	"context"
	"time"

	"github.com/khanghh/tokenauth/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DatabaseLedger struct {
	db        *gorm.DB
	retention time.Duration
}

func (l *DatabaseLedger) Revoke(ctx context.Context, jti string, tokenType string, expiresAt time.Time) error {
	if jti == "" {
		return ErrEmptyTokenID
	}
	record := model.RevokedToken{
		JTI:       jti,
		TokenType: tokenType,
		ExpiresAt: expiresAt,
	}
	return l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(&record).Error
}

func (l *DatabaseLedger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&model.RevokedToken{}).
		Where("jti = ?", jti).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Purge deletes rows for tokens that expired more than the retention window
// ago. With zero retention the ledger is append-only and nothing is deleted.
func (l *DatabaseLedger) Purge(ctx context.Context, now time.Time) (int64, error) {
	if l.retention <= 0 {
		return 0, nil
	}
	ret := l.db.WithContext(ctx).
		Where("expires_at < ?", now.Add(-l.retention)).
		Delete(&model.RevokedToken{})
	return ret.RowsAffected, ret.Error
}

func NewDatabaseLedger(db *gorm.DB, retention time.Duration) *DatabaseLedger {
	return &DatabaseLedger{
		db:        db,
		retention: retention,
	}
}
