package model

import "time"

// RevokedToken marks a refresh token, authorization code or access token
// identifier as permanently unusable. Rows are never updated.
type RevokedToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	JTI       string    `gorm:"size:64;not null;uniqueIndex"`
	TokenType string    `gorm:"size:32;not null"`
	ExpiresAt time.Time `gorm:"not null;index"` // natural expiry of the revoked token, used for retention
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
