package model

import "time"

type AuditEvent struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	UserID      uint      `gorm:"index;not null"`         // internal user id, 0 when unknown
	Email       string    `gorm:"size:256;not null;index"` // snapshot of the email at event time
	EventType   string    `gorm:"size:64;not null;index"`  // login_success, login_failure...
	GrantType   string    `gorm:"size:32;index"`           // password, authorization_code, refresh_token (optional)
	ClientID    string    `gorm:"size:128;index"`          // only for authorization code events
	RedirectURI string    `gorm:"size:512"`                // only for authorization code events
	Reason      string    `gorm:"size:512"`                // failure reason or context
	IP          string    `gorm:"size:45;not null"`        // IPv4/IPv6
	UserAgent   string    `gorm:"size:512;not null"`       // user agent string
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (AuditEvent) TableName() string {
	return "audit"
}
