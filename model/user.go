package model

import (
	"time"

	"gorm.io/gorm"
)

// User stores user identity and credentials
type User struct {
	ID          uint       `gorm:"primarykey"`
	Email       string     `gorm:"uniqueIndex;size:256;not null"`
	Password    string     `gorm:"size:64;not null"`
	IsActive    bool       `gorm:"default:false;not null"`
	IsSuperuser bool       `gorm:"default:false;not null"`
	LastLogin   *time.Time
	BlockedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == 0 {
		u.ID = GenerateID()
	}
	return nil
}

func (u *User) IsBlocked() bool {
	return u.BlockedAt != nil
}
