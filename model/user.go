package model

import (
	"time"

	"gorm.io/gorm"
)

// User stores user information
type User struct {
	ID              uint64     `gorm:"primarykey"`
	Username        string     `gorm:"uniqueIndex;size:32;not null"`
	Name            string     `gorm:"size:64;not null"`
	Email           string     `gorm:"uniqueIndex;size:256;not null"`
	Password        string     `gorm:"size:64;not null"`
	EmailVerifiedAt *time.Time // nil until the user confirms their email address
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (u *User) IsEmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == 0 {
		u.ID = GenerateID()
	}
	return nil
}
