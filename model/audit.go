package model

import (
	"time"

	"gorm.io/gorm"
)

type AuditEvent struct {
	ID        uint64    `gorm:"primaryKey"`
	UserID    uint64    `gorm:"index;not null"`         // internal user id
	Username  string    `gorm:"size:32;not null;index"` // snapshot of username at event time
	EventType string    `gorm:"size:64;not null;index"` // token_issued, token_revoked...
	TokenID   string    `gorm:"size:36;index"`          // access token id (optional)
	Scope     string    `gorm:"size:512"`               // granted scope (optional)
	Reason    string    `gorm:"size:512"`               // failure reason or context
	IP        string    `gorm:"size:45;not null"`       // IPv4/IPv6
	UserAgent string    `gorm:"size:512;not null"`      // user agent string
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (AuditEvent) TableName() string {
	return "audit"
}

func (e *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == 0 {
		e.ID = GenerateID()
	}
	return nil
}
