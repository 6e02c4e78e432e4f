package model

import "time"

// AccessToken is the server-side record of an issued access token. The ID is
// the jti claim of the signed token. A record is never extended; it only
// moves from active to revoked.
type AccessToken struct {
	ID        string     `gorm:"primaryKey;size:36"`
	UserID    uint64     `gorm:"index;not null"`
	User      *User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Scope     string     `gorm:"size:512;not null"`
	ExpiresAt time.Time  `gorm:"index;not null"`
	RevokedAt *time.Time `gorm:"index"`
	UserIP    string     `gorm:"size:45"` // IPv4/IPv6, empty when unknown
	CreatedAt time.Time
}

func (t *AccessToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsExpiredAt reports whether the token is expired at the given instant.
// A token whose expiry equals now is already expired.
func (t *AccessToken) IsExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
