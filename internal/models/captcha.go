package models

import "time"

// Captcha is a single-use challenge. It can be consumed once and only
// before ExpiresAt.
type Captcha struct {
	ID        uint      `gorm:"primaryKey"`
	Code      string    `gorm:"size:10;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	IsUsed    bool      `gorm:"not null;default:false;index"`
	CreatedAt time.Time
}

// TableName pins the table name.
func (Captcha) TableName() string { return "captchas" }

// Usable reports whether the challenge can still be redeemed at now.
func (c *Captcha) Usable(now time.Time) bool {
	return !c.IsUsed && c.ExpiresAt.After(now)
}
