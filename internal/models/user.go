// Package models defines persisted entities, API response shapes and the
// application error type.
package models

import "time"

// User is a commenter identified by the (UserName, Email) pair. Users are
// created on first comment and never deleted.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserName     string    `gorm:"size:50;not null;uniqueIndex:idx_users_identity" json:"userName"`
	Email        string    `gorm:"size:100;not null;uniqueIndex:idx_users_identity" json:"email"`
	HomePage     *string   `gorm:"size:255" json:"homePage,omitempty"`
	IPAddress    string    `gorm:"size:45" json:"-"`
	UserAgent    string    `gorm:"size:512" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `gorm:"not null" json:"lastActivity"`
}

// TableName pins the table name.
func (User) TableName() string { return "users" }
