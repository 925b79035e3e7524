// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"commentboard/internal/config"
	"commentboard/internal/database"
	"commentboard/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewSQLiteDB returns a migrated, private in-memory database.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Connect(&config.Config{Env: "test", DBDriver: "sqlite", DBSQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SeedUser inserts a user with the given identity.
func SeedUser(t testing.TB, db *gorm.DB, userName, email string) *models.User {
	t.Helper()
	now := time.Now().UTC()
	u := &models.User{UserName: userName, Email: email, CreatedAt: now, LastActivity: now}
	require.NoError(t, db.Create(u).Error)
	return u
}

// SeedComment inserts a comment by user under parentID (nil for a root comment).
func SeedComment(t testing.TB, db *gorm.DB, user *models.User, parentID *uint, text string, createdAt time.Time) *models.Comment {
	t.Helper()
	c := &models.Comment{
		UserID:    user.ID,
		ParentID:  parentID,
		Text:      text,
		TextHTML:  text,
		CreatedAt: createdAt.UTC(),
	}
	require.NoError(t, db.Omit("User", "Parent").Create(c).Error)
	c.User = *user
	return c
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
