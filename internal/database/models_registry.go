package database

import "commentboard/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order matters: referenced tables come first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Comment{},
		&models.Captcha{},
		&models.CommentDocument{},
	}
}
