package models

import (
	"strings"
	"time"
)

// FileType classifies an attachment.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeText  FileType = "text"
)

// Attachment describes the file stored alongside a comment. A zero Path
// means the comment has no attachment.
type Attachment struct {
	Name          string   `gorm:"size:255"`
	Extension     string   `gorm:"size:16"`
	Size          int64    `gorm:"default:0"`
	Path          string   `gorm:"size:512"`
	Type          FileType `gorm:"size:16"`
	ThumbnailPath string   `gorm:"size:512"`
}

// Present reports whether the attachment refers to a stored file.
func (a Attachment) Present() bool {
	return a.Path != ""
}

// Comment is one node of a comment tree. The tree is held only as ParentID
// pointers; Replies is filled per query and never persisted.
type Comment struct {
	ID        uint       `gorm:"primaryKey"`
	UserID    uint       `gorm:"not null;index"`
	User      User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	ParentID  *uint      `gorm:"index"`
	Parent    *Comment   `gorm:"foreignKey:ParentID;constraint:OnDelete:RESTRICT"`
	Text      string     `gorm:"type:text;not null"`
	TextHTML  string     `gorm:"column:text_html;type:text;not null"`
	File      Attachment `gorm:"embedded;embeddedPrefix:file_"`
	CreatedAt time.Time  `gorm:"index"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime:false"`
	Replies   []Comment  `gorm:"-"`
}

// TableName pins the table name.
func (Comment) TableName() string { return "comments" }

// FileTypeForExtension maps a canonical extension to the attachment kind.
func FileTypeForExtension(ext string) FileType {
	if strings.EqualFold(ext, ".txt") {
		return FileTypeText
	}
	return FileTypeImage
}
