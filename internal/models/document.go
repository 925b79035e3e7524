package models

import "time"

// CommentDocument is the denormalised search-index row for a comment. It is
// written only by the indexer consuming the event stream.
type CommentDocument struct {
	CommentID uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ParentID  *uint     `json:"parentId"`
	UserName  string    `gorm:"size:50;index" json:"userName"`
	Email     string    `gorm:"size:100" json:"email"`
	Text      string    `gorm:"type:text" json:"text"`
	TextHTML  string    `gorm:"column:text_html;type:text" json:"textHtml"`
	HasFile   bool      `json:"hasFile"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	IndexedAt time.Time `json:"indexedAt"`
}

// TableName pins the table name.
func (CommentDocument) TableName() string { return "comment_documents" }

// NewCommentDocument projects a loaded comment into its index row.
func NewCommentDocument(c *Comment, indexedAt time.Time) CommentDocument {
	return CommentDocument{
		CommentID: c.ID,
		ParentID:  c.ParentID,
		UserName:  c.User.UserName,
		Email:     c.User.Email,
		Text:      c.Text,
		TextHTML:  c.TextHTML,
		HasFile:   c.File.Present(),
		CreatedAt: c.CreatedAt,
		IndexedAt: indexedAt,
	}
}
