package repository

import (
	"context"

	"commentboard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepository stores the search projection of comments.
type DocumentRepository interface {
	Upsert(ctx context.Context, doc *models.CommentDocument) error
	Delete(ctx context.Context, commentID uint) error
	Search(ctx context.Context, query string, limit int) ([]models.CommentDocument, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository returns a gorm-backed DocumentRepository.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Upsert(ctx context.Context, doc *models.CommentDocument) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "comment_id"}},
			UpdateAll: true,
		}).
		Create(doc).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes the document. Deleting an absent document is not an error
// so redelivered events stay harmless.
func (r *documentRepository) Delete(ctx context.Context, commentID uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.CommentDocument{}, commentID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Search matches query case-insensitively against user name, email and text,
// newest first. An empty query returns the newest documents.
func (r *documentRepository) Search(ctx context.Context, query string, limit int) ([]models.CommentDocument, error) {
	q := r.db.WithContext(ctx).Model(&models.CommentDocument{})
	if query != "" {
		p := likePattern(query)
		q = q.Where(`LOWER(user_name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\' OR LOWER(text) LIKE ? ESCAPE '\'`, p, p, p)
	}

	var docs []models.CommentDocument
	if err := q.Order("created_at desc").Order("comment_id desc").Limit(limit).Find(&docs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return docs, nil
}
