// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"commentboard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	GetWithReplies(ctx context.Context, id uint) (*models.Comment, error)
	List(ctx context.Context, req models.ListCommentsRequest) ([]models.Comment, int64, error)
	ListReplies(ctx context.Context, parentID uint) ([]models.Comment, error)
	Exists(ctx context.Context, id uint) (bool, error)
	HasReplies(ctx context.Context, id uint) (bool, error)
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit("User", "Parent").Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &comment, nil
}

// GetWithReplies loads the comment, its author and its direct replies with their authors.
func (r *commentRepository) GetWithReplies(ctx context.Context, id uint) (*models.Comment, error) {
	comment, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	replies, err := r.ListReplies(ctx, id)
	if err != nil {
		return nil, err
	}
	comment.Replies = replies
	return comment, nil
}

var sortColumns = map[string]string{
	models.SortByCreatedAt: "comments.created_at",
	models.SortByUserName:  "users.user_name",
	models.SortByEmail:     "users.email",
}

func (r *commentRepository) filtered(ctx context.Context, req models.ListCommentsRequest) *gorm.DB {
	q := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Joins("JOIN users ON users.id = comments.user_id")

	if req.ParentID == nil {
		q = q.Where("comments.parent_id IS NULL")
	} else {
		q = q.Where("comments.parent_id = ?", *req.ParentID)
	}
	if req.UserName != "" {
		q = q.Where(`LOWER(users.user_name) LIKE ? ESCAPE '\'`, likePattern(req.UserName))
	}
	if req.Email != "" {
		q = q.Where(`LOWER(users.email) LIKE ? ESCAPE '\'`, likePattern(req.Email))
	}
	if req.StartDate != nil {
		q = q.Where("comments.created_at >= ?", *req.StartDate)
	}
	if req.EndDate != nil {
		q = q.Where("comments.created_at <= ?", *req.EndDate)
	}
	return q
}

// List returns one page of comments matching req plus the total match count.
func (r *commentRepository) List(ctx context.Context, req models.ListCommentsRequest) ([]models.Comment, int64, error) {
	var total int64
	if err := r.filtered(ctx, req).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	column, ok := sortColumns[req.SortBy]
	if !ok {
		column = sortColumns[models.SortByCreatedAt]
	}

	var comments []models.Comment
	err := r.filtered(ctx, req).
		Preload("User").
		Order(clause.OrderByColumn{Column: clause.Column{Name: column, Raw: true}, Desc: req.SortDescending}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "comments.id", Raw: true}, Desc: req.SortDescending}).
		Offset(req.Offset()).
		Limit(req.PageSize).
		Find(&comments).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return comments, total, nil
}

// ListReplies returns the direct replies of parentID, oldest first.
func (r *commentRepository) ListReplies(ctx context.Context, parentID uint) ([]models.Comment, error) {
	var replies []models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("parent_id = ?", parentID).
		Order("created_at asc").
		Order("id asc").
		Find(&replies).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return replies, nil
}

func (r *commentRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *commentRepository) HasReplies(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("parent_id = ?", id).Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Comment{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}
