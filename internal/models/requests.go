package models

import "time"

// Sort keys accepted by the comment listing.
const (
	SortByCreatedAt = "CreatedAt"
	SortByUserName  = "UserName"
	SortByEmail     = "Email"
)

// Listing defaults.
const (
	DefaultPage     = 1
	DefaultPageSize = 25
	MaxPageSize     = 100
	MaxPage         = 1_000_000
)

// CreateCommentRequest is the multipart form of POST /api/comments, minus the file part.
type CreateCommentRequest struct {
	UserName    string  `form:"UserName" validate:"required,min=3,max=50,alphanum"`
	Email       string  `form:"Email" validate:"required,max=100,email"`
	HomePage    *string `form:"HomePage" validate:"omitempty,max=255,http_url"`
	Text        string  `form:"Text" validate:"required,min=1,max=5000"`
	ParentID    *uint   `form:"ParentId" validate:"omitempty,gt=0"`
	CaptchaID   uint    `form:"CaptchaId" validate:"required"`
	CaptchaCode string  `form:"CaptchaCode" validate:"required,min=4,max=10"`
}

// ListCommentsRequest carries the filter, sort and page of a listing.
type ListCommentsRequest struct {
	Page           int        `query:"Page" validate:"gt=0,max=1000000"`
	PageSize       int        `query:"PageSize" validate:"min=1,max=100"`
	SortBy         string     `query:"SortBy" validate:"oneof=CreatedAt UserName Email"`
	SortDescending bool       `query:"SortDescending"`
	ParentID       *uint      `query:"ParentId" validate:"omitempty,gt=0"`
	UserName       string     `query:"UserName" validate:"max=50"`
	Email          string     `query:"Email" validate:"max=100"`
	StartDate      *time.Time `query:"StartDate"`
	EndDate        *time.Time `query:"EndDate"`
}

// DefaultListCommentsRequest is the first page of root comments, newest first.
func DefaultListCommentsRequest() ListCommentsRequest {
	return ListCommentsRequest{
		Page:           DefaultPage,
		PageSize:       DefaultPageSize,
		SortBy:         SortByCreatedAt,
		SortDescending: true,
	}
}

// Offset is the number of rows skipped before this page. Page and PageSize
// are clamped to their limits so the product cannot overflow.
func (r ListCommentsRequest) Offset() int {
	if r.Page < 1 || r.PageSize < 1 {
		return 0
	}
	return (min(r.Page, MaxPage) - 1) * min(r.PageSize, MaxPageSize)
}

// ValidateCaptchaRequest is the JSON body of POST /api/captcha/validate.
type ValidateCaptchaRequest struct {
	CaptchaID uint   `json:"captchaId" validate:"required"`
	Code      string `json:"code" validate:"required"`
}

// SearchCommentsRequest is the query of GET /api/comments/search.
type SearchCommentsRequest struct {
	Query string `query:"q" validate:"max=200"`
	Limit int    `query:"limit" validate:"min=1,max=100"`
}
