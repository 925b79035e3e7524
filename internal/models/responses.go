package models

import "time"

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse[T any] struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Data    T        `json:"data"`
	Errors  []string `json:"errors"`
}

// OK wraps data in a successful envelope.
func OK[T any](data T, message string) APIResponse[T] {
	return APIResponse[T]{Success: true, Message: message, Data: data, Errors: []string{}}
}

// FileInfoResponse describes a comment attachment.
type FileInfoResponse struct {
	FileName      string   `json:"fileName"`
	FileExtension string   `json:"fileExtension"`
	FileSize      int64    `json:"fileSize"`
	FilePath      string   `json:"filePath"`
	FileType      FileType `json:"fileType"`
	ThumbnailPath *string  `json:"thumbnailPath"`
}

// CommentResponse is the public projection of a comment.
type CommentResponse struct {
	ID        uint              `json:"id"`
	UserName  string            `json:"userName"`
	Email     string            `json:"email"`
	HomePage  *string           `json:"homePage"`
	Text      string            `json:"text"`
	TextHTML  string            `json:"textHtml"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt *time.Time        `json:"updatedAt"`
	ParentID  *uint             `json:"parentId"`
	File      *FileInfoResponse `json:"file"`
	Replies   []CommentResponse `json:"replies"`
}

// PagedResponse is one page of a listing.
type PagedResponse[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
}

// NewPagedResponse computes TotalPages from the count and page size.
func NewPagedResponse[T any](items []T, page, pageSize int, total int64) PagedResponse[T] {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	if items == nil {
		items = []T{}
	}
	return PagedResponse[T]{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: pages,
	}
}

// CaptchaResponse carries a freshly generated challenge.
type CaptchaResponse struct {
	CaptchaID uint      `json:"captchaId"`
	ImageData string    `json:"imageData"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// DeletedCommentPayload is pushed to realtime clients after a delete.
type DeletedCommentPayload struct {
	ID uint `json:"id"`
}

// NewCommentResponse maps a comment (and any loaded replies) to its response.
func NewCommentResponse(c *Comment) CommentResponse {
	resp := CommentResponse{
		ID:        c.ID,
		UserName:  c.User.UserName,
		Email:     c.User.Email,
		HomePage:  c.User.HomePage,
		Text:      c.Text,
		TextHTML:  c.TextHTML,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		ParentID:  c.ParentID,
		Replies:   make([]CommentResponse, 0, len(c.Replies)),
	}
	if c.File.Present() {
		info := &FileInfoResponse{
			FileName:      c.File.Name,
			FileExtension: c.File.Extension,
			FileSize:      c.File.Size,
			FilePath:      c.File.Path,
			FileType:      c.File.Type,
		}
		if c.File.ThumbnailPath != "" {
			thumb := c.File.ThumbnailPath
			info.ThumbnailPath = &thumb
		}
		resp.File = info
	}
	for i := range c.Replies {
		resp.Replies = append(resp.Replies, NewCommentResponse(&c.Replies[i]))
	}
	return resp
}

// NewCommentResponses maps a slice of comments.
func NewCommentResponses(comments []Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, NewCommentResponse(&comments[i]))
	}
	return out
}
