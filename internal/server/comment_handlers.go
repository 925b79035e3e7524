package server

import (
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"commentboard/internal/models"
	"commentboard/internal/service"
	"commentboard/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ListComments handles GET /api/comments
// @Summary List comments
// @Description Paged listing of root comments, or of one parent's replies
// @Tags comments
// @Produce json
// @Param Page query int false "Page number" default(1)
// @Param PageSize query int false "Page size (1-100)" default(25)
// @Param SortBy query string false "CreatedAt, UserName or Email" default(CreatedAt)
// @Param SortDescending query bool false "Sort descending" default(true)
// @Param ParentId query int false "List replies of this comment instead of root comments"
// @Param UserName query string false "Author name substring"
// @Param Email query string false "Author email substring"
// @Param StartDate query string false "Created at or after"
// @Param EndDate query string false "Created at or before"
// @Success 200 {object} models.APIResponse[models.PagedResponse[models.CommentResponse]]
// @Failure 400 {object} models.APIResponse[any]
// @Router /comments [get]
func (s *Server) ListComments(c *fiber.Ctx) error {
	req, err := parseListRequest(c)
	if err != nil {
		return s.respondError(c, err)
	}

	page, err := s.commentService.List(c.UserContext(), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(models.OK(page, ""))
}

// GetComment handles GET /api/comments/:id
// @Summary Get a comment
// @Description A single comment with its direct replies
// @Tags comments
// @Produce json
// @Param id path int true "Comment ID"
// @Success 200 {object} models.APIResponse[models.CommentResponse]
// @Failure 404 {object} models.APIResponse[any]
// @Router /comments/{id} [get]
func (s *Server) GetComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comment, err := s.commentService.Get(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(models.OK(comment, ""))
}

// GetReplies handles GET /api/comments/:id/replies
// @Summary List replies
// @Description Direct replies of a comment, oldest first
// @Tags comments
// @Produce json
// @Param id path int true "Parent comment ID"
// @Success 200 {object} models.APIResponse[[]models.CommentResponse]
// @Failure 404 {object} models.APIResponse[any]
// @Router /comments/{id}/replies [get]
func (s *Server) GetReplies(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	replies, err := s.commentService.Replies(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(models.OK(replies, ""))
}

// CreateComment handles POST /api/comments
// @Summary Create a comment
// @Description Creates a root comment or a reply. Requires a valid, unused CAPTCHA.
// @Tags comments
// @Accept mpfd
// @Produce json
// @Param UserName formData string true "Author name (letters and digits)"
// @Param Email formData string true "Author email"
// @Param HomePage formData string false "Author home page"
// @Param Text formData string true "Comment text; a, code, i and strong tags are kept"
// @Param ParentId formData int false "Parent comment ID"
// @Param CaptchaId formData int true "CAPTCHA ID"
// @Param CaptchaCode formData string true "CAPTCHA answer"
// @Param File formData file false "JPG, PNG or GIF up to 5 MB, or TXT up to 100 KB"
// @Success 201 {object} models.APIResponse[models.CommentResponse]
// @Failure 400 {object} models.APIResponse[any]
// @Failure 429 {object} models.APIResponse[any]
// @Router /comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return s.respondError(c, models.NewValidationError("Request must be multipart/form-data"))
	}

	req, err := parseCreateCommentForm(form)
	if err != nil {
		return s.respondError(c, err)
	}

	upload, err := readUpload(form)
	if err != nil {
		return s.respondError(c, err)
	}

	created, err := s.commentService.Create(c.UserContext(), service.CreateCommentInput{
		UserName:    req.UserName,
		Email:       req.Email,
		HomePage:    req.HomePage,
		Text:        req.Text,
		ParentID:    req.ParentID,
		CaptchaID:   req.CaptchaID,
		CaptchaCode: req.CaptchaCode,
		File:        upload,
		ClientIP:    c.IP(),
		UserAgent:   c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.OK(created, "Comment created"))
}

// DeleteComment handles DELETE /api/comments/:id
// @Summary Delete a comment
// @Description Deletes a comment without replies and its attachment
// @Tags comments
// @Produce json
// @Param id path int true "Comment ID"
// @Success 200 {object} models.APIResponse[bool]
// @Failure 404 {object} models.APIResponse[any]
// @Failure 422 {object} models.APIResponse[any]
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.commentService.Delete(c.UserContext(), id); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(models.OK(true, "Comment deleted"))
}

// SearchComments handles GET /api/comments/search
// @Summary Search comments
// @Description Case-insensitive substring search over author and text of indexed comments
// @Tags comments
// @Produce json
// @Param q query string false "Search text"
// @Param limit query int false "Maximum results (1-100)" default(20)
// @Success 200 {object} models.APIResponse[[]models.CommentDocument]
// @Failure 400 {object} models.APIResponse[any]
// @Router /comments/search [get]
func (s *Server) SearchComments(c *fiber.Ctx) error {
	req := models.SearchCommentsRequest{
		Query: strings.TrimSpace(c.Query("q")),
		Limit: service.DefaultSearchLimit,
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s.respondError(c, validation.Failed("limit must be a number"))
		}
		req.Limit = n
	}
	if err := validation.Struct(req); err != nil {
		return s.respondError(c, err)
	}

	docs, err := s.commentService.Search(c.UserContext(), req.Query, req.Limit)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(models.OK(docs, ""))
}

func parseCreateCommentForm(form *multipart.Form) (models.CreateCommentRequest, error) {
	value := func(key string) string {
		if vs := form.Value[key]; len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
		return ""
	}

	req := models.CreateCommentRequest{
		UserName:    value("UserName"),
		Email:       value("Email"),
		HomePage:    optionalString(value("HomePage")),
		Text:        value("Text"),
		CaptchaCode: value("CaptchaCode"),
	}

	var problems []string
	if v := value("ParentId"); v != "" {
		id, err := parseUintField(v)
		if err != nil {
			problems = append(problems, "ParentId must be a positive number")
		} else {
			req.ParentID = &id
		}
	}
	if v := value("CaptchaId"); v != "" {
		id, err := parseUintField(v)
		if err != nil {
			problems = append(problems, "CaptchaId must be a positive number")
		} else {
			req.CaptchaID = id
		}
	}
	if len(problems) > 0 {
		return req, validation.Failed(problems...)
	}
	return req, validation.Struct(req)
}

// readUpload returns the File part, or nil when none was sent.
func readUpload(form *multipart.Form) (*service.FileUpload, error) {
	files := form.File["File"]
	// Browsers send an empty, unnamed part when no file was picked.
	if len(files) == 0 || (files[0].Size == 0 && files[0].Filename == "") {
		return nil, nil
	}
	fh := files[0]

	f, err := fh.Open()
	if err != nil {
		return nil, models.NewValidationError("File could not be read")
	}
	defer func() { _ = f.Close() }()

	// One byte past the largest limit is enough for the size check to reject it.
	data, err := io.ReadAll(io.LimitReader(f, service.MaxImageBytes+1))
	if err != nil {
		return nil, models.NewValidationError("File could not be read")
	}
	return &service.FileUpload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, nil
}
