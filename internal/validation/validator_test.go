package validation

import (
	"strings"
	"testing"
	"time"

	"commentboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreate() models.CreateCommentRequest {
	return models.CreateCommentRequest{
		UserName:    "alice42",
		Email:       "alice@example.com",
		Text:        "hello",
		CaptchaID:   1,
		CaptchaCode: "AbC123",
	}
}

func details(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)
	assert.Equal(t, MessageValidationFailed, appErr.Message)
	return appErr.Details
}

func TestStruct_CreateComment(t *testing.T) {
	homepage := "https://alice.example.com"
	badHome := "ftp://alice.example.com"
	zero := uint(0)

	tests := []struct {
		name    string
		mutate  func(r *models.CreateCommentRequest)
		wantErr string
	}{
		{"valid", func(r *models.CreateCommentRequest) {}, ""},
		{"valid with homepage", func(r *models.CreateCommentRequest) { r.HomePage = &homepage }, ""},
		{"short user name", func(r *models.CreateCommentRequest) { r.UserName = "ab" }, "UserName must be at least 3 characters"},
		{"long user name", func(r *models.CreateCommentRequest) { r.UserName = strings.Repeat("a", 51) }, "UserName must be at most 50 characters"},
		{"non alphanumeric user name", func(r *models.CreateCommentRequest) { r.UserName = "alice_1" }, "UserName may only contain letters and digits"},
		{"bad email", func(r *models.CreateCommentRequest) { r.Email = "not-an-email" }, "Email must be a valid email address"},
		{"non http homepage", func(r *models.CreateCommentRequest) { r.HomePage = &badHome }, "HomePage must be an absolute http or https URL"},
		{"empty text", func(r *models.CreateCommentRequest) { r.Text = "" }, "Text is required"},
		{"text too long", func(r *models.CreateCommentRequest) { r.Text = strings.Repeat("x", 5001) }, "Text must be at most 5000 characters"},
		{"zero parent", func(r *models.CreateCommentRequest) { r.ParentID = &zero }, "ParentID must be greater than 0"},
		{"missing captcha id", func(r *models.CreateCommentRequest) { r.CaptchaID = 0 }, "CaptchaID is required"},
		{"short captcha code", func(r *models.CreateCommentRequest) { r.CaptchaCode = "abc" }, "CaptchaCode must be at least 4 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreate()
			tt.mutate(&req)
			err := Struct(&req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Contains(t, details(t, err), tt.wantErr)
		})
	}
}

func TestStruct_CollectsAllViolations(t *testing.T) {
	req := models.CreateCommentRequest{}
	msgs := details(t, Struct(&req))
	assert.GreaterOrEqual(t, len(msgs), 5)
}

func TestStruct_ListComments(t *testing.T) {
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	req := models.DefaultListCommentsRequest()
	assert.NoError(t, Struct(&req))

	req.PageSize = 101
	assert.Contains(t, details(t, Struct(&req)), "PageSize must be at most 100")

	req = models.DefaultListCommentsRequest()
	req.Page = 0
	assert.Contains(t, details(t, Struct(&req)), "Page must be greater than 0")

	req = models.DefaultListCommentsRequest()
	req.SortBy = "Text"
	assert.Contains(t, details(t, Struct(&req)), "SortBy must be one of: CreatedAt, UserName, Email")

	req = models.DefaultListCommentsRequest()
	req.StartDate, req.EndDate = &start, &end
	assert.Contains(t, details(t, Struct(&req)), "StartDate must not be after EndDate")
}

func TestNormalizeSortBy(t *testing.T) {
	assert.Equal(t, models.SortByCreatedAt, NormalizeSortBy(""))
	assert.Equal(t, models.SortByUserName, NormalizeSortBy("username"))
	assert.Equal(t, models.SortByEmail, NormalizeSortBy(" EMAIL "))
	assert.Equal(t, "Text", NormalizeSortBy("Text"))
}

func TestFailed(t *testing.T) {
	assert.Equal(t, []string{"Page must be an integer"}, details(t, Failed("Page must be an integer")))
}
