package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"commentboard/internal/config"
	"commentboard/internal/models"
	"commentboard/internal/storage"
	"commentboard/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type apiHarness struct {
	t   *testing.T
	srv *Server
	app *fiber.App
	db  *gorm.DB
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		Env:               "test",
		FeatureFlags:      "realtime=on,search_indexing=on,thumbnails=on",
		CacheTTLSeconds:   60,
		CacheLocalSize:    128,
		CaptchaTTLMinutes: 10,
		BodyLimitMB:       10,
	}
	srv, err := NewServerWithDeps(cfg, db, nil, store)
	require.NoError(t, err)
	t.Cleanup(srv.commentService.Wait)

	return &apiHarness{t: t, srv: srv, app: srv.App(), db: db}
}

func (h *apiHarness) do(req *http.Request) *http.Response {
	h.t.Helper()
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (h *apiHarness) get(path string) *http.Response {
	return h.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var body models.APIResponse[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success, "errors: %v", body.Errors)
	return body.Data
}

// captcha issues a challenge and reads its answer back from the database.
func (h *apiHarness) captcha() (uint, string) {
	h.t.Helper()
	resp := h.get("/api/captcha")
	require.Equal(h.t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(h.t, "no-store", resp.Header.Get(fiber.HeaderCacheControl))

	challenge := decodeData[models.CaptchaResponse](h.t, resp)
	require.NotZero(h.t, challenge.CaptchaID)
	require.True(h.t, strings.HasPrefix(challenge.ImageData, "data:image/png;base64,"))

	var row models.Captcha
	require.NoError(h.t, h.db.First(&row, challenge.CaptchaID).Error)
	return challenge.CaptchaID, row.Code
}

type attachment struct {
	name        string
	contentType string
	data        []byte
}

func commentForm(t *testing.T, fields map[string]string, file *attachment) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="File"; filename="%s"`, file.name))
		hdr.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func (h *apiHarness) postComment(fields map[string]string, file *attachment) *http.Response {
	h.t.Helper()
	body, contentType := commentForm(h.t, fields, file)
	req := httptest.NewRequest(http.MethodPost, "/api/comments", body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	return h.do(req)
}

func (h *apiHarness) createComment(userName, text string, parentID *uint) models.CommentResponse {
	h.t.Helper()
	id, code := h.captcha()
	fields := map[string]string{
		"UserName":    userName,
		"Email":       strings.ToLower(userName) + "@example.com",
		"Text":        text,
		"CaptchaId":   fmt.Sprint(id),
		"CaptchaCode": code,
	}
	if parentID != nil {
		fields["ParentId"] = fmt.Sprint(*parentID)
	}
	resp := h.postComment(fields, nil)
	require.Equal(h.t, fiber.StatusCreated, resp.StatusCode)
	return decodeData[models.CommentResponse](h.t, resp)
}

func TestCreateComment_SanitizesAndConsumesCaptcha(t *testing.T) {
	h := newAPIHarness(t)
	id, code := h.captcha()

	fields := map[string]string{
		"UserName":    "alice",
		"Email":       "alice@example.com",
		"HomePage":    "https://alice.example.com",
		"Text":        `<strong>hi</strong><script>alert(1)</script> <a href="https://example.com" onclick="x()">link</a>`,
		"CaptchaId":   fmt.Sprint(id),
		"CaptchaCode": code,
	}
	resp := h.postComment(fields, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decodeData[models.CommentResponse](t, resp)

	assert.Equal(t, "alice", created.UserName)
	assert.Contains(t, created.TextHTML, "<strong>hi</strong>")
	assert.NotContains(t, created.TextHTML, "<script>")
	assert.NotContains(t, created.TextHTML, "onclick")
	require.NotNil(t, created.HomePage)
	assert.Equal(t, "https://alice.example.com", *created.HomePage)

	got := decodeData[models.CommentResponse](t, h.get(fmt.Sprintf("/api/comments/%d", created.ID)))
	assert.Equal(t, created.TextHTML, got.TextHTML)
	assert.Empty(t, got.Replies)

	// The same challenge cannot be redeemed twice.
	resp = h.postComment(fields, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeEnvelope(t, resp)
	assert.Equal(t, "Invalid CAPTCHA", body.Message)
}

func TestCreateComment_ValidationErrors(t *testing.T) {
	h := newAPIHarness(t)

	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"non alphanumeric name", func(f map[string]string) { f["UserName"] = "al ice!" }},
		{"bad email", func(f map[string]string) { f["Email"] = "not-an-email" }},
		{"bad home page", func(f map[string]string) { f["HomePage"] = "ftp//nowhere" }},
		{"empty text", func(f map[string]string) { f["Text"] = "" }},
		{"missing captcha", func(f map[string]string) { delete(f, "CaptchaId") }},
		{"bad parent", func(f map[string]string) { f["ParentId"] = "abc" }},
		{"wrong captcha answer", func(f map[string]string) { f["CaptchaCode"] = "zzzzzz" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, _ := h.captcha()
			fields := map[string]string{
				"UserName":    "bob",
				"Email":       "bob@example.com",
				"Text":        "hello",
				"CaptchaId":   fmt.Sprint(id),
				"CaptchaCode": "zzzzzz",
			}
			tt.mutate(fields)
			resp := h.postComment(fields, nil)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.False(t, decodeEnvelope(t, resp).Success)
		})
	}

	var count int64
	require.NoError(t, h.db.Model(&models.Comment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateComment_RejectsNonMultipart(t *testing.T) {
	h := newAPIHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/api/comments", strings.NewReader(`{"UserName":"bob"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp := h.do(req)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateComment_UnknownParent(t *testing.T) {
	h := newAPIHarness(t)
	id, code := h.captcha()

	resp := h.postComment(map[string]string{
		"UserName":    "carol",
		"Email":       "carol@example.com",
		"Text":        "orphan",
		"ParentId":    "999",
		"CaptchaId":   fmt.Sprint(id),
		"CaptchaCode": code,
	}, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// A failed create leaves the challenge redeemable.
	var row models.Captcha
	require.NoError(t, h.db.First(&row, id).Error)
	assert.False(t, row.IsUsed)
}

func TestCreateComment_ImageAttachmentGetsThumbnail(t *testing.T) {
	h := newAPIHarness(t)
	id, code := h.captcha()

	resp := h.postComment(map[string]string{
		"UserName":    "dave",
		"Email":       "dave@example.com",
		"Text":        "look at this",
		"CaptchaId":   fmt.Sprint(id),
		"CaptchaCode": code,
	}, &attachment{name: "photo.png", contentType: "image/png", data: testutil.TinyPNG(t, 640, 480)})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decodeData[models.CommentResponse](t, resp)

	require.NotNil(t, created.File)
	assert.Equal(t, models.FileTypeImage, created.File.FileType)
	assert.Equal(t, ".png", created.File.FileExtension)
	require.NotNil(t, created.File.ThumbnailPath)

	thumb := h.get(*created.File.ThumbnailPath)
	require.Equal(t, fiber.StatusOK, thumb.StatusCode)
	cfg, _, err := image.DecodeConfig(thumb.Body)
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Width, 320)
	assert.LessOrEqual(t, cfg.Height, 240)

	original := h.get("/api/files" + created.File.FilePath)
	require.Equal(t, fiber.StatusOK, original.StatusCode)
	assert.Equal(t, "image/png", original.Header.Get(fiber.HeaderContentType))
}

func TestCreateComment_RejectsOversizedText(t *testing.T) {
	h := newAPIHarness(t)
	id, code := h.captcha()

	resp := h.postComment(map[string]string{
		"UserName":    "erin",
		"Email":       "erin@example.com",
		"Text":        "notes",
		"CaptchaId":   fmt.Sprint(id),
		"CaptchaCode": code,
	}, &attachment{name: "notes.txt", contentType: "text/plain", data: bytes.Repeat([]byte("a"), 100*1024+1)})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeEnvelope(t, resp)
	assert.Equal(t, "Invalid file", body.Message)
}

func TestReplies_AndDeleteOrder(t *testing.T) {
	h := newAPIHarness(t)

	root := h.createComment("alice", "root", nil)
	reply := h.createComment("bob", "first reply", &root.ID)
	assert.Equal(t, root.ID, *reply.ParentID)

	replies := decodeData[[]models.CommentResponse](t, h.get(fmt.Sprintf("/api/comments/%d/replies", root.ID)))
	require.Len(t, replies, 1)
	assert.Equal(t, reply.ID, replies[0].ID)

	got := decodeData[models.CommentResponse](t, h.get(fmt.Sprintf("/api/comments/%d", root.ID)))
	require.Len(t, got.Replies, 1)

	resp := h.do(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/comments/%d", root.ID), nil))
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp = h.do(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/comments/%d", reply.ID), nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, decodeData[bool](t, resp))

	resp = h.do(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/comments/%d", root.ID), nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, fiber.StatusNotFound, h.get(fmt.Sprintf("/api/comments/%d", root.ID)).StatusCode)
	assert.Equal(t, fiber.StatusNotFound, h.do(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/comments/%d", root.ID), nil)).StatusCode)
}

func TestListComments_PaginationAndFilters(t *testing.T) {
	h := newAPIHarness(t)

	alice := testutil.SeedUser(t, h.db, "alice", "alice@example.com")
	bob := testutil.SeedUser(t, h.db, "bob", "bob@example.com")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var first *models.Comment
	for i := 0; i < 25; i++ {
		author := alice
		if i%5 == 0 {
			author = bob
		}
		c := testutil.SeedComment(t, h.db, author, nil, fmt.Sprintf("comment %d", i), base.Add(time.Duration(i)*time.Hour))
		if first == nil {
			first = c
		}
	}
	testutil.SeedComment(t, h.db, bob, &first.ID, "a reply", base.Add(48*time.Hour))

	page := decodeData[models.PagedResponse[models.CommentResponse]](t, h.get("/api/comments?Page=3&PageSize=10"))
	assert.Equal(t, int64(25), page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 5)
	// Newest first by default, so the oldest root is last.
	assert.Equal(t, first.ID, page.Items[len(page.Items)-1].ID)

	page = decodeData[models.PagedResponse[models.CommentResponse]](t, h.get("/api/comments?Page=2&PageSize=10"))
	assert.Len(t, page.Items, 10)

	page = decodeData[models.PagedResponse[models.CommentResponse]](t, h.get("/api/comments?UserName=bob&PageSize=100"))
	assert.Equal(t, int64(5), page.TotalCount)
	for _, item := range page.Items {
		assert.Equal(t, "bob", item.UserName)
	}

	page = decodeData[models.PagedResponse[models.CommentResponse]](t, h.get("/api/comments?SortBy=CreatedAt&SortDescending=false&PageSize=1"))
	require.Len(t, page.Items, 1)
	assert.Equal(t, first.ID, page.Items[0].ID)

	page = decodeData[models.PagedResponse[models.CommentResponse]](t, h.get(fmt.Sprintf("/api/comments?ParentId=%d", first.ID)))
	assert.Equal(t, int64(1), page.TotalCount)

	assert.Equal(t, fiber.StatusBadRequest, h.get("/api/comments?PageSize=0").StatusCode)
}

func TestValidateCaptcha(t *testing.T) {
	h := newAPIHarness(t)
	id, code := h.captcha()

	check := func(body string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/api/captcha/validate", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return h.do(req)
	}

	resp := check(fmt.Sprintf(`{"captchaId":%d,"code":%q}`, id, code))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, decodeData[bool](t, resp))

	resp = check(fmt.Sprintf(`{"captchaId":%d,"code":"nope"}`, id))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, decodeData[bool](t, resp))

	assert.Equal(t, fiber.StatusBadRequest, check(`{"code":"x"}`).StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, check(`not json`).StatusCode)
}

func TestSearchComments_WithoutIndexer(t *testing.T) {
	h := newAPIHarness(t)

	docs := decodeData[[]models.CommentDocument](t, h.get("/api/comments/search?q=anything"))
	assert.Empty(t, docs)
	assert.Equal(t, fiber.StatusBadRequest, h.get("/api/comments/search?limit=abc").StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, h.get("/api/comments/search?limit=0").StatusCode)
}

func TestFilesAndSystemEndpoints(t *testing.T) {
	h := newAPIHarness(t)

	assert.Equal(t, fiber.StatusNotFound, h.get("/api/files/uploads/missing.png").StatusCode)
	assert.Equal(t, fiber.StatusNotFound, h.get("/api/files/..%2F..%2Fetc%2Fpasswd").StatusCode)

	resp := h.get("/health")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var health struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, decodeJSON(resp, &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "healthy", health.Checks["database"])
	assert.Equal(t, "unavailable", health.Checks["redis"])

	assert.Equal(t, fiber.StatusOK, h.get("/health/live").StatusCode)

	flags := decodeData[FeatureFlagsResponse](t, h.get("/api/feature-flags"))
	assert.Equal(t, "on", flags.Raw["realtime"])
	assert.True(t, flags.Evaluated["thumbnails"])

	assert.Equal(t, fiber.StatusUpgradeRequired, h.get("/ws/comments").StatusCode)

	resp = h.get("/metrics")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	metrics, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "http_requests_total")
}
