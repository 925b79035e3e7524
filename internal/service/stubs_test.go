package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"commentboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn         func(context.Context, *models.Comment) error
	getByIDFn        func(context.Context, uint) (*models.Comment, error)
	getWithRepliesFn func(context.Context, uint) (*models.Comment, error)
	listFn           func(context.Context, models.ListCommentsRequest) ([]models.Comment, int64, error)
	listRepliesFn    func(context.Context, uint) ([]models.Comment, error)
	existsFn         func(context.Context, uint) (bool, error)
	hasRepliesFn     func(context.Context, uint) (bool, error)
	deleteFn         func(context.Context, uint) error
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) GetWithReplies(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getWithRepliesFn(ctx, id)
}
func (s *commentRepoStub) List(ctx context.Context, req models.ListCommentsRequest) ([]models.Comment, int64, error) {
	return s.listFn(ctx, req)
}
func (s *commentRepoStub) ListReplies(ctx context.Context, parentID uint) ([]models.Comment, error) {
	return s.listRepliesFn(ctx, parentID)
}
func (s *commentRepoStub) Exists(ctx context.Context, id uint) (bool, error) {
	return s.existsFn(ctx, id)
}
func (s *commentRepoStub) HasReplies(ctx context.Context, id uint) (bool, error) {
	return s.hasRepliesFn(ctx, id)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn: func(_ context.Context, c *models.Comment) error {
			c.ID = 1
			c.CreatedAt = time.Now()
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Comment, error) {
			return &models.Comment{ID: id}, nil
		},
		getWithRepliesFn: func(_ context.Context, id uint) (*models.Comment, error) {
			return &models.Comment{ID: id}, nil
		},
		listFn: func(_ context.Context, _ models.ListCommentsRequest) ([]models.Comment, int64, error) {
			return nil, 0, nil
		},
		listRepliesFn: func(_ context.Context, _ uint) ([]models.Comment, error) { return nil, nil },
		existsFn:      func(_ context.Context, _ uint) (bool, error) { return true, nil },
		hasRepliesFn:  func(_ context.Context, _ uint) (bool, error) { return false, nil },
		deleteFn:      func(_ context.Context, _ uint) error { return nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIdentityFn func(context.Context, string, string) (*models.User, error)
	getOrCreateFn   func(context.Context, *models.User) (*models.User, error)
}

func (s *userRepoStub) GetByIdentity(ctx context.Context, userName, email string) (*models.User, error) {
	return s.getByIdentityFn(ctx, userName, email)
}
func (s *userRepoStub) GetOrCreate(ctx context.Context, candidate *models.User) (*models.User, error) {
	return s.getOrCreateFn(ctx, candidate)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIdentityFn: func(_ context.Context, userName, email string) (*models.User, error) {
			return &models.User{ID: 7, UserName: userName, Email: email}, nil
		},
		getOrCreateFn: func(_ context.Context, candidate *models.User) (*models.User, error) {
			u := *candidate
			u.ID = 7
			return &u, nil
		},
	}
}

// captchaRepoStub is a stub for repository.CaptchaRepository.
type captchaRepoStub struct {
	createFn    func(context.Context, *models.Captcha) error
	getByIDFn   func(context.Context, uint) (*models.Captcha, error)
	markUsedFn  func(context.Context, uint, time.Time) (bool, error)
	deleteOldFn func(context.Context, time.Time) (int64, error)
}

func (s *captchaRepoStub) Create(ctx context.Context, c *models.Captcha) error {
	return s.createFn(ctx, c)
}
func (s *captchaRepoStub) GetByID(ctx context.Context, id uint) (*models.Captcha, error) {
	return s.getByIDFn(ctx, id)
}
func (s *captchaRepoStub) MarkUsed(ctx context.Context, id uint, now time.Time) (bool, error) {
	return s.markUsedFn(ctx, id, now)
}
func (s *captchaRepoStub) DeleteExpiredOrUsed(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteOldFn(ctx, now)
}

func noopCaptchaRepo() *captchaRepoStub {
	return &captchaRepoStub{
		createFn: func(_ context.Context, c *models.Captcha) error {
			c.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Captcha, error) {
			return nil, models.NewNotFoundError("Captcha", id)
		},
		markUsedFn:  func(_ context.Context, _ uint, _ time.Time) (bool, error) { return true, nil },
		deleteOldFn: func(_ context.Context, _ time.Time) (int64, error) { return 0, nil },
	}
}

// captchaStub is a stub for CaptchaVerifier.
type captchaStub struct {
	validateFn func(context.Context, uint, string) bool
	markUsedFn func(context.Context, uint) (bool, error)
}

func (s *captchaStub) Validate(ctx context.Context, id uint, code string) bool {
	return s.validateFn(ctx, id, code)
}
func (s *captchaStub) MarkUsed(ctx context.Context, id uint) (bool, error) {
	return s.markUsedFn(ctx, id)
}

func noopCaptcha() *captchaStub {
	return &captchaStub{
		validateFn: func(_ context.Context, _ uint, _ string) bool { return true },
		markUsedFn: func(_ context.Context, _ uint) (bool, error) { return true, nil },
	}
}

// filesStub is a stub for AttachmentStore.
type filesStub struct {
	saveFn   func(context.Context, FileUpload, bool) (*models.Attachment, error)
	deleteFn func(context.Context, string) error
}

func (s *filesStub) Save(ctx context.Context, upload FileUpload, thumbnail bool) (*models.Attachment, error) {
	return s.saveFn(ctx, upload, thumbnail)
}
func (s *filesStub) Delete(ctx context.Context, path string) error {
	return s.deleteFn(ctx, path)
}

func noopFiles() *filesStub {
	return &filesStub{
		saveFn: func(_ context.Context, u FileUpload, _ bool) (*models.Attachment, error) {
			return &models.Attachment{Name: u.FileName, Path: PublicPrefix + "stored.png", Type: models.FileTypeImage}, nil
		},
		deleteFn: func(_ context.Context, _ string) error { return nil },
	}
}

// cacheStub is an in-memory ResponseCache that records deletes.
type cacheStub struct {
	mu      sync.Mutex
	entries map[string]any
	deleted []string
	getErr  error
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: map[string]any{}}
}

func (s *cacheStub) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return false, s.getErr
	}
	v, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	resp, ok := v.(models.CommentResponse)
	if !ok {
		return false, errors.New("unexpected cache value")
	}
	*(dest.(*models.CommentResponse)) = resp
	return true, nil
}

func (s *cacheStub) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := v.(*models.CommentResponse); ok {
		v = *p
	}
	s.entries[key] = v
	return nil
}

func (s *cacheStub) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	s.deleted = append(s.deleted, key)
	return nil
}

// eventsStub records published events.
type eventsStub struct {
	mu     sync.Mutex
	events []models.CommentEvent
	err    error
}

func (s *eventsStub) Publish(_ context.Context, event models.CommentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *eventsStub) published() []models.CommentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CommentEvent(nil), s.events...)
}

type broadcastCall struct {
	eventType string
	payload   any
}

// broadcasterStub records realtime pushes.
type broadcasterStub struct {
	mu    sync.Mutex
	calls []broadcastCall
	err   error
}

func (s *broadcasterStub) Broadcast(_ context.Context, eventType string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, broadcastCall{eventType: eventType, payload: payload})
	return s.err
}

func (s *broadcasterStub) pushed() []broadcastCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]broadcastCall(nil), s.calls...)
}

// flagsStub switches every flag at once.
type flagsStub bool

func (f flagsStub) Enabled(string, uint) bool { return bool(f) }

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeValidation)
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
