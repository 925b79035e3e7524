package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"commentboard/internal/cache"
	"commentboard/internal/featureflags"
	"commentboard/internal/middleware"
	"commentboard/internal/models"
	"commentboard/internal/observability"
	"commentboard/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultDispatchTimeout = 5 * time.Second
	DefaultSearchLimit     = 20
)

// CaptchaVerifier checks and consumes challenges.
type CaptchaVerifier interface {
	Validate(ctx context.Context, id uint, code string) bool
	MarkUsed(ctx context.Context, id uint) (bool, error)
}

// HTMLSanitizer whitelists comment markup.
type HTMLSanitizer interface {
	Sanitize(html string) string
}

// AttachmentStore keeps comment attachments.
type AttachmentStore interface {
	Save(ctx context.Context, upload FileUpload, thumbnail bool) (*models.Attachment, error)
	Delete(ctx context.Context, path string) error
}

// ResponseCache holds serialized comment reads.
type ResponseCache interface {
	cache.JSONCache
	Delete(ctx context.Context, key string) error
}

// EventPublisher appends events to the durable comment stream.
type EventPublisher interface {
	Publish(ctx context.Context, event models.CommentEvent) error
}

// Broadcaster pushes a realtime message to connected viewers.
type Broadcaster interface {
	Broadcast(ctx context.Context, eventType string, payload any) error
}

// FeatureGate reports whether a named feature is on for a user.
type FeatureGate interface {
	Enabled(name string, userID uint) bool
}

// CreateCommentInput is a validated create request plus the caller's
// network identity.
type CreateCommentInput struct {
	UserName    string
	Email       string
	HomePage    *string
	Text        string
	ParentID    *uint
	CaptchaID   uint
	CaptchaCode string
	File        *FileUpload
	ClientIP    string
	UserAgent   string
}

// CommentServiceDeps are the collaborators composed into a CommentService.
// Cache, Events, Realtime and Flags may be nil.
type CommentServiceDeps struct {
	Comments  repository.CommentRepository
	Users     repository.UserRepository
	Documents repository.DocumentRepository
	Captcha   CaptchaVerifier
	Sanitizer HTMLSanitizer
	Files     AttachmentStore
	Cache     ResponseCache
	Events    EventPublisher
	Realtime  Broadcaster
	Flags     FeatureGate
	CacheTTL  time.Duration
	// Timeout bounds Create. Zero means no deadline beyond the caller's.
	Timeout time.Duration
}

// CommentService sequences captcha, user, sanitizer, file, storage, cache
// and fan-out for every comment mutation.
type CommentService struct {
	comments  repository.CommentRepository
	users     repository.UserRepository
	documents repository.DocumentRepository
	captcha   CaptchaVerifier
	sanitizer HTMLSanitizer
	files     AttachmentStore
	cache     ResponseCache
	events    EventPublisher
	realtime  Broadcaster
	flags     FeatureGate
	cacheTTL  time.Duration
	timeout   time.Duration

	dispatchTimeout time.Duration
	inflight        sync.WaitGroup
	now             func() time.Time
}

// NewCommentService builds a CommentService from deps.
func NewCommentService(deps CommentServiceDeps) *CommentService {
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = cache.CommentTTL
	}
	return &CommentService{
		comments:        deps.Comments,
		users:           deps.Users,
		documents:       deps.Documents,
		captcha:         deps.Captcha,
		sanitizer:       deps.Sanitizer,
		files:           deps.Files,
		cache:           deps.Cache,
		events:          deps.Events,
		realtime:        deps.Realtime,
		flags:           deps.Flags,
		cacheTTL:        ttl,
		timeout:         deps.Timeout,
		dispatchTimeout: defaultDispatchTimeout,
		now:             time.Now,
	}
}

// Create runs the full creation pipeline. Fan-out happens after commit and
// never fails the call.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (_ *models.CommentResponse, err error) {
	ctx, span := observability.StartSpan(ctx, "CommentService.Create",
		observability.CommentAttrs(0, in.ParentID)...)
	defer observability.EndSpan(span, &err)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if !s.captcha.Validate(ctx, in.CaptchaID, in.CaptchaCode) {
		return nil, models.NewValidationError("Invalid CAPTCHA")
	}

	user, err := s.users.GetOrCreate(ctx, &models.User{
		UserName:  in.UserName,
		Email:     in.Email,
		HomePage:  in.HomePage,
		IPAddress: in.ClientIP,
		UserAgent: in.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(observability.AttrUserID.Int64(int64(user.ID)))

	comment := &models.Comment{
		UserID:   user.ID,
		ParentID: in.ParentID,
		Text:     in.Text,
		TextHTML: s.sanitizer.Sanitize(in.Text),
	}

	if in.File != nil {
		attachment, err := s.files.Save(ctx, *in.File, s.enabled(featureflags.FlagThumbnails, user.ID))
		if err != nil {
			return nil, fileError(err)
		}
		comment.File = *attachment
	}

	if in.ParentID != nil {
		exists, err := s.comments.Exists(ctx, *in.ParentID)
		if err != nil {
			s.discardFile(ctx, comment)
			return nil, err
		}
		if !exists {
			s.discardFile(ctx, comment)
			return nil, models.NewValidationError("Parent comment not found")
		}
	}

	// Past this point the challenge gets consumed; a spent deadline must
	// leave it redeemable.
	if err := ctx.Err(); err != nil {
		s.discardFile(ctx, comment)
		return nil, err
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		s.discardFile(ctx, comment)
		return nil, err
	}
	observability.CommentsCreated.Inc()
	span.SetAttributes(observability.AttrCommentID.Int64(int64(comment.ID)))

	committed := context.WithoutCancel(ctx)
	if consumed, err := s.captcha.MarkUsed(committed, in.CaptchaID); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to mark captcha used",
			"captcha_id", in.CaptchaID, "comment_id", comment.ID, "error", err)
	} else if !consumed {
		middleware.Logger.WarnContext(ctx, "captcha already consumed by a concurrent request",
			"captcha_id", in.CaptchaID, "comment_id", comment.ID)
	}

	comment.User = *user
	resp := models.NewCommentResponse(comment)

	s.invalidate(committed, comment.ID, comment.ParentID)
	s.dispatch(committed, user.ID, models.CommentEvent{
		Type:      models.EventCommentCreated,
		CommentID: comment.ID,
		ParentID:  comment.ParentID,
		Comment:   &resp,
	}, models.RealtimeNewComment, resp)

	return &resp, nil
}

// Get returns a comment with its direct replies, consulting the cache first.
func (s *CommentService) Get(ctx context.Context, id uint) (*models.CommentResponse, error) {
	fetch := func(dest *models.CommentResponse) func() error {
		return func() error {
			comment, err := s.comments.GetWithReplies(ctx, id)
			if err != nil {
				return err
			}
			*dest = models.NewCommentResponse(comment)
			return nil
		}
	}

	var resp models.CommentResponse
	if s.cache == nil {
		if err := fetch(&resp)(); err != nil {
			return nil, err
		}
		return &resp, nil
	}

	key := cache.CommentKey(id)
	res, err := cache.Aside(ctx, s.cache, key, &resp, s.cacheTTL, fetch(&resp))
	switch {
	case res.Hit:
		observability.CacheLookups.WithLabelValues("hit").Inc()
	case res.ReadErr != nil:
		observability.CacheLookups.WithLabelValues("error").Inc()
		middleware.Logger.WarnContext(ctx, "cache read failed", "step", "cache_read", "key", key, "error", res.ReadErr)
	default:
		observability.CacheLookups.WithLabelValues("miss").Inc()
	}
	if err != nil {
		return nil, err
	}
	if res.WriteErr != nil {
		observability.SideEffectFailures.WithLabelValues("cache_write").Inc()
		middleware.Logger.WarnContext(ctx, "cache write failed", "step", "cache_write", "key", key, "error", res.WriteErr)
	}
	return &resp, nil
}

// List returns one page of comments under req.ParentID (roots when nil).
func (s *CommentService) List(ctx context.Context, req models.ListCommentsRequest) (*models.PagedResponse[models.CommentResponse], error) {
	comments, total, err := s.comments.List(ctx, req)
	if err != nil {
		return nil, err
	}
	page := models.NewPagedResponse(models.NewCommentResponses(comments), req.Page, req.PageSize, total)
	return &page, nil
}

// Replies lists the direct replies of parentID, oldest first.
func (s *CommentService) Replies(ctx context.Context, parentID uint) ([]models.CommentResponse, error) {
	exists, err := s.comments.Exists(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Comment", parentID)
	}
	replies, err := s.comments.ListReplies(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return models.NewCommentResponses(replies), nil
}

// Delete removes a childless comment and its attachment.
func (s *CommentService) Delete(ctx context.Context, id uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "CommentService.Delete", observability.CommentAttrs(id, nil)...)
	defer observability.EndSpan(span, &err)

	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	span.SetAttributes(observability.CommentAttrs(0, comment.ParentID)...)

	hasReplies, err := s.comments.HasReplies(ctx, id)
	if err != nil {
		return err
	}
	if hasReplies {
		return models.NewBusinessRuleError("Cannot delete comment with replies")
	}

	if comment.File.Present() {
		if err := s.files.Delete(ctx, comment.File.Path); err != nil {
			observability.SideEffectFailures.WithLabelValues("file_delete").Inc()
			middleware.Logger.WarnContext(ctx, "attachment delete failed",
				"step", "file_delete", "comment_id", id, "path", comment.File.Path, "error", err)
		}
	}

	if err := s.comments.Delete(ctx, id); err != nil {
		return err
	}
	observability.CommentsDeleted.Inc()

	committed := context.WithoutCancel(ctx)
	s.invalidate(committed, id, comment.ParentID)
	s.dispatch(committed, comment.UserID, models.CommentEvent{
		Type:      models.EventCommentDeleted,
		CommentID: id,
		ParentID:  comment.ParentID,
	}, models.RealtimeDeletedComment, models.DeletedCommentPayload{ID: id})

	return nil
}

// Search queries the comment index.
func (s *CommentService) Search(ctx context.Context, query string, limit int) ([]models.CommentDocument, error) {
	if s.documents == nil {
		return []models.CommentDocument{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return s.documents.Search(ctx, query, limit)
}

// Wait blocks until every in-flight fan-out has finished.
func (s *CommentService) Wait() {
	s.inflight.Wait()
}

// invalidate drops the cached read of id and of its parent, whose cached
// response embeds its replies.
func (s *CommentService) invalidate(ctx context.Context, id uint, parentID *uint) {
	if s.cache == nil {
		return
	}
	keys := []string{cache.CommentKey(id)}
	if parentID != nil {
		keys = append(keys, cache.CommentKey(*parentID))
	}
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			observability.SideEffectFailures.WithLabelValues("cache_invalidate").Inc()
			middleware.Logger.WarnContext(ctx, "cache invalidation failed",
				"step", "cache_invalidate", "key", key, "error", err)
		}
	}
}

// dispatch hands the event to the durable stream and the realtime channel
// on separate goroutines. Failures are logged and counted only.
func (s *CommentService) dispatch(ctx context.Context, userID uint, event models.CommentEvent, realtimeType string, payload any) {
	event.ID = uuid.NewString()
	event.OccurredAt = s.now().UTC()

	if s.events != nil && s.enabled(featureflags.FlagSearchIndexing, userID) {
		s.inflight.Go(func() {
			pctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
			defer cancel()
			if err := s.events.Publish(pctx, event); err != nil {
				observability.SideEffectFailures.WithLabelValues("event_publish").Inc()
				middleware.Logger.WarnContext(pctx, "event publish failed",
					"step", "event_publish", "event_type", event.Type, "comment_id", event.CommentID, "error", err)
			}
		})
	}

	if s.realtime != nil && s.enabled(featureflags.FlagRealtime, userID) {
		s.inflight.Go(func() {
			pctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
			defer cancel()
			if err := s.realtime.Broadcast(pctx, realtimeType, payload); err != nil {
				observability.SideEffectFailures.WithLabelValues("realtime_push").Inc()
				middleware.Logger.WarnContext(pctx, "realtime push failed",
					"step", "realtime_push", "event_type", realtimeType, "comment_id", event.CommentID, "error", err)
			}
		})
	}
}

func (s *CommentService) enabled(flag string, userID uint) bool {
	if s.flags == nil {
		return true
	}
	return s.flags.Enabled(flag, userID)
}

// discardFile removes an attachment stored for a comment that will not be
// persisted.
func (s *CommentService) discardFile(ctx context.Context, comment *models.Comment) {
	if !comment.File.Present() {
		return
	}
	if err := s.files.Delete(context.WithoutCancel(ctx), comment.File.Path); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to discard attachment",
			"step", "file_delete", "path", comment.File.Path, "error", err)
	}
}

// fileError surfaces attachment failures as validation errors. Context
// errors pass through so a spent deadline is reported as such.
func fileError(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &models.AppError{Code: models.CodeValidation, Message: "File could not be saved", Err: err}
}
