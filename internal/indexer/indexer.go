// Package indexer keeps the comment search projection in step with the
// comment event stream.
package indexer

import (
	"context"
	"fmt"
	"time"

	"commentboard/internal/middleware"
	"commentboard/internal/models"
	"commentboard/internal/notifications"
	"commentboard/internal/repository"
)

// Indexer applies comment events to the comment_documents table.
type Indexer struct {
	comments  repository.CommentRepository
	documents repository.DocumentRepository
	now       func() time.Time
}

// New returns an Indexer reading comments and writing documents.
func New(comments repository.CommentRepository, documents repository.DocumentRepository) *Indexer {
	return &Indexer{comments: comments, documents: documents, now: time.Now}
}

// Handle is a notifications.EventHandler.
func (ix *Indexer) Handle(ctx context.Context, event models.CommentEvent) error {
	switch event.Type {
	case models.EventCommentCreated:
		comment, err := ix.comments.GetByID(ctx, event.CommentID)
		if models.HasCode(err, models.CodeNotFound) {
			// Deleted before we got to it; the delete event may already have run.
			return ix.documents.Delete(ctx, event.CommentID)
		}
		if err != nil {
			return err
		}
		doc := models.NewCommentDocument(comment, ix.now().UTC())
		if err := ix.documents.Upsert(ctx, &doc); err != nil {
			return err
		}
		middleware.Logger.DebugContext(ctx, "indexed comment", "comment_id", event.CommentID)
		return nil

	case models.EventCommentDeleted:
		return ix.documents.Delete(ctx, event.CommentID)

	default:
		return fmt.Errorf("%w: unknown event type %q", notifications.ErrPermanent, event.Type)
	}
}

// Run consumes queue until ctx is done.
func (ix *Indexer) Run(ctx context.Context, queue *notifications.EventQueue, concurrency int) error {
	middleware.Logger.Info("search indexer started", "stream", queue.Stream(), "workers", concurrency)
	defer middleware.Logger.Info("search indexer stopped")
	return queue.Run(ctx, concurrency, ix.Handle)
}
