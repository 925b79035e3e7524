package models

import "time"

// Durable event types carried on the comment event stream.
const (
	EventCommentCreated = "comment.created"
	EventCommentDeleted = "comment.deleted"
)

// Realtime message types exchanged over the comments websocket.
const (
	RealtimeNewComment     = "NewComment"
	RealtimeDeletedComment = "DeletedComment"
	RealtimeJoinComments   = "JoinComments"
	RealtimeLeaveComments  = "LeaveComments"
)

// CommentEvent is published after a comment mutation commits.
type CommentEvent struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	CommentID  uint             `json:"commentId"`
	ParentID   *uint            `json:"parentId,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
	Comment    *CommentResponse `json:"comment,omitempty"`
}
