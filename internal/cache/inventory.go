package cache

import (
	"fmt"
	"time"
)

const (
	CommentKeyPrefix = "comment:%d"
)

const (
	CommentTTL = 5 * time.Minute
)

// CommentKey is the cache key of a single comment response.
func CommentKey(commentID uint) string {
	return fmt.Sprintf(CommentKeyPrefix, commentID)
}
