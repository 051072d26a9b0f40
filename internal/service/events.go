// Package service holds the business rules between the HTTP handlers and the
// repositories.
package service

import (
	"context"

	"agora/internal/models"
	"agora/internal/notifications"
)

// Event types announced to live subscribers.
const (
	EventPostCreated      = notifications.EventPostCreated
	EventCommentCreated   = notifications.EventCommentCreated
	EventAutoReplyCreated = notifications.EventAutoReplyCreated
)

// EventPublisher announces freshly stored, non-blocked content. Delivery is
// best effort.
type EventPublisher interface {
	PublishPostCreated(ctx context.Context, post *models.Post)
	PublishCommentCreated(ctx context.Context, comment *models.Comment, eventType string)
}

// CommentHook runs after a comment is stored; the auto-reply scheduler is the
// production implementation.
type CommentHook interface {
	AfterCommentCreated(ctx context.Context, post *models.Post, comment *models.Comment) (bool, error)
}
