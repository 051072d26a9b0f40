package autoreply

import (
	"context"
	"errors"
	"fmt"

	"agora/internal/completion"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/moderation"
	"agora/internal/notifications"
	"agora/internal/queue"
)

// BuildPrompt is the instruction sent to the completion service.
func BuildPrompt(commentText string) string {
	return fmt.Sprintf("Answer to this comment '%s' as it was me, in a positive way", commentText)
}

// PostLookup finds the post a reply belongs to.
type PostLookup interface {
	GetByID(ctx context.Context, id uint) (*models.Post, error)
}

// CommentWriter persists generated replies.
type CommentWriter interface {
	Create(ctx context.Context, comment *models.Comment) error
}

// Publisher announces stored replies; optional.
type Publisher interface {
	PublishCommentCreated(ctx context.Context, comment *models.Comment, eventType string)
}

// Worker handles auto-reply tasks.
type Worker struct {
	posts     PostLookup
	comments  CommentWriter
	client    completion.Client
	policy    *moderation.Policy
	flags     *featureflags.Manager
	publisher Publisher
}

// NewWorker builds a Worker. policy, flags and publisher may be nil.
func NewWorker(posts PostLookup, comments CommentWriter, client completion.Client, policy *moderation.Policy, flags *featureflags.Manager, publisher Publisher) *Worker {
	return &Worker{
		posts:     posts,
		comments:  comments,
		client:    client,
		policy:    policy,
		flags:     flags,
		publisher: publisher,
	}
}

// Handle implements queue.Handler for TaskType.
func (w *Worker) Handle(ctx context.Context, task queue.Task) error {
	if task.Type != TaskType {
		return queue.Permanent(fmt.Errorf("unexpected task type %q", task.Type))
	}

	var p Payload
	if err := task.Decode(&p); err != nil {
		return err
	}

	post, err := w.posts.GetByID(ctx, p.PostID)
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return queue.Permanent(fmt.Errorf("post %d no longer exists", p.PostID))
		}
		return fmt.Errorf("load post %d: %w", p.PostID, err)
	}

	reply, err := w.client.Complete(ctx, BuildPrompt(p.CommentText))
	if err != nil {
		var apiErr *completion.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
			apiErr.StatusCode != 408 && apiErr.StatusCode != 429 {
			return queue.Permanent(err)
		}
		return err
	}

	comment := &models.Comment{
		PostID: post.ID,
		UserID: p.PostOwnerID,
		Text:   reply,
	}
	if w.policy != nil && w.flags.Enabled(featureflags.AutoReplyModeration, p.PostOwnerID) {
		comment.IsBlocked = w.policy.Evaluate(comment.Text).Blocked
	}

	if err := w.comments.Create(ctx, comment); err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return queue.Permanent(err)
		}
		return fmt.Errorf("store auto-reply: %w", err)
	}

	middleware.Logger.InfoContext(ctx, "auto-reply stored",
		"post_id", post.ID, "comment_id", comment.ID, "blocked", comment.IsBlocked)

	if w.publisher != nil && !comment.IsBlocked {
		w.publisher.PublishCommentCreated(ctx, comment, notifications.EventAutoReplyCreated)
	}
	return nil
}
