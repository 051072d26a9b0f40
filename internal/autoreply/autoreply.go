// Package autoreply schedules and produces the automatic replies a post
// owner can opt into for comments left by other users.
package autoreply

import (
	"context"
	"fmt"
	"time"

	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/queue"
)

// TaskType identifies auto-reply tasks on the queue.
const TaskType = "auto_reply"

// Payload is the task body. It holds values captured when the comment was
// created, never live records.
type Payload struct {
	PostID      uint   `json:"post_id"`
	PostOwnerID uint   `json:"post_owner_id"`
	CommentText string `json:"comment_text"`
}

// ShouldSchedule reports whether a comment on post by commenterID earns an
// auto-reply: the owner opted in and is not replying to themselves.
func ShouldSchedule(post *models.Post, commenterID uint) bool {
	return post != nil && post.AutoReplyEnabled && commenterID != post.UserID
}

// Delay converts the post's configured delay in minutes.
func Delay(post *models.Post) time.Duration {
	if post.AutoReplyDelay <= 0 {
		return 0
	}
	return time.Duration(post.AutoReplyDelay) * time.Minute
}

// Scheduler enqueues auto-reply tasks after comment creation.
type Scheduler struct {
	queue queue.Scheduler
	flags *featureflags.Manager
}

// NewScheduler returns a Scheduler that enqueues on q. flags may be nil.
func NewScheduler(q queue.Scheduler, flags *featureflags.Manager) *Scheduler {
	return &Scheduler{queue: q, flags: flags}
}

// AfterCommentCreated enqueues an auto-reply for a freshly created,
// non-blocked comment. It returns whether a task was enqueued.
func (s *Scheduler) AfterCommentCreated(ctx context.Context, post *models.Post, comment *models.Comment) (bool, error) {
	if s == nil || s.queue == nil || comment == nil || comment.IsBlocked {
		return false, nil
	}
	if !ShouldSchedule(post, comment.UserID) {
		observability.AutoReplyDecisions.WithLabelValues("skipped").Inc()
		return false, nil
	}
	if !s.flags.EnabledOr(featureflags.AutoReply, post.UserID, true) {
		observability.AutoReplyDecisions.WithLabelValues("disabled").Inc()
		return false, nil
	}

	task, err := queue.NewTask(TaskType, Payload{
		PostID:      post.ID,
		PostOwnerID: post.UserID,
		CommentText: comment.Text,
	})
	if err != nil {
		return false, err
	}

	delay := Delay(post)
	if err := s.queue.Schedule(ctx, task, delay); err != nil {
		observability.AutoReplyDecisions.WithLabelValues("enqueue_failed").Inc()
		return false, fmt.Errorf("schedule auto-reply for post %d: %w", post.ID, err)
	}

	observability.AutoReplyDecisions.WithLabelValues("scheduled").Inc()
	middleware.Logger.InfoContext(ctx, "auto-reply scheduled",
		"task_id", task.ID, "post_id", post.ID, "comment_id", comment.ID, "delay", delay)
	return true, nil
}
