package service

import (
	"context"
	"log/slog"

	"agora/internal/authz"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/moderation"
	"agora/internal/observability"
	"agora/internal/repository"
	"agora/internal/validation"
)

// CommentService applies moderation and ownership rules to comments and
// hands clean ones to the auto-reply hook.
type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	policy      *moderation.Policy
	hook        CommentHook
	publisher   EventPublisher
}

// CreateCommentInput is a new comment by UserID on PostID.
type CreateCommentInput struct {
	UserID uint   `json:"-"`
	PostID uint   `json:"-"`
	Text   string `json:"comment" validate:"notblank"`
}

// UpdateCommentInput is a partial update: a nil Text leaves the comment as is.
type UpdateCommentInput struct {
	Principal models.Principal `json:"-"`
	PostID    uint             `json:"-"`
	CommentID uint             `json:"-"`
	Text      *string          `json:"comment" validate:"omitnil,notblank"`
}

// DeleteCommentInput names the comment Principal wants removed.
type DeleteCommentInput struct {
	Principal models.Principal
	PostID    uint
	CommentID uint
}

// NewCommentService wires the comment rules. hook and publisher may be nil.
func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	policy *moderation.Policy,
	hook CommentHook,
	publisher EventPublisher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		policy:      policy,
		hook:        hook,
		publisher:   publisher,
	}
}

// CreateComment stores a screened comment. Clean comments may schedule an
// auto-reply; a scheduling failure is logged and never fails the request.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID: in.PostID,
		UserID: in.UserID,
		Text:   in.Text,
	}
	comment.IsBlocked = s.screen(comment).Blocked

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	if comment.IsBlocked {
		return comment, models.NewModerationError("Comment")
	}

	if s.hook != nil {
		scheduled, err := s.hook.AfterCommentCreated(ctx, post, comment)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "auto-reply scheduling failed",
				slog.Uint64("post_id", uint64(post.ID)),
				slog.Uint64("comment_id", uint64(comment.ID)),
				slog.String("error", err.Error()),
			)
		} else if scheduled {
			middleware.Logger.DebugContext(ctx, "auto-reply scheduled",
				slog.Uint64("post_id", uint64(post.ID)),
				slog.Int("delay_minutes", post.AutoReplyDelay),
			)
		}
	}
	if s.publisher != nil {
		s.publisher.PublishCommentCreated(ctx, comment, EventCommentCreated)
	}
	return comment, nil
}

// ListComments returns the visible comments of an existing post.
func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListVisibleByPost(ctx, postID)
}

// UpdateComment edits a comment by its owner or staff and re-screens it.
func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.load(ctx, in.PostID, in.CommentID)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutate(in.Principal, comment.UserID) {
		return nil, models.NewUnauthorizedError("Comment can be changed only by author or admin")
	}
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if in.Text != nil {
		comment.Text = *in.Text
	}
	comment.IsBlocked = s.screen(comment).Merge(comment.IsBlocked).Blocked

	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	if comment.IsBlocked {
		return comment, models.NewModerationError("Comment")
	}
	return comment, nil
}

// DeleteComment removes a comment on behalf of its owner or staff.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	comment, err := s.load(ctx, in.PostID, in.CommentID)
	if err != nil {
		return err
	}
	if !authz.CanMutate(in.Principal, comment.UserID) {
		return models.NewUnauthorizedError("Comment can be deleted only by author or admin")
	}
	return s.commentRepo.Delete(ctx, in.CommentID)
}

// load fetches a comment and checks it hangs off postID.
func (s *CommentService) load(ctx context.Context, postID, commentID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.PostID != postID {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	return comment, nil
}

func (s *CommentService) screen(comment *models.Comment) moderation.Outcome {
	if s.policy == nil {
		return moderation.Outcome{}
	}
	out := s.policy.Evaluate(comment.ModeratedFields()...)
	observability.RecordModeration("comment", out.Blocked)
	return out
}
