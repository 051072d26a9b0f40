package service

import (
	"context"

	"agora/internal/authz"
	"agora/internal/models"
	"agora/internal/moderation"
	"agora/internal/observability"
	"agora/internal/repository"
	"agora/internal/validation"
)

// PostService applies moderation and ownership rules to posts.
type PostService struct {
	postRepo  repository.PostRepository
	policy    *moderation.Policy
	publisher EventPublisher
}

// CreatePostInput is a new post by UserID.
type CreatePostInput struct {
	UserID           uint   `json:"-"`
	Title            string `json:"title" validate:"notblank,max=255"`
	Content          string `json:"content" validate:"notblank"`
	AutoReplyEnabled bool   `json:"auto_reply_enabled"`
	AutoReplyDelay   int    `json:"auto_reply_delay" validate:"gte=0"`
}

// UpdatePostInput is a partial update: nil fields are left unchanged.
type UpdatePostInput struct {
	Principal        models.Principal `json:"-"`
	PostID           uint             `json:"-"`
	Title            *string          `json:"title" validate:"omitnil,notblank,max=255"`
	Content          *string          `json:"content" validate:"omitnil,notblank"`
	AutoReplyEnabled *bool            `json:"auto_reply_enabled"`
	AutoReplyDelay   *int             `json:"auto_reply_delay" validate:"omitnil,gte=0"`
}

// DeletePostInput names the post Principal wants removed.
type DeletePostInput struct {
	Principal models.Principal
	PostID    uint
}

// NewPostService wires the post rules. publisher may be nil.
func NewPostService(postRepo repository.PostRepository, policy *moderation.Policy, publisher EventPublisher) *PostService {
	return &PostService{
		postRepo:  postRepo,
		policy:    policy,
		publisher: publisher,
	}
}

// CreatePost screens and stores a post in one write. A flagged post is still
// stored, blocked, and returned together with a moderation error.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post := &models.Post{
		Title:            in.Title,
		Content:          in.Content,
		UserID:           in.UserID,
		AutoReplyEnabled: in.AutoReplyEnabled,
		AutoReplyDelay:   in.AutoReplyDelay,
	}
	post.IsBlocked = s.screen(post).Blocked

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	if post.IsBlocked {
		return post, models.NewModerationError("Post")
	}
	if s.publisher != nil {
		s.publisher.PublishPostCreated(ctx, post)
	}
	return post, nil
}

// ListPosts returns posts regardless of block status.
func (s *PostService) ListPosts(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	return s.postRepo.List(ctx, limit, offset)
}

// GetPost returns a post whether or not it is blocked.
func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

// UpdatePost applies a partial update by the owner or staff and re-screens
// the result. A post once blocked stays blocked.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutate(in.Principal, post.UserID) {
		return nil, models.NewUnauthorizedError("Post can be changed only by author or admin")
	}
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if in.Title != nil {
		post.Title = *in.Title
	}
	if in.Content != nil {
		post.Content = *in.Content
	}
	if in.AutoReplyEnabled != nil {
		post.AutoReplyEnabled = *in.AutoReplyEnabled
	}
	if in.AutoReplyDelay != nil {
		post.AutoReplyDelay = *in.AutoReplyDelay
	}
	post.IsBlocked = s.screen(post).Merge(post.IsBlocked).Blocked

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	if post.IsBlocked {
		return post, models.NewModerationError("Post")
	}
	return post, nil
}

// DeletePost removes a post on behalf of its owner or staff.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return err
	}
	if !authz.CanMutate(in.Principal, post.UserID) {
		return models.NewUnauthorizedError("Post can be deleted only by author or admin")
	}
	return s.postRepo.Delete(ctx, in.PostID)
}

func (s *PostService) screen(post *models.Post) moderation.Outcome {
	if s.policy == nil {
		return moderation.Outcome{}
	}
	out := s.policy.Evaluate(post.ModeratedFields()...)
	observability.RecordModeration("post", out.Blocked)
	return out
}
