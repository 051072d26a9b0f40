package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"agora/internal/models"
	"agora/internal/moderation"

	"github.com/stretchr/testify/assert"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn  func(context.Context, *models.Post) error
	getByIDFn func(context.Context, uint) (*models.Post, error)
	listFn    func(context.Context, int, int) ([]*models.Post, error)
	updateFn  func(context.Context, *models.Post) error
	deleteFn  func(context.Context, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, p *models.Post) error {
			p.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 10, Title: "t", Content: "c"}, nil
		},
		listFn:   func(_ context.Context, _, _ int) ([]*models.Post, error) { return nil, nil },
		updateFn: func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn: func(_ context.Context, _ uint) error { return nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn    func(context.Context, *models.Comment) error
	getByIDFn   func(context.Context, uint) (*models.Comment, error)
	listFn      func(context.Context, uint) ([]*models.Comment, error)
	updateFn    func(context.Context, *models.Comment) error
	deleteFn    func(context.Context, uint) error
	breakdownFn func(context.Context, time.Time, time.Time) ([]models.DailyBreakdown, error)
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListVisibleByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.listFn(ctx, postID)
}
func (s *commentRepoStub) Update(ctx context.Context, comment *models.Comment) error {
	return s.updateFn(ctx, comment)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *commentRepoStub) DailyBreakdown(ctx context.Context, from, to time.Time) ([]models.DailyBreakdown, error) {
	return s.breakdownFn(ctx, from, to)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn: func(_ context.Context, c *models.Comment) error {
			c.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Comment, error) {
			return &models.Comment{ID: id, PostID: 1, UserID: 20, Text: "hello"}, nil
		},
		listFn:   func(_ context.Context, _ uint) ([]*models.Comment, error) { return nil, nil },
		updateFn: func(_ context.Context, _ *models.Comment) error { return nil },
		deleteFn: func(_ context.Context, _ uint) error { return nil },
		breakdownFn: func(_ context.Context, _, _ time.Time) ([]models.DailyBreakdown, error) {
			return []models.DailyBreakdown{}, nil
		},
	}
}

// hookStub records AfterCommentCreated calls.
type hookStub struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (h *hookStub) AfterCommentCreated(_ context.Context, _ *models.Post, _ *models.Comment) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	return h.err == nil, h.err
}

// publisherStub records published events.
type publisherStub struct {
	mu     sync.Mutex
	events []string
}

func (p *publisherStub) PublishPostCreated(_ context.Context, _ *models.Post) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, EventPostCreated)
}

func (p *publisherStub) PublishCommentCreated(_ context.Context, _ *models.Comment, eventType string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func testPolicy() *moderation.Policy {
	return moderation.NewPolicy(moderation.NewScreen([]string{"darn"}, nil))
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	assert.Equal(t, code, models.ErrorCode(err), "error: %v", err)
}
