package service

import (
	"context"
	"time"

	"agora/internal/authz"
	"agora/internal/models"
	"agora/internal/repository"
)

// ErrAnalyticsForbidden is returned to callers who are not staff.
var ErrAnalyticsForbidden = models.NewForbiddenError("You do not have permission to perform this action.")

// AnalyticsService answers staff reporting queries.
type AnalyticsService struct {
	commentRepo repository.CommentRepository
}

// DailyBreakdownInput is a date range requested by Principal. A zero To
// means today.
type DailyBreakdownInput struct {
	Principal models.Principal
	From      time.Time
	To        time.Time
}

// NewAnalyticsService builds the service over the comment repository.
func NewAnalyticsService(commentRepo repository.CommentRepository) *AnalyticsService {
	return &AnalyticsService{commentRepo: commentRepo}
}

// DailyBreakdown reports per-day comment counts for staff. Both bounds are
// calendar dates and inclusive.
func (s *AnalyticsService) DailyBreakdown(ctx context.Context, in DailyBreakdownInput) ([]models.DailyBreakdown, error) {
	if !authz.CanViewAnalytics(in.Principal) {
		return nil, ErrAnalyticsForbidden
	}
	if in.From.IsZero() {
		return nil, models.NewValidationError("date_from is required")
	}
	if in.To.IsZero() {
		in.To = time.Now()
	}
	from, to := truncateDay(in.From), truncateDay(in.To)
	if from.After(to) {
		return nil, models.NewValidationError("date_from must not be after date_to")
	}
	return s.commentRepo.DailyBreakdown(ctx, from, to)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
