package service

import (
	"context"
	"testing"
	"time"

	"agora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsService_DailyBreakdown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	staff := models.Principal{ID: 1, IsStaff: true}
	jan1 := time.Date(2023, 1, 1, 15, 30, 0, 0, time.UTC)

	t.Run("staff gets rows for truncated range", func(t *testing.T) {
		t.Parallel()
		repo := noopCommentRepo()
		repo.breakdownFn = func(_ context.Context, from, to time.Time) ([]models.DailyBreakdown, error) {
			assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), from)
			assert.Equal(t, from, to)
			return []models.DailyBreakdown{{Day: "2023-01-01", CreatedCount: 2, BlockedCount: 1}}, nil
		}
		svc := NewAnalyticsService(repo)

		rows, err := svc.DailyBreakdown(ctx, DailyBreakdownInput{Principal: staff, From: jan1, To: jan1})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("non staff forbidden", func(t *testing.T) {
		t.Parallel()
		svc := NewAnalyticsService(noopCommentRepo())
		_, err := svc.DailyBreakdown(ctx, DailyBreakdownInput{Principal: models.Principal{ID: 2}, From: jan1})
		assertCode(t, err, models.CodeForbidden)
	})

	t.Run("missing from", func(t *testing.T) {
		t.Parallel()
		svc := NewAnalyticsService(noopCommentRepo())
		_, err := svc.DailyBreakdown(ctx, DailyBreakdownInput{Principal: staff})
		assertCode(t, err, models.CodeValidation)
	})

	t.Run("inverted range", func(t *testing.T) {
		t.Parallel()
		svc := NewAnalyticsService(noopCommentRepo())
		_, err := svc.DailyBreakdown(ctx, DailyBreakdownInput{Principal: staff, From: jan1.AddDate(0, 0, 1), To: jan1})
		assertCode(t, err, models.CodeValidation)
	})

	t.Run("to defaults to today", func(t *testing.T) {
		t.Parallel()
		repo := noopCommentRepo()
		repo.breakdownFn = func(_ context.Context, _, to time.Time) ([]models.DailyBreakdown, error) {
			assert.Equal(t, time.Now().Format("2006-01-02"), to.Format("2006-01-02"))
			return nil, nil
		}
		svc := NewAnalyticsService(repo)
		_, err := svc.DailyBreakdown(ctx, DailyBreakdownInput{Principal: staff, From: jan1})
		assert.NoError(t, err)
	})
}
