package repository

import (
	"context"
	"errors"
	"time"

	"agora/internal/database"
	"agora/internal/models"

	"gorm.io/gorm"
)

const dayLayout = "2006-01-02"

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListVisibleByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id uint) error
	DailyBreakdown(ctx context.Context, from, to time.Time) ([]models.DailyBreakdown, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts the comment. A missing parent post surfaces as NOT_FOUND.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit("Post", "User").Create(comment).Error; err != nil {
		if isForeignKeyError(err) {
			return models.NewNotFoundError("Post", comment.PostID)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &comment, nil
}

// ListVisibleByPost returns the post's comments that are not blocked, oldest
// first.
func (r *commentRepository) ListVisibleByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := readDB(r.db).WithContext(ctx).
		Where("post_id = ? AND is_blocked = ?", postID, false).
		Order("created_at ASC").Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit("Post", "User").Save(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Comment{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

// DailyBreakdown counts created and blocked comments per calendar day in
// [from, to], both inclusive. Days without comments are omitted.
func (r *commentRepository) DailyBreakdown(ctx context.Context, from, to time.Time) ([]models.DailyBreakdown, error) {
	day := dayExpr(r.db)
	rows := make([]models.DailyBreakdown, 0)
	err := readDB(r.db).WithContext(ctx).
		Model(&models.Comment{}).
		Select(day+" AS day, COUNT(*) AS created_count, "+
			"SUM(CASE WHEN is_blocked THEN 1 ELSE 0 END) AS blocked_count").
		Where("DATE(created_at) BETWEEN ? AND ?", from.Format(dayLayout), to.Format(dayLayout)).
		Group(day).
		Order(day).
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func dayExpr(db *gorm.DB) string {
	if db.Dialector.Name() == database.DriverSQLite {
		return "DATE(created_at)"
	}
	return "TO_CHAR(DATE(created_at), 'YYYY-MM-DD')"
}
