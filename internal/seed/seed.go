package seed

import (
	"context"
	"fmt"
	"log/slog"

	"agora/internal/middleware"
	"agora/internal/models"

	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	// MaxDays bounds how far back created_at timestamps are spread.
	MaxDays int
	// BlockedRatio is the share of comments generated with rude text.
	BlockedRatio float64
	// StaffUsername names an extra staff account; empty skips it.
	StaffUsername string
	ShouldClean   bool
	SkipBcrypt    bool
	DryRun        bool
	RandSeed      int64
}

func (o *Options) applyDefaults() {
	if o.MaxDays <= 0 {
		o.MaxDays = 30
	}
	if o.BlockedRatio < 0 {
		o.BlockedRatio = 0
	}
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Posts    int
	Comments int
	Blocked  int
}

// Seed populates the database with demo users, posts and comments.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (Summary, error) {
	opts.applyDefaults()
	log := middleware.Logger.With(slog.String("component", "seed"))
	log.InfoContext(ctx, "starting database seeding",
		slog.Int("users", opts.Users),
		slog.Int("posts_per_user", opts.PostsPerUser),
		slog.Int("comments_per_post", opts.CommentsPerPost),
		slog.Bool("dry_run", opts.DryRun),
	)

	if opts.ShouldClean && !opts.DryRun {
		if err := Clean(ctx, db); err != nil {
			return Summary{}, fmt.Errorf("clean existing data: %w", err)
		}
	}

	var tx *gorm.DB
	if db != nil {
		tx = db.WithContext(ctx)
	}
	f := NewFactory(tx, opts)
	var sum Summary

	users := make([]*models.User, 0, opts.Users+1)
	if opts.StaffUsername != "" {
		staff, err := f.CreateUser(func(u *models.User) {
			u.Username = opts.StaffUsername
			u.Email = opts.StaffUsername + "@agora.local"
			u.IsStaff = true
		})
		if err != nil {
			return sum, fmt.Errorf("create staff user: %w", err)
		}
		users = append(users, staff)
	}
	for i := 0; i < opts.Users; i++ {
		user, err := f.CreateUser()
		if err != nil {
			return sum, fmt.Errorf("create user: %w", err)
		}
		users = append(users, user)
	}
	sum.Users = len(users)

	posts := make([]*models.Post, 0, len(users)*opts.PostsPerUser)
	for _, u := range users {
		for i := 0; i < opts.PostsPerUser; i++ {
			posts = append(posts, f.BuildPost(u))
		}
	}
	if err := f.CreatePostsBatch(posts); err != nil {
		return sum, fmt.Errorf("create posts: %w", err)
	}
	sum.Posts = len(posts)

	if len(users) > 0 {
		comments := make([]*models.Comment, 0, len(posts)*opts.CommentsPerPost)
		for _, p := range posts {
			for i := 0; i < opts.CommentsPerPost; i++ {
				author := users[f.rnd.Intn(len(users))]
				c := f.BuildComment(author, p)
				if c.IsBlocked {
					sum.Blocked++
				}
				comments = append(comments, c)
			}
		}
		if err := f.CreateCommentsBatch(comments); err != nil {
			return sum, fmt.Errorf("create comments: %w", err)
		}
		sum.Comments = len(comments)
	}

	log.InfoContext(ctx, "database seeding completed",
		slog.Int("users", sum.Users),
		slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments),
		slog.Int("blocked_comments", sum.Blocked),
	)
	return sum, nil
}

// Clean removes all content and accounts, children first.
func Clean(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&models.Comment{}, &models.Post{}, &models.User{}} {
		if err := tx.Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
