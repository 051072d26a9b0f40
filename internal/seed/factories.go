// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/moderation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// rudeComments are mixed into seeded comments so the moderation screen has
// something to block.
var rudeComments = []string{
	"this is crap",
	"what a load of bullshit",
	"damn, terrible take",
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by Seed and tests.
type Factory struct {
	db     *gorm.DB
	opts   Options
	faker  *gofakeit.Faker
	rnd    *rand.Rand
	policy *moderation.Policy
	hash   string
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to db. db may be nil in DryRun mode.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	opts.applyDefaults()
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		db:     db,
		opts:   opts,
		faker:  gofakeit.New(seed),
		rnd:    rand.New(rand.NewSource(seed)), // #nosec G404: acceptable for seeding
		policy: moderation.NewPolicy(moderation.DefaultScreen()),
		nextID: 1000,
	}
}

func (f *Factory) passwordHash() string {
	if f.hash != "" {
		return f.hash
	}
	if f.opts.SkipBcrypt {
		f.hash = DefaultPassword
		return f.hash
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		middleware.Logger.Warn("seed: bcrypt failed, storing plain password", "error", err)
		f.hash = DefaultPassword
		return f.hash
	}
	f.hash = string(hashed)
	return f.hash
}

// createdAt picks a timestamp within the last MaxDays days, never before notBefore.
func (f *Factory) createdAt(notBefore time.Time) time.Time {
	now := time.Now()
	back := time.Duration(f.rnd.Intn(f.opts.MaxDays))*24*time.Hour +
		time.Duration(f.rnd.Intn(24))*time.Hour +
		time.Duration(f.rnd.Intn(60))*time.Minute
	at := now.Add(-back)
	if at.Before(notBefore) {
		window := now.Sub(notBefore)
		if window <= 0 {
			return now
		}
		at = notBefore.Add(time.Duration(f.rnd.Int63n(int64(window))))
	}
	return at
}

// BuildUser constructs a user without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	user := &models.User{
		Username:  fmt.Sprintf("%s%d", f.faker.Username(), f.faker.Number(100, 999)),
		Email:     f.faker.Email(),
		Password:  f.passwordHash(),
		CreatedAt: time.Now().AddDate(0, 0, -f.opts.MaxDays-1),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post for user without persisting it. About a third
// of posts opt into auto-replies.
func (f *Factory) BuildPost(user *models.User, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		Title:     f.faker.Sentence(5),
		Content:   f.faker.Paragraph(1, 3, 8, "\n"),
		UserID:    user.ID,
		CreatedAt: f.createdAt(user.CreatedAt),
	}
	if f.rnd.Intn(3) == 0 {
		post.AutoReplyEnabled = true
		post.AutoReplyDelay = f.rnd.Intn(10)
	}
	for _, override := range overrides {
		override(post)
	}
	post.UpdatedAt = post.CreatedAt
	post.IsBlocked = f.policy.Evaluate(post.ModeratedFields()...).Blocked
	return post
}

// CreatePostsBatch persists multiple posts in a single DB call.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		return nil
	}
	return f.db.Omit("User").Create(&posts).Error
}

// BuildComment constructs a comment by user on post without persisting it.
// Roughly BlockedRatio of comments are rude and come out blocked.
func (f *Factory) BuildComment(user *models.User, post *models.Post, overrides ...func(*models.Comment)) *models.Comment {
	text := f.faker.Sentence(8)
	if f.rnd.Float64() < f.opts.BlockedRatio {
		text = rudeComments[f.rnd.Intn(len(rudeComments))]
	}
	comment := &models.Comment{
		PostID:    post.ID,
		UserID:    user.ID,
		Text:      text,
		CreatedAt: f.createdAt(post.CreatedAt),
	}
	for _, override := range overrides {
		override(comment)
	}
	comment.UpdatedAt = comment.CreatedAt
	comment.IsBlocked = f.policy.Evaluate(comment.ModeratedFields()...).Blocked
	return comment
}

// CreateCommentsBatch persists multiple comments in a single DB call.
func (f *Factory) CreateCommentsBatch(comments []*models.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, c := range comments {
			f.nextID++
			c.ID = f.nextID
		}
		return nil
	}
	return f.db.Omit("Post", "User").Create(&comments).Error
}
