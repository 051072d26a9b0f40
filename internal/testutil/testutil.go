// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SQLiteConfig is a config pointing at a private in-memory SQLite database.
func SQLiteConfig() *config.Config {
	return &config.Config{
		Env:          "test",
		DBDriver:     database.DriverSQLite,
		DBSQLitePath: ":memory:",
		DBSchemaMode: database.SchemaModeHybrid,
	}
}

// NewDB opens a migrated in-memory SQLite database that lives as long as t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := SQLiteConfig()
	db, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, database.ApplySchema(context.Background(), db, cfg))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with a throwaway password hash.
func CreateUser(t *testing.T, db *gorm.DB, username string, staff bool) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Password: "x", IsStaff: staff}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePost inserts a post owned by owner.
func CreatePost(t *testing.T, db *gorm.DB, owner *models.User, mutate ...func(*models.Post)) *models.Post {
	t.Helper()
	p := &models.Post{Title: "title", Content: "content", UserID: owner.ID}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, db.Omit("User").Create(p).Error)
	return p
}

// CreateComment inserts a comment at the given time. A zero time means now.
func CreateComment(t *testing.T, db *gorm.DB, postID, userID uint, text string, blocked bool, at time.Time) *models.Comment {
	t.Helper()
	c := &models.Comment{PostID: postID, UserID: userID, Text: text, IsBlocked: blocked, CreatedAt: at}
	require.NoError(t, db.Omit("Post", "User").Create(c).Error)
	return c
}
