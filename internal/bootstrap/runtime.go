// Package bootstrap wires process-level dependencies shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty database with demo content.
	SeedDemo bool
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureDevStaff(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development staff account: %w", err)
	}

	if opts.SeedDemo {
		var posts int64
		if err := db.Model(&models.Post{}).Count(&posts).Error; err != nil {
			return nil, nil, fmt.Errorf("count posts: %w", err)
		}
		if posts == 0 {
			if _, err := seed.Seed(context.Background(), db, seed.Options{
				Users: 5, PostsPerUser: 3, CommentsPerPost: 3, BlockedRatio: 0.1,
			}); err != nil {
				return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
			}
		}
	}

	return db, r, nil
}

// ensureDevStaff creates or promotes the development root account. It only
// runs when APP_ENV is development and DEV_BOOTSTRAP_ROOT is set.
func ensureDevStaff(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "agora_root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@agora.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)
	root, err := users.GetByUsername(ctx, username)
	switch {
	case err != nil:
		return err
	case root == nil:
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash root password: %w", err)
		}
		root = &models.User{Username: username, Email: email, Password: string(hashed), IsStaff: true}
		if err := users.Create(ctx, root); err != nil {
			return err
		}
	case !root.IsStaff:
		if err := users.SetStaff(ctx, root.ID, true); err != nil {
			return err
		}
	}

	middleware.Logger.Info("development staff account ensured", "username", root.Username, "id", root.ID)
	return nil
}
